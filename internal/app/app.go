// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package app assembles the agent runtime from configuration: the local
// store, the remote adapter, connectivity detection, notifications, metrics
// and the service layer. The CLI builds one App per invocation.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/MKhiriev/go-field-sync/internal/adapter"
	"github.com/MKhiriev/go-field-sync/internal/config"
	"github.com/MKhiriev/go-field-sync/internal/connectivity"
	"github.com/MKhiriev/go-field-sync/internal/handler"
	handlerhttp "github.com/MKhiriev/go-field-sync/internal/handler/http"
	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/internal/metrics"
	"github.com/MKhiriev/go-field-sync/internal/notify"
	"github.com/MKhiriev/go-field-sync/internal/server"
	"github.com/MKhiriev/go-field-sync/internal/service"
	"github.com/MKhiriev/go-field-sync/internal/store"
	"github.com/MKhiriev/go-field-sync/internal/utils"
	"github.com/MKhiriev/go-field-sync/internal/workers"
)

// inboxSize is how many notifications the local API keeps.
const inboxSize = 200

type App struct {
	Config   *config.StructuredConfig
	Services *service.Services

	// Connectivity is the manual override over the remote probe.
	Connectivity *connectivity.Override
	Inbox        *notify.Inbox
	Metrics      *metrics.Recorder

	storages *store.Storages
	logger   *logger.Logger
}

// New opens the store, runs migrations and wires the services. Close must be
// called to release the database.
func New(ctx context.Context, cfg *config.StructuredConfig, log *logger.Logger) (*App, error) {
	storages, err := store.NewStorages(ctx, cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	remote, err := adapter.NewHTTPRemoteAdapter(cfg.Adapter, log)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create remote adapter: %w", err), storages.Close())
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.New(registry)

	probe := connectivity.NewProbe(cfg.Adapter, probeMaxAge(cfg.Workers), log)
	override := connectivity.NewOverride(probe)

	ids := utils.NewUUIDGenerator()
	inbox := notify.NewInbox(inboxSize, ids)

	services, err := service.NewServices(service.Dependencies{
		Storages:     storages,
		Remote:       remote,
		Connectivity: override,
		Notifier:     notify.Multi{notify.NewLog(log), inbox},
		Metrics:      recorder,
		IDs:          ids,
	}, *cfg, log)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create services: %w", err), storages.Close())
	}

	return &App{
		Config:       cfg,
		Services:     services,
		Connectivity: override,
		Inbox:        inbox,
		Metrics:      recorder,
		storages:     storages,
		logger:       log,
	}, nil
}

// probeMaxAge caches a probe answer for half a poll period, so the watcher
// always probes afresh while bursts of service calls share one answer.
func probeMaxAge(cfg config.Workers) time.Duration {
	return cfg.ConnectivityPoll / 2
}

// Serve runs the local API and the automatic sync watcher until ctx is
// cancelled.
func (a *App) Serve(ctx context.Context) error {
	handlers, err := handler.NewHandlers(a.Services, handlerhttp.Dependencies{
		Inbox:          a.Inbox,
		Connectivity:   a.Connectivity,
		Metrics:        a.Metrics.Handler(),
		MaxImportBytes: a.Config.Transfer.MaxFileBytes,
	}, a.Config.Server, a.logger)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(handlers, a.Config.Server, a.logger)
	if err != nil {
		return err
	}

	background := workers.NewWorkers(a.Services.SyncWatcher)
	background.Start(ctx)
	defer background.Stop()

	return srv.RunServer(ctx)
}

// Close releases the store.
func (a *App) Close() error {
	return a.storages.Close()
}
