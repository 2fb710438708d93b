// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"sync"
	"time"

	"github.com/MKhiriev/go-field-sync/internal/config"
	"github.com/MKhiriev/go-field-sync/internal/connectivity"
	"github.com/MKhiriev/go-field-sync/internal/logger"
)

type syncWatcher struct {
	syncService SyncService
	checker     connectivity.Checker
	cfg         config.Workers

	logger *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSyncWatcher creates a watcher that runs SyncAll on a ticker while
// online, and once after each offline to online edge that holds for the
// debounce window. The watcher is idle until Start is called.
func NewSyncWatcher(syncService SyncService, checker connectivity.Checker, cfg config.Workers, log *logger.Logger) SyncWatcher {
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = config.DefaultSyncInterval
	}
	if cfg.ConnectivityPoll <= 0 {
		cfg.ConnectivityPoll = config.DefaultConnectivityPoll
	}
	if cfg.Debounce < 0 {
		cfg.Debounce = 0
	}
	return &syncWatcher{syncService: syncService, checker: checker, cfg: cfg, logger: log}
}

// Start stops any previously running loop and launches a new one. The loop
// exits when ctx is cancelled or Stop is called.
func (w *syncWatcher) Start(ctx context.Context) {
	w.Stop()

	w.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		w.loop(jobCtx)
	}()
}

// Stop cancels the loop and blocks until it has exited, including a sync
// run in progress. Safe to call when the watcher is not running.
func (w *syncWatcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

func (w *syncWatcher) loop(ctx context.Context) {
	poll := time.NewTicker(w.cfg.ConnectivityPoll)
	defer poll.Stop()
	interval := time.NewTicker(w.cfg.SyncInterval)
	defer interval.Stop()

	var (
		online   bool
		debounce *time.Timer
		settled  <-chan time.Time
	)
	stopDebounce := func() {
		if debounce != nil {
			debounce.Stop()
		}
		debounce, settled = nil, nil
	}
	defer stopDebounce()

	for {
		select {
		case <-ctx.Done():
			return

		case <-poll.C:
			now := w.checker.Online(ctx)
			switch {
			case now && !online:
				stopDebounce()
				debounce = time.NewTimer(w.cfg.Debounce)
				settled = debounce.C
				w.logger.Info().Str("func", "syncWatcher.loop").Dur("debounce", w.cfg.Debounce).Msg("connectivity regained")
			case !now && online:
				stopDebounce()
				w.logger.Info().Str("func", "syncWatcher.loop").Msg("connectivity lost")
			}
			online = now

		case <-settled:
			debounce, settled = nil, nil
			if w.checker.Online(ctx) {
				w.run(ctx, "reconnect")
			}

		case <-interval.C:
			if online && settled == nil {
				w.run(ctx, "interval")
			}
		}
	}
}

func (w *syncWatcher) run(ctx context.Context, trigger string) {
	reports := w.syncService.SyncAll(ctx)

	failed := 0
	for _, r := range reports {
		if !r.OK() {
			failed++
		}
	}
	w.logger.Info().
		Str("func", "syncWatcher.run").
		Str("trigger", trigger).
		Int("projects", len(reports)).
		Int("failed", failed).
		Msg("automatic sync finished")
}
