package service

import (
	"context"
	"time"

	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/internal/metrics"
	"github.com/MKhiriev/go-field-sync/internal/notify"
	"github.com/MKhiriev/go-field-sync/internal/store"
	"github.com/MKhiriev/go-field-sync/internal/utils"
)

// base carries what every service shares. The keyed mutex is a single
// instance so that lifecycle calls, drains, merges and imports touching the
// same submission serialize.
type base struct {
	storages *store.Storages
	locks    *keyedMutex
	ids      utils.IDGenerator
	notifier notify.Notifier
	metrics  *metrics.Recorder
	now      func() time.Time

	logger *logger.Logger
}

func (b base) log(ctx context.Context) *logger.Logger {
	return logger.FromContextOr(ctx, b.logger)
}

// clock returns the current time at millisecond precision, the resolution
// transfer payloads carry, so record versions survive a handoff unchanged.
func (b base) clock() time.Time {
	return b.now().UTC().Truncate(time.Millisecond)
}

// observe records the outcome of a public operation started at start.
func (b base) observe(ctx context.Context, op string, start time.Time, err error) {
	b.metrics.Observe(ctx, op, err == nil, time.Since(start))
}

// detached returns a context that survives cancellation of ctx. It is used
// for local bookkeeping after a remote call has been confirmed.
func detached(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
