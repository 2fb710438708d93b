package service

import (
	"context"
	"fmt"
	"time"

	"github.com/MKhiriev/go-field-sync/internal/config"
	"github.com/MKhiriev/go-field-sync/internal/metrics"
	"github.com/MKhiriev/go-field-sync/models"
)

// retrier runs remote calls with a bounded number of attempts and a fixed
// pause between them. Only network failures are retried; every attempt gets
// its own timeout.
type retrier struct {
	attempts int
	backoff  time.Duration
	timeout  time.Duration
	metrics  *metrics.Recorder
}

func newRetrier(cfg config.Adapter, rec *metrics.Recorder) retrier {
	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	return retrier{attempts: attempts, backoff: cfg.RetryBackoff, timeout: cfg.RequestTimeout, metrics: rec}
}

func (r retrier) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var (
		err     error
		attempt int
	)

	for attempt < r.attempts {
		attempt++

		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if r.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		}
		err = fn(callCtx)
		cancel()

		if err == nil || !models.Retryable(err) || ctx.Err() != nil || attempt == r.attempts {
			break
		}

		if !sleep(ctx, r.backoff) {
			err = fmt.Errorf("%s: %w", op, ctx.Err())
			break
		}
	}

	r.metrics.ObserveRemoteCall(op, attempt, err)

	if err != nil && models.Retryable(err) {
		return fmt.Errorf("%s failed after %d attempt(s): %w", op, attempt, err)
	}
	return err
}

// sleep waits for d and reports false when ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
