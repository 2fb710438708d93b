package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/MKhiriev/go-field-sync/internal/config"
	"github.com/MKhiriev/go-field-sync/internal/metrics"
	"github.com/MKhiriev/go-field-sync/models"
)

func testRetrier(attempts int, backoff, timeout time.Duration) retrier {
	return newRetrier(config.Adapter{
		RetryAttempts:  attempts,
		RetryBackoff:   backoff,
		RequestTimeout: timeout,
	}, metrics.New(prometheus.NewRegistry()))
}

func TestRetrier_Do(t *testing.T) {
	netErr := fmt.Errorf("%w: 502", models.ErrNetwork)
	rejected := fmt.Errorf("%w: bad field", models.ErrValidation)

	tests := []struct {
		name      string
		attempts  int
		results   []error
		wantCalls int
		wantErr   error
	}{
		{name: "first attempt succeeds", attempts: 2, results: []error{nil}, wantCalls: 1},
		{name: "network then success", attempts: 2, results: []error{netErr, nil}, wantCalls: 2},
		{name: "network exhausts attempts", attempts: 3, results: []error{netErr, netErr, netErr}, wantCalls: 3, wantErr: models.ErrNetwork},
		{name: "rejection is not retried", attempts: 3, results: []error{rejected}, wantCalls: 1, wantErr: models.ErrValidation},
		{name: "zero attempts still calls once", attempts: 0, results: []error{netErr}, wantCalls: 1, wantErr: models.ErrNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testRetrier(tt.attempts, time.Millisecond, time.Second)
			calls := 0

			err := r.do(context.Background(), "submit", func(context.Context) error {
				res := tt.results[calls]
				calls++
				return res
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRetrier_Do_PerAttemptTimeout(t *testing.T) {
	r := testRetrier(2, time.Millisecond, 20*time.Millisecond)
	calls := 0

	err := r.do(context.Background(), "fetch", func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return fmt.Errorf("%w: %w", models.ErrNetwork, ctx.Err())
	})

	assert.Equal(t, 2, calls, "a timeout is retried")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "fetch failed after 2 attempt(s)")
}

func TestRetrier_Do_CancelDuringBackoff(t *testing.T) {
	r := testRetrier(5, time.Hour, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	done := make(chan error, 1)
	go func() {
		done <- r.do(ctx, "submit", func(context.Context) error {
			calls++
			return models.ErrNetwork
		})
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("retrier ignored cancellation")
	}
}
