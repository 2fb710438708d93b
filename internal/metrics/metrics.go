// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package metrics publishes agent counters and gauges through Prometheus.
// A [Recorder] registers its collectors on the registerer it is given, so
// tests use a private registry and the agent uses the default one.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MKhiriev/go-field-sync/models"
)

const namespace = "fieldsync"

// Recorder groups every collector of the agent.
type Recorder struct {
	operations     *prometheus.HistogramVec
	syncRuns       *prometheus.CounterVec
	stepFailures   *prometheus.CounterVec
	remoteCalls    *prometheus.CounterVec
	retries        *prometheus.CounterVec
	intentsApplied prometheus.Counter
	queueDepth     *prometheus.GaugeVec
	storageUsage   prometheus.Gauge
	storageWarning prometheus.Gauge
	payloadBytes   *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them on reg. When reg is also a
// [prometheus.Gatherer] it backs [Recorder.Handler].
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		operations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of service operations by result.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "result"}),
		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Sync runs by result: ok, failed, offline or skipped.",
		}, []string{"result"}),
		stepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_step_failures_total",
			Help:      "Sync steps that ended with a terminal error.",
		}, []string{"step"}),
		remoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_calls_total",
			Help:      "Remote adapter calls by operation and error kind.",
		}, []string{"operation", "result"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_retries_total",
			Help:      "Additional attempts made after a retryable failure.",
		}, []string{"operation"}),
		intentsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_intents_applied_total",
			Help:      "Queued intents confirmed by the remote store.",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Pending intents per project after the last enqueue or drain.",
		}, []string{"project"}),
		storageUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "storage_usage_bytes",
			Help:      "Bytes occupied by the local database.",
		}),
		storageWarning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "storage_capacity_warning",
			Help:      "1 while storage usage is above the warning ratio of the quota.",
		}),
		payloadBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transfer_payload_bytes",
			Help:      "Size of exported transfer payloads by medium.",
			Buckets:   []float64{256, 512, 1024, 2331, 8 << 10, 64 << 10, 1 << 20, 8 << 20},
		}, []string{"medium"}),
	}

	reg.MustRegister(
		r.operations, r.syncRuns, r.stepFailures, r.remoteCalls, r.retries,
		r.intentsApplied, r.queueDepth, r.storageUsage, r.storageWarning, r.payloadBytes,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		r.gatherer = g
	}

	return r
}

// Nop returns a recorder bound to a throwaway registry.
func Nop() *Recorder {
	return New(prometheus.NewRegistry())
}

// Handler serves the registered metrics in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// Observe records a service operation outcome.
func (r *Recorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	result := "error"
	if success {
		result = "success"
	}
	r.operations.WithLabelValues(operation, result).Observe(duration.Seconds())
}

// ObserveSync records the result of a sync run.
func (r *Recorder) ObserveSync(report models.SyncReport) {
	result := "ok"
	switch {
	case report.Offline:
		result = "offline"
	case report.Err != nil:
		result = "skipped"
	case !report.OK():
		result = "failed"
	}
	r.syncRuns.WithLabelValues(result).Inc()

	for _, step := range report.Steps {
		if step.Err != nil {
			r.stepFailures.WithLabelValues(string(step.Step)).Inc()
		}
	}
}

// ObserveRemoteCall records one logical remote call made with the given
// number of attempts.
func (r *Recorder) ObserveRemoteCall(operation string, attempts int, err error) {
	r.remoteCalls.WithLabelValues(operation, ErrorKind(err)).Inc()
	if attempts > 1 {
		r.retries.WithLabelValues(operation).Add(float64(attempts - 1))
	}
}

// IntentApplied counts one confirmed intent.
func (r *Recorder) IntentApplied() {
	r.intentsApplied.Inc()
}

// SetQueueDepth publishes the pending intent count of a project.
func (r *Recorder) SetQueueDepth(projectID string, depth int) {
	r.queueDepth.WithLabelValues(projectID).Set(float64(depth))
}

// SetStorage publishes storage usage and whether the warning is raised.
func (r *Recorder) SetStorage(usage int64, warning bool) {
	r.storageUsage.Set(float64(usage))
	if warning {
		r.storageWarning.Set(1)
	} else {
		r.storageWarning.Set(0)
	}
}

// ObservePayload records the size of an exported payload.
func (r *Recorder) ObservePayload(medium string, size int) {
	r.payloadBytes.WithLabelValues(medium).Observe(float64(size))
}

// ErrorKind maps err to a short label value.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrValidation):
		return "validation"
	case errors.Is(err, models.ErrConflict):
		return "conflict"
	case errors.Is(err, models.ErrNetwork):
		return "network"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "other"
	}
}
