// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package notify delivers user-facing notifications about terminal failures
// and resource warnings. Retries are never notified; only the final outcome
// of an operation is.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/internal/utils"
	"github.com/MKhiriev/go-field-sync/models"
)

//go:generate mockgen -source=notify.go -destination=../mock/notifier_mock.go -package=mock

// Notifier accepts notifications. Implementations must be safe for
// concurrent use and must not block the caller for long.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

// Log writes every notification to the structured log.
type Log struct {
	logger *logger.Logger
}

func NewLog(log *logger.Logger) *Log {
	return &Log{logger: log}
}

func (l *Log) Notify(_ context.Context, n models.Notification) {
	event := l.logger.Info()
	switch n.Severity {
	case models.SeverityWarning:
		event = l.logger.Warn()
	case models.SeverityError:
		event = l.logger.Error()
	}

	event.
		Str("func", "notify.Log").
		Str("notification_id", n.ID).
		Str("subject", n.Subject).
		Str("cause", n.Cause).
		Str("remedy", n.Remedy).
		Msg("notification")
}

// Inbox keeps the most recent notifications in memory for the local API.
// It assigns ids and timestamps to notifications that lack them.
type Inbox struct {
	mu    sync.Mutex
	items []models.Notification
	limit int

	ids utils.IDGenerator
	now func() time.Time
}

// NewInbox returns an inbox retaining at most limit notifications.
func NewInbox(limit int, ids utils.IDGenerator) *Inbox {
	if limit <= 0 {
		limit = 100
	}
	return &Inbox{limit: limit, ids: ids, now: time.Now}
}

func (b *Inbox) Notify(_ context.Context, n models.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n.ID == "" {
		n.ID = b.ids.Generate()
	}
	if n.At.IsZero() {
		n.At = b.now().UTC()
	}

	b.items = append(b.items, n)
	if over := len(b.items) - b.limit; over > 0 {
		b.items = append(b.items[:0:0], b.items[over:]...)
	}
}

// List returns the retained notifications, newest first.
func (b *Inbox) List() []models.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]models.Notification, len(b.items))
	for i, n := range b.items {
		out[len(b.items)-1-i] = n
	}
	return out
}

// Multi fans a notification out to several notifiers in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n models.Notification) {
	for _, target := range m {
		target.Notify(ctx, n)
	}
}
