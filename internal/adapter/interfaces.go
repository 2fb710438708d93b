// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package adapter provides the transport-layer contract for talking to the
// remote record store.
//
// The primary abstraction is [RemoteAdapter], which decouples the sync
// coordinator from the underlying protocol. The package ships an HTTP/REST
// implementation ([NewHTTPRemoteAdapter]).
//
// Transport failures are mapped onto the shared error taxonomy in models so
// that callers can use [errors.Is] for protocol-agnostic handling:
// models.ErrNetwork is retryable, models.ErrValidation and models.ErrConflict
// are rejections, and [ErrUnauthorized] or [ErrTokenExpired] stop the run.
package adapter

import (
	"context"
	"time"

	"github.com/MKhiriev/go-field-sync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/remote_adapter_mock.go -package=mock

// RemoteAdapter defines transport-agnostic communication with the remote
// record store.
type RemoteAdapter interface {
	// Submit creates or replaces one record in the remote project. The
	// remote store is idempotent by record id. A non-zero base is the
	// UpdatedAt of the remote copy the record was edited from; when the
	// remote copy has moved on, the call fails with models.ErrConflict.
	Submit(ctx context.Context, projectRemoteID string, record models.Record, base time.Time) (models.RemoteAck, error)

	// Fetch returns the records created or changed remotely after since,
	// measured on the remote store's clock. A zero since requests the full
	// project.
	Fetch(ctx context.Context, projectRemoteID string, since time.Time) (models.RemoteBatch, error)

	// RegisterProject creates the project remotely, or updates it when
	// def.RemoteID is set, and returns the remote id.
	RegisterProject(ctx context.Context, def models.ProjectDefinition) (string, error)

	// Delete removes one record from the remote project. A record unknown to
	// the remote store yields an error matching models.ErrNotFound.
	Delete(ctx context.Context, projectRemoteID, recordID string) error
}
