// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"encoding/json"

	"github.com/MKhiriev/go-field-sync/internal/transfer"
	"github.com/MKhiriev/go-field-sync/models"
)

// SubmissionService owns the submission lifecycle. Every mutation holds the
// submission's lock and commits in one store transaction; while offline,
// remote-bound changes are appended to the queue in that same transaction.
type SubmissionService interface {
	// Create stores a new draft. The configured agent identity and device id
	// are added to metadata unless already present.
	Create(ctx context.Context, projectID string, data models.FieldMap, metadata models.Metadata) (models.Submission, error)
	Get(ctx context.Context, id string) (models.Submission, error)
	// List returns the live submissions of a project, optionally restricted
	// to the given statuses.
	List(ctx context.Context, projectID string, statuses ...models.Status) ([]models.Submission, error)

	// Update replaces the collected data.
	Update(ctx context.Context, id string, data models.FieldMap) (models.Submission, error)
	// Seal finalizes a draft or modified submission and stamps its digest.
	Seal(ctx context.Context, id string) (models.Submission, error)
	// Delete tombstones a submission. Remote-known submissions get a delete
	// intent; pending intents of never-synced ones are dropped.
	Delete(ctx context.Context, id string) error

	MarkSynced(ctx context.Context, id string) (models.Submission, error)
	MarkError(ctx context.Context, id, reason string) (models.Submission, error)

	// Review records a supervisor verdict.
	Review(ctx context.Context, id string, verdict models.ReviewStatus) (models.Submission, error)
	// ResolveConflict leaves the error state keeping either the local or the
	// retained remote version.
	ResolveConflict(ctx context.Context, id string, keep Resolution) (models.Submission, error)
}

// QueueService is the offline mutation queue.
type QueueService interface {
	// Enqueue durably appends an intent.
	Enqueue(ctx context.Context, intent models.MutationIntent) (models.MutationIntent, error)
	// Drain replays a project's intents in order, stopping at the first
	// failure.
	Drain(ctx context.Context, projectID string) models.DrainOutcome
	// Pending lists the queued intents of a project in replay order.
	Pending(ctx context.Context, projectID string) ([]models.MutationIntent, error)
}

// SyncService reconciles local projects with the remote store.
type SyncService interface {
	SyncNow(ctx context.Context, projectID string) models.SyncReport
	// SyncAll syncs every registered project in parallel.
	SyncAll(ctx context.Context) []models.SyncReport
	// RegisterProject creates the project remotely, or updates its
	// definition when it is already registered.
	RegisterProject(ctx context.Context, projectID string) (models.Project, error)
}

// ConfirmFunc is asked before a payload of another project is imported.
type ConfirmFunc func(payload models.TransferPayload) bool

// TransferService moves submissions between devices without network access.
type TransferService interface {
	// Export builds a signed payload for the selected submissions (all
	// sealed ones when ids is empty) and writes it to the chosen medium.
	Export(ctx context.Context, projectID string, ids []string, medium Medium) (ExportResult, error)
	// Import verifies raw and merges its records into the active project.
	Import(ctx context.Context, raw []byte, activeProjectID string, confirm ConfirmFunc) (models.ImportReport, error)
	// Scan reads frames from a capture source until a valid payload is seen
	// and imports it.
	Scan(ctx context.Context, open transfer.SourceOpener, activeProjectID string, confirm ConfirmFunc) (models.ImportReport, error)
	// ConfirmHandoff marks finalized submissions as synced once the receiving
	// device has taken them over.
	ConfirmHandoff(ctx context.Context, projectID string, ids []string) (int, error)
}

type ProjectService interface {
	Create(ctx context.Context, name string, definition json.RawMessage) (models.Project, error)
	Get(ctx context.Context, id string) (models.Project, error)
	List(ctx context.Context) ([]models.Project, error)
}

type AppInfoService interface {
	GetAppVersion(ctx context.Context) string
}

// SyncWatcher runs automatic sync: periodically while online and once after
// connectivity is regained and has held for the debounce window.
type SyncWatcher interface {
	Start(ctx context.Context)
	Stop()
}
