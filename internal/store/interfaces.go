package store

import (
	"context"
	"time"

	"github.com/MKhiriev/go-field-sync/models"
)

// ProjectRepository persists projects and their sync watermark.
type ProjectRepository interface {
	CreateProject(ctx context.Context, project models.Project) error
	GetProject(ctx context.Context, id string) (models.Project, error)
	ListProjects(ctx context.Context) ([]models.Project, error)
	UpdateProject(ctx context.Context, project models.Project) error
	SetLastSyncedAt(ctx context.Context, id string, at time.Time) error
}

// SubmissionRepository persists submissions including tombstones.
type SubmissionRepository interface {
	InsertSubmission(ctx context.Context, submission models.Submission) error
	GetSubmission(ctx context.Context, id string) (models.Submission, error)
	UpdateSubmission(ctx context.Context, submission models.Submission) error
	ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
}

// IntentRepository is the durable part of the offline mutation queue.
// Intents are append-only; they leave the table only through RemoveIntent
// after remote confirmation or RemoveSubmissionIntents when superseded.
type IntentRepository interface {
	Enqueue(ctx context.Context, intent models.MutationIntent) (models.MutationIntent, error)
	ListIntents(ctx context.Context, filter IntentFilter) ([]models.MutationIntent, error)
	CountSubmissionIntents(ctx context.Context, submissionID string) (int, error)
	RemoveIntent(ctx context.Context, id string) error
	RemoveSubmissionIntents(ctx context.Context, submissionID string) (int64, error)
	RecordFailure(ctx context.Context, id string, lastErr string) error
}
