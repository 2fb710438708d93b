package store

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/MKhiriev/go-field-sync/models"
)

const (
	insertProject = `INSERT INTO projects (id, name, remote_id, definition, last_synced_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?);`

	getProject = `SELECT id, name, remote_id, definition, last_synced_at, created_at
		FROM projects
		WHERE id = ?;`

	listProjects = `SELECT id, name, remote_id, definition, last_synced_at, created_at
		FROM projects
		ORDER BY created_at, id;`

	updateProject = `UPDATE projects
		SET name = ?, remote_id = ?, definition = ?
		WHERE id = ?;`

	updateProjectWatermark = `UPDATE projects
		SET last_synced_at = ?
		WHERE id = ?;`

	insertSubmission = `INSERT INTO submissions (
			id,
			project_id,
			status,
			data,
			metadata,
			review_status,
			error_reason,
			remote_copy,
			created_at,
			updated_at,
			synced_at,
			deleted_at,
			base_version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`

	updateSubmission = `UPDATE submissions SET
			status        = ?,
			data          = ?,
			metadata      = ?,
			review_status = ?,
			error_reason  = ?,
			remote_copy   = ?,
			updated_at    = ?,
			synced_at     = ?,
			deleted_at    = ?,
			base_version  = ?
		WHERE id = ?;`

	insertIntent = `INSERT INTO mutation_intents (
			id,
			kind,
			submission_id,
			project_id,
			payload,
			enqueued_at,
			attempts,
			last_error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?);`

	deleteIntent = `DELETE FROM mutation_intents WHERE id = ?;`

	deleteSubmissionIntents = `DELETE FROM mutation_intents WHERE submission_id = ?;`

	recordIntentFailure = `UPDATE mutation_intents
		SET attempts = attempts + 1, last_error = ?
		WHERE id = ?;`

	countSubmissionIntents = `SELECT COUNT(*) FROM mutation_intents WHERE submission_id = ?;`

	pageCount = `PRAGMA page_count;`
	pageSize  = `PRAGMA page_size;`
)

var submissionColumns = []string{
	"id",
	"project_id",
	"status",
	"data",
	"metadata",
	"review_status",
	"error_reason",
	"remote_copy",
	"created_at",
	"updated_at",
	"synced_at",
	"deleted_at",
	"base_version",
}

var intentColumns = []string{
	"seq",
	"id",
	"kind",
	"submission_id",
	"project_id",
	"payload",
	"enqueued_at",
	"attempts",
	"last_error",
}

// SubmissionFilter narrows [SubmissionRepository.ListSubmissions]. Zero
// fields do not filter.
type SubmissionFilter struct {
	ProjectID      string
	Statuses       []models.Status
	IDs            []string
	IncludeDeleted bool
}

// IntentFilter narrows [IntentRepository.ListIntents]. At least one of the
// fields should be set.
type IntentFilter struct {
	ProjectID    string
	SubmissionID string
}

var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// buildSelectSubmissionsQuery builds the listing query for filter. Results
// are ordered by creation time so listings are stable.
func buildSelectSubmissionsQuery(filter SubmissionFilter) (string, []any, error) {
	query := builder.Select(submissionColumns...).From("submissions")

	if filter.ProjectID != "" {
		query = query.Where(sq.Eq{"project_id": filter.ProjectID})
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		query = query.Where(sq.Eq{"status": statuses})
	}
	if len(filter.IDs) > 0 {
		query = query.Where(sq.Eq{"id": filter.IDs})
	}
	if !filter.IncludeDeleted {
		query = query.Where(sq.Eq{"deleted_at": nil})
	}

	return query.OrderBy("created_at", "id").ToSql()
}

// buildSelectIntentsQuery builds the queue listing query. Intents are always
// returned in append order.
func buildSelectIntentsQuery(filter IntentFilter) (string, []any, error) {
	query := builder.Select(intentColumns...).From("mutation_intents")

	if filter.ProjectID != "" {
		query = query.Where(sq.Eq{"project_id": filter.ProjectID})
	}
	if filter.SubmissionID != "" {
		query = query.Where(sq.Eq{"submission_id": filter.SubmissionID})
	}

	return query.OrderBy("seq").ToSql()
}
