package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/models"
)

type intentRepository struct {
	db *DB
	q  querier
}

// NewIntentRepository returns an [IntentRepository] bound to db.
func NewIntentRepository(db *DB) IntentRepository {
	return &intentRepository{db: db, q: db.DB}
}

// Enqueue appends intent and returns it with its assigned Seq. When called
// outside a transaction the row is committed, and therefore durable, before
// Enqueue returns.
func (i *intentRepository) Enqueue(ctx context.Context, intent models.MutationIntent) (models.MutationIntent, error) {
	log := logger.FromContext(ctx)

	if err := intent.Validate(); err != nil {
		return models.MutationIntent{}, err
	}

	var payload any
	if intent.Payload != nil {
		raw, err := json.Marshal(intent.Payload)
		if err != nil {
			return models.MutationIntent{}, fmt.Errorf("%w: encode intent payload: %w", models.ErrValidation, err)
		}
		payload = string(raw)
	}

	res, err := i.q.ExecContext(ctx, insertIntent,
		intent.ID,
		string(intent.Kind),
		intent.SubmissionID,
		intent.ProjectID,
		payload,
		intent.EnqueuedAt.UTC(),
		intent.Attempts,
		intent.LastError,
	)
	if err != nil {
		log.Err(err).
			Str("func", "intentRepository.Enqueue").
			Str("intent_id", intent.ID).
			Str("submission_id", intent.SubmissionID).
			Msg("failed to append intent")
		return models.MutationIntent{}, i.db.classifyWriteError(ErrExecutingStatement, err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return models.MutationIntent{}, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	intent.Seq = seq

	log.Debug().
		Str("func", "intentRepository.Enqueue").
		Str("intent_id", intent.ID).
		Int64("seq", seq).
		Str("kind", string(intent.Kind)).
		Msg("intent enqueued")

	return intent, nil
}

func (i *intentRepository) ListIntents(ctx context.Context, filter IntentFilter) ([]models.MutationIntent, error) {
	log := logger.FromContext(ctx)

	query, args, err := buildSelectIntentsQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := i.q.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "intentRepository.ListIntents").
			Str("project_id", filter.ProjectID).
			Msg("failed to query intents")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var intents []models.MutationIntent
	for rows.Next() {
		intent, scanErr := scanIntent(rows)
		if scanErr != nil {
			log.Err(scanErr).
				Str("func", "intentRepository.ListIntents").
				Str("project_id", filter.ProjectID).
				Msg("failed to scan intent row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, scanErr)
		}
		intents = append(intents, intent)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return intents, nil
}

func (i *intentRepository) CountSubmissionIntents(ctx context.Context, submissionID string) (int, error) {
	var count int
	if err := i.q.QueryRowContext(ctx, countSubmissionIntents, submissionID).Scan(&count); err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "intentRepository.CountSubmissionIntents").
			Str("submission_id", submissionID).
			Msg("failed to count intents")
		return 0, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return count, nil
}

func (i *intentRepository) RemoveIntent(ctx context.Context, id string) error {
	res, err := i.q.ExecContext(ctx, deleteIntent, id)
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "intentRepository.RemoveIntent").
			Str("intent_id", id).
			Msg("failed to remove intent")
		return i.db.classifyWriteError(ErrExecutingStatement, err)
	}

	return expectOneRow(res, ErrIntentNotFound)
}

func (i *intentRepository) RemoveSubmissionIntents(ctx context.Context, submissionID string) (int64, error) {
	res, err := i.q.ExecContext(ctx, deleteSubmissionIntents, submissionID)
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "intentRepository.RemoveSubmissionIntents").
			Str("submission_id", submissionID).
			Msg("failed to remove submission intents")
		return 0, i.db.classifyWriteError(ErrExecutingStatement, err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return removed, nil
}

func (i *intentRepository) RecordFailure(ctx context.Context, id string, lastErr string) error {
	res, err := i.q.ExecContext(ctx, recordIntentFailure, lastErr, id)
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "intentRepository.RecordFailure").
			Str("intent_id", id).
			Msg("failed to record intent failure")
		return i.db.classifyWriteError(ErrExecutingStatement, err)
	}

	return expectOneRow(res, ErrIntentNotFound)
}

func scanIntent(row rowScanner) (models.MutationIntent, error) {
	var (
		intent  models.MutationIntent
		kind    string
		payload sql.NullString
	)

	err := row.Scan(
		&intent.Seq,
		&intent.ID,
		&kind,
		&intent.SubmissionID,
		&intent.ProjectID,
		&payload,
		&intent.EnqueuedAt,
		&intent.Attempts,
		&intent.LastError,
	)
	if err != nil {
		return models.MutationIntent{}, err
	}

	if intent.Kind, err = models.ParseIntentKind(kind); err != nil {
		return models.MutationIntent{}, err
	}
	if payload.Valid && payload.String != "" {
		var rec models.Record
		if err = json.Unmarshal([]byte(payload.String), &rec); err != nil {
			return models.MutationIntent{}, fmt.Errorf("decode intent payload: %w", err)
		}
		intent.Payload = &rec
	}
	intent.EnqueuedAt = intent.EnqueuedAt.UTC()

	return intent, nil
}
