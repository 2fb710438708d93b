// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/models"
)

type submissionRepository struct {
	db *DB
	q  querier
}

// NewSubmissionRepository returns a [SubmissionRepository] bound to db.
func NewSubmissionRepository(db *DB) SubmissionRepository {
	return &submissionRepository{db: db, q: db.DB}
}

func (s *submissionRepository) InsertSubmission(ctx context.Context, submission models.Submission) error {
	log := logger.FromContext(ctx)

	remoteCopy, err := encodeRemoteCopy(submission.RemoteCopy)
	if err != nil {
		return err
	}

	_, err = s.q.ExecContext(ctx, insertSubmission,
		submission.ID,
		submission.ProjectID,
		string(submission.Status),
		submission.Data,
		submission.Metadata,
		string(submission.Review),
		submission.ErrorReason,
		remoteCopy,
		submission.CreatedAt.UTC(),
		submission.UpdatedAt.UTC(),
		submission.SyncedAt,
		submission.DeletedAt,
		submission.BaseVersion,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSubmissionExists
		}
		log.Err(err).
			Str("func", "submissionRepository.InsertSubmission").
			Str("submission_id", submission.ID).
			Str("project_id", submission.ProjectID).
			Msg("failed to insert submission")
		return s.db.classifyWriteError(ErrExecutingStatement, err)
	}

	return nil
}

func (s *submissionRepository) GetSubmission(ctx context.Context, id string) (models.Submission, error) {
	log := logger.FromContext(ctx)

	query, args, err := buildSelectSubmissionsQuery(SubmissionFilter{IDs: []string{id}, IncludeDeleted: true})
	if err != nil {
		return models.Submission{}, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	submission, err := scanSubmission(s.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Submission{}, ErrSubmissionNotFound
	}
	if err != nil {
		log.Err(err).
			Str("func", "submissionRepository.GetSubmission").
			Str("submission_id", id).
			Msg("failed to scan submission row")
		return models.Submission{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return submission, nil
}

func (s *submissionRepository) UpdateSubmission(ctx context.Context, submission models.Submission) error {
	log := logger.FromContext(ctx)

	remoteCopy, err := encodeRemoteCopy(submission.RemoteCopy)
	if err != nil {
		return err
	}

	res, err := s.q.ExecContext(ctx, updateSubmission,
		string(submission.Status),
		submission.Data,
		submission.Metadata,
		string(submission.Review),
		submission.ErrorReason,
		remoteCopy,
		submission.UpdatedAt.UTC(),
		submission.SyncedAt,
		submission.DeletedAt,
		submission.BaseVersion,
		submission.ID,
	)
	if err != nil {
		log.Err(err).
			Str("func", "submissionRepository.UpdateSubmission").
			Str("submission_id", submission.ID).
			Msg("failed to update submission")
		return s.db.classifyWriteError(ErrExecutingStatement, err)
	}

	return expectOneRow(res, ErrSubmissionNotFound)
}

func (s *submissionRepository) ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	log := logger.FromContext(ctx)

	query, args, err := buildSelectSubmissionsQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "submissionRepository.ListSubmissions").
			Str("project_id", filter.ProjectID).
			Msg("failed to query submissions")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var submissions []models.Submission
	for rows.Next() {
		submission, scanErr := scanSubmission(rows)
		if scanErr != nil {
			log.Err(scanErr).
				Str("func", "submissionRepository.ListSubmissions").
				Str("project_id", filter.ProjectID).
				Msg("failed to scan submission row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, scanErr)
		}
		submissions = append(submissions, submission)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return submissions, nil
}

func scanSubmission(row rowScanner) (models.Submission, error) {
	var (
		submission models.Submission
		status     string
		review     string
		remoteCopy sql.NullString
		syncedAt   sql.NullTime
		deletedAt  sql.NullTime
		base       sql.NullTime
	)

	err := row.Scan(
		&submission.ID,
		&submission.ProjectID,
		&status,
		&submission.Data,
		&submission.Metadata,
		&review,
		&submission.ErrorReason,
		&remoteCopy,
		&submission.CreatedAt,
		&submission.UpdatedAt,
		&syncedAt,
		&deletedAt,
		&base,
	)
	if err != nil {
		return models.Submission{}, err
	}

	if submission.Status, err = models.ParseStatus(status); err != nil {
		return models.Submission{}, err
	}
	if submission.Review, err = models.ParseReviewStatus(review); err != nil {
		return models.Submission{}, err
	}
	if remoteCopy.Valid && remoteCopy.String != "" {
		var rec models.Record
		if err = json.Unmarshal([]byte(remoteCopy.String), &rec); err != nil {
			return models.Submission{}, fmt.Errorf("decode remote copy: %w", err)
		}
		submission.RemoteCopy = &rec
	}
	submission.CreatedAt = submission.CreatedAt.UTC()
	submission.UpdatedAt = submission.UpdatedAt.UTC()
	if syncedAt.Valid {
		at := syncedAt.Time.UTC()
		submission.SyncedAt = &at
	}
	if deletedAt.Valid {
		at := deletedAt.Time.UTC()
		submission.DeletedAt = &at
	}
	if base.Valid {
		at := base.Time.UTC()
		submission.BaseVersion = &at
	}

	return submission, nil
}

func encodeRemoteCopy(rec *models.Record) (any, error) {
	if rec == nil {
		return nil, nil
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: encode remote copy: %w", models.ErrValidation, err)
	}
	return string(raw), nil
}
