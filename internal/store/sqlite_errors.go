// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/MKhiriev/go-field-sync/models"
)

// ErrorClassification is the result type returned by [ErrorClassificator.Classify].
// It indicates whether a failed database operation should be retried or
// abandoned.
type ErrorClassification int

const (
	// NonRetryable indicates that the failed operation should not be retried.
	// This is the default classification for unrecognised errors and
	// constraint violations.
	NonRetryable ErrorClassification = iota

	// Retryable indicates that the failed operation may succeed if attempted
	// again once the competing writer releases the database.
	Retryable

	// StorageFull indicates that the device ran out of space. Callers surface
	// it as [models.ErrCapacity].
	StorageFull
)

// ErrorClassificator classifies driver errors.
type ErrorClassificator interface {
	Classify(err error) ErrorClassification
}

// SQLiteErrorClassifier implements [ErrorClassificator] for mattn/go-sqlite3.
type SQLiteErrorClassifier struct{}

// NewSQLiteErrorClassifier constructs a [SQLiteErrorClassifier] ready for use.
func NewSQLiteErrorClassifier() *SQLiteErrorClassifier {
	return &SQLiteErrorClassifier{}
}

// Classify implements [ErrorClassificator].
//
// Retryable codes: SQLITE_BUSY, SQLITE_LOCKED.
// Storage full: SQLITE_FULL.
// Everything else, including constraint violations, is [NonRetryable].
func (c *SQLiteErrorClassifier) Classify(err error) ErrorClassification {
	if err == nil {
		return NonRetryable
	}

	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return NonRetryable
	}

	switch sqliteErr.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return Retryable
	case sqlite3.ErrFull:
		return StorageFull
	default:
		return NonRetryable
	}
}

// isUniqueViolation reports whether err is a primary key or unique
// constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// classifyWriteError wraps err with the sentinel matching its classification.
func (db *DB) classifyWriteError(sentinel, err error) error {
	if db.errorClassificator != nil && db.errorClassificator.Classify(err) == StorageFull {
		return fmt.Errorf("%w: %w: %w", sentinel, models.ErrCapacity, err)
	}

	return fmt.Errorf("%w: %w", sentinel, err)
}
