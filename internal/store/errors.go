package store

import (
	"errors"
	"fmt"

	"github.com/MKhiriev/go-field-sync/models"
)

// Sentinel errors returned by repository methods to signal well-known failure
// conditions. Callers should use [errors.Is] to match against these values.
// Not-found sentinels also match [models.ErrNotFound].
var (
	// ErrProjectNotFound is returned when no project carries the requested id.
	ErrProjectNotFound = fmt.Errorf("project %w", models.ErrNotFound)

	// ErrProjectExists is returned when creating a project whose id is taken.
	ErrProjectExists = errors.New("project already exists")

	// ErrSubmissionNotFound is returned when no submission carries the
	// requested id.
	ErrSubmissionNotFound = fmt.Errorf("submission %w", models.ErrNotFound)

	// ErrSubmissionExists is returned when inserting a submission whose id is
	// taken.
	ErrSubmissionExists = errors.New("submission already exists")

	// ErrIntentNotFound is returned when an intent targeted by id or seq does
	// not exist, typically because it has already been applied.
	ErrIntentNotFound = fmt.Errorf("intent %w", models.ErrNotFound)
)

// Low-level database operation errors. These are returned (or wrapped) by
// repository methods when a SQL-level operation fails before any domain logic
// can be applied.
var (
	// ErrBuildingSQLQuery is returned when constructing a parameterised SQL
	// query fails.
	ErrBuildingSQLQuery = errors.New("error building sql query")

	// ErrExecutingQuery is returned when executing a SELECT or similar
	// read-only query against the database fails.
	ErrExecutingQuery = errors.New("error executing sql query")

	// ErrBeginningTransaction is returned when the database driver cannot
	// start a new transaction.
	ErrBeginningTransaction = errors.New("failed to begin transaction")

	// ErrCommitingTransaction is returned when committing an open transaction
	// fails. The transaction is considered rolled back at this point.
	ErrCommitingTransaction = errors.New("failed to commit transaction")

	// ErrExecutingStatement is returned when executing a DML statement
	// (INSERT, UPDATE, DELETE) fails.
	ErrExecutingStatement = errors.New("failed to executing statement")

	// ErrScanningRow is returned when scanning column values from a single
	// result row fails.
	ErrScanningRow = errors.New("failed to scan row")

	// ErrScanningRows is returned when scanning column values during
	// multi-row iteration fails, typically mid-result-set.
	ErrScanningRows = errors.New("failed to scan rows")
)
