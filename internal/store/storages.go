package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/MKhiriev/go-field-sync/internal/config"
	"github.com/MKhiriev/go-field-sync/internal/logger"
)

// Storages groups the agent repositories. A Storages obtained inside
// [Storages.WithinTx] is bound to the open transaction; the top-level value
// is bound to the connection pool.
type Storages struct {
	Projects    ProjectRepository
	Submissions SubmissionRepository
	Intents     IntentRepository

	db   *DB
	path string
	inTx bool
}

// NewStorages initialises the storage layer:
//  1. Opens the SQLite database at cfg.DB.Path, creating the file if it does
//     not yet exist.
//  2. Runs pending schema migrations via [DB.Migrate].
//  3. Wires the repositories to the connection.
func NewStorages(ctx context.Context, cfg config.Storage, log *logger.Logger) (*Storages, error) {
	log.Info().Str("path", cfg.DB.Path).Msg("creating new storages...")

	db, err := NewConnectSQLite(ctx, cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("sqlite connection error: %w", err)
	}

	if err = db.Migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	s := NewStoragesFromDB(db)
	s.path = cfg.DB.Path
	return s, nil
}

// NewStoragesFromDB wires repositories to an already opened database.
func NewStoragesFromDB(db *DB) *Storages {
	return &Storages{
		Projects:    NewProjectRepository(db),
		Submissions: NewSubmissionRepository(db),
		Intents:     NewIntentRepository(db),
		db:          db,
	}
}

// WithinTx runs fn with repositories bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise. Nested
// calls reuse the outer transaction.
func (s *Storages) WithinTx(ctx context.Context, fn func(tx *Storages) error) error {
	if s.inTx {
		return fn(s)
	}

	log := logger.FromContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Err(err).Str("func", "Storages.WithinTx").Msg("failed to begin transaction")
		return fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}
	defer tx.Rollback()

	if err = fn(s.bind(tx)); err != nil {
		return err
	}

	if commitErr := tx.Commit(); commitErr != nil {
		log.Err(commitErr).Str("func", "Storages.WithinTx").Msg("failed to commit transaction")
		return s.db.classifyWriteError(ErrCommitingTransaction, commitErr)
	}

	return nil
}

func (s *Storages) bind(tx *sql.Tx) *Storages {
	return &Storages{
		Projects:    &projectRepository{db: s.db, q: tx},
		Submissions: &submissionRepository{db: s.db, q: tx},
		Intents:     &intentRepository{db: s.db, q: tx},
		db:          s.db,
		path:        s.path,
		inTx:        true,
	}
}

// Usage returns the bytes the database occupies on disk: the main file
// pages plus the write-ahead log when present.
func (s *Storages) Usage(ctx context.Context) (int64, error) {
	var pages, size int64
	if err := s.db.QueryRowContext(ctx, pageCount).Scan(&pages); err != nil {
		return 0, fmt.Errorf("%w: page_count: %w", ErrExecutingQuery, err)
	}
	if err := s.db.QueryRowContext(ctx, pageSize).Scan(&size); err != nil {
		return 0, fmt.Errorf("%w: page_size: %w", ErrExecutingQuery, err)
	}

	usage := pages * size
	if s.path != "" {
		if info, err := os.Stat(s.path + "-wal"); err == nil {
			usage += info.Size()
		}
	}

	return usage, nil
}

// Close releases the database connection.
func (s *Storages) Close() error {
	if s.inTx {
		return nil
	}
	return s.db.Close()
}
