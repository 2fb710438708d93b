package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/models"
)

type projectRepository struct {
	db *DB
	q  querier
}

// NewProjectRepository returns a [ProjectRepository] bound to db.
func NewProjectRepository(db *DB) ProjectRepository {
	return &projectRepository{db: db, q: db.DB}
}

func (p *projectRepository) CreateProject(ctx context.Context, project models.Project) error {
	log := logger.FromContext(ctx)

	_, err := p.q.ExecContext(ctx, insertProject,
		project.ID,
		project.Name,
		project.RemoteID,
		nullableJSON(project.Definition),
		project.LastSyncedAt,
		project.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			log.Warn().Str("func", "projectRepository.CreateProject").Str("project_id", project.ID).Msg("project already exists")
			return ErrProjectExists
		}
		log.Err(err).Str("func", "projectRepository.CreateProject").Str("project_id", project.ID).Msg("failed to insert project")
		return p.db.classifyWriteError(ErrExecutingStatement, err)
	}

	return nil
}

func (p *projectRepository) GetProject(ctx context.Context, id string) (models.Project, error) {
	log := logger.FromContext(ctx)

	project, err := scanProject(p.q.QueryRowContext(ctx, getProject, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Project{}, ErrProjectNotFound
	}
	if err != nil {
		log.Err(err).Str("func", "projectRepository.GetProject").Str("project_id", id).Msg("failed to scan project row")
		return models.Project{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return project, nil
}

func (p *projectRepository) ListProjects(ctx context.Context) ([]models.Project, error) {
	log := logger.FromContext(ctx)

	rows, err := p.q.QueryContext(ctx, listProjects)
	if err != nil {
		log.Err(err).Str("func", "projectRepository.ListProjects").Msg("failed to query projects")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		project, scanErr := scanProject(rows)
		if scanErr != nil {
			log.Err(scanErr).Str("func", "projectRepository.ListProjects").Msg("failed to scan project row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, scanErr)
		}
		projects = append(projects, project)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return projects, nil
}

func (p *projectRepository) UpdateProject(ctx context.Context, project models.Project) error {
	log := logger.FromContext(ctx)

	res, err := p.q.ExecContext(ctx, updateProject, project.Name, project.RemoteID, nullableJSON(project.Definition), project.ID)
	if err != nil {
		log.Err(err).Str("func", "projectRepository.UpdateProject").Str("project_id", project.ID).Msg("failed to update project")
		return p.db.classifyWriteError(ErrExecutingStatement, err)
	}

	return expectOneRow(res, ErrProjectNotFound)
}

func (p *projectRepository) SetLastSyncedAt(ctx context.Context, id string, at time.Time) error {
	log := logger.FromContext(ctx)

	res, err := p.q.ExecContext(ctx, updateProjectWatermark, at.UTC(), id)
	if err != nil {
		log.Err(err).Str("func", "projectRepository.SetLastSyncedAt").Str("project_id", id).Msg("failed to advance watermark")
		return p.db.classifyWriteError(ErrExecutingStatement, err)
	}

	return expectOneRow(res, ErrProjectNotFound)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (models.Project, error) {
	var (
		project      models.Project
		definition   sql.NullString
		lastSyncedAt sql.NullTime
	)

	if err := row.Scan(&project.ID, &project.Name, &project.RemoteID, &definition, &lastSyncedAt, &project.CreatedAt); err != nil {
		return models.Project{}, err
	}
	if definition.Valid && definition.String != "" {
		project.Definition = []byte(definition.String)
	}
	if lastSyncedAt.Valid {
		at := lastSyncedAt.Time.UTC()
		project.LastSyncedAt = &at
	}
	project.CreatedAt = project.CreatedAt.UTC()

	return project, nil
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func expectOneRow(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
