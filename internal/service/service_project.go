package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/MKhiriev/go-field-sync/models"
)

type projectService struct {
	base
}

func newProjectService(b base) *projectService {
	return &projectService{base: b}
}

func (p *projectService) Create(ctx context.Context, name string, definition json.RawMessage) (models.Project, error) {
	start := time.Now()

	name = strings.TrimSpace(name)
	if name == "" {
		return models.Project{}, ErrEmptyProjectName
	}
	if len(definition) > 0 && !json.Valid(definition) {
		return models.Project{}, fmt.Errorf("%w: project definition is not valid JSON", models.ErrValidation)
	}

	project := models.Project{
		ID:         p.ids.Generate(),
		Name:       name,
		Definition: definition,
		CreatedAt:  p.clock(),
	}

	err := p.storages.Projects.CreateProject(ctx, project)
	p.observe(ctx, "project.create", start, err)
	if err != nil {
		p.log(ctx).Err(err).Str("func", "projectService.Create").Str("name", name).Msg("failed to create project")
		return models.Project{}, err
	}

	return project, nil
}

func (p *projectService) Get(ctx context.Context, id string) (models.Project, error) {
	return p.storages.Projects.GetProject(ctx, id)
}

func (p *projectService) List(ctx context.Context) ([]models.Project, error) {
	return p.storages.Projects.ListProjects(ctx)
}
