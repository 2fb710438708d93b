package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MKhiriev/go-field-sync/internal/utils"
)

type createProjectRequest struct {
	Name       string          `json:"name"`
	Definition json.RawMessage `json:"definition,omitempty"`
}

// decodeJSON reads the request body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errInvalidJSON, err)
	}
	return nil
}

func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.services.ProjectService.List(r.Context())
	if err != nil {
		writeError(w, r, "*Handler.listProjects", err)
		return
	}
	utils.WriteJSON(w, projects, http.StatusOK)
}

func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "*Handler.createProject", err)
		return
	}

	project, err := h.services.ProjectService.Create(r.Context(), req.Name, req.Definition)
	if err != nil {
		writeError(w, r, "*Handler.createProject", err)
		return
	}
	utils.WriteJSON(w, project, http.StatusCreated)
}

func (h *Handler) getProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.services.ProjectService.Get(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, r, "*Handler.getProject", err)
		return
	}
	utils.WriteJSON(w, project, http.StatusOK)
}

func (h *Handler) registerProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.services.SyncService.RegisterProject(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, r, "*Handler.registerProject", err)
		return
	}
	utils.WriteJSON(w, project, http.StatusOK)
}
