// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MKhiriev/go-field-sync/internal/service"
	"github.com/MKhiriev/go-field-sync/internal/utils"
	"github.com/MKhiriev/go-field-sync/models"
)

type submissionRequest struct {
	Data     models.FieldMap `json:"data"`
	Metadata models.Metadata `json:"metadata,omitempty"`
}

type reviewRequest struct {
	Verdict string `json:"verdict"`
}

type resolveRequest struct {
	Keep string `json:"keep"`
}

// parseStatuses reads the comma separated status query parameter.
func parseStatuses(raw string) ([]models.Status, error) {
	if raw == "" {
		return nil, nil
	}
	var out []models.Status
	for _, part := range strings.Split(raw, ",") {
		st, err := models.ParseStatus(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (h *Handler) listSubmissions(w http.ResponseWriter, r *http.Request) {
	statuses, err := parseStatuses(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, "*Handler.listSubmissions", err)
		return
	}

	subs, err := h.services.SubmissionService.List(r.Context(), chi.URLParam(r, "projectID"), statuses...)
	if err != nil {
		writeError(w, r, "*Handler.listSubmissions", err)
		return
	}
	if subs == nil {
		subs = []models.Submission{}
	}
	utils.WriteJSON(w, subs, http.StatusOK)
}

func (h *Handler) createSubmission(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "*Handler.createSubmission", err)
		return
	}

	sub, err := h.services.SubmissionService.Create(r.Context(), chi.URLParam(r, "projectID"), req.Data, req.Metadata)
	if err != nil {
		writeError(w, r, "*Handler.createSubmission", err)
		return
	}
	utils.WriteJSON(w, sub, http.StatusCreated)
}

func (h *Handler) getSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := h.services.SubmissionService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "*Handler.getSubmission", err)
		return
	}
	utils.WriteJSON(w, sub, http.StatusOK)
}

func (h *Handler) updateSubmission(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "*Handler.updateSubmission", err)
		return
	}

	sub, err := h.services.SubmissionService.Update(r.Context(), chi.URLParam(r, "id"), req.Data)
	if err != nil {
		writeError(w, r, "*Handler.updateSubmission", err)
		return
	}
	utils.WriteJSON(w, sub, http.StatusOK)
}

func (h *Handler) deleteSubmission(w http.ResponseWriter, r *http.Request) {
	if err := h.services.SubmissionService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, "*Handler.deleteSubmission", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) sealSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := h.services.SubmissionService.Seal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "*Handler.sealSubmission", err)
		return
	}
	utils.WriteJSON(w, sub, http.StatusOK)
}

func (h *Handler) reviewSubmission(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "*Handler.reviewSubmission", err)
		return
	}
	verdict, err := models.ParseReviewStatus(req.Verdict)
	if err != nil {
		writeError(w, r, "*Handler.reviewSubmission", err)
		return
	}

	sub, err := h.services.SubmissionService.Review(r.Context(), chi.URLParam(r, "id"), verdict)
	if err != nil {
		writeError(w, r, "*Handler.reviewSubmission", err)
		return
	}
	utils.WriteJSON(w, sub, http.StatusOK)
}

func (h *Handler) resolveSubmission(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "*Handler.resolveSubmission", err)
		return
	}
	keep, err := service.ParseResolution(req.Keep)
	if err != nil {
		writeError(w, r, "*Handler.resolveSubmission", err)
		return
	}

	sub, err := h.services.SubmissionService.ResolveConflict(r.Context(), chi.URLParam(r, "id"), keep)
	if err != nil {
		writeError(w, r, "*Handler.resolveSubmission", err)
		return
	}
	utils.WriteJSON(w, sub, http.StatusOK)
}
