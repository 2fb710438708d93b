package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/internal/utils"
	"github.com/MKhiriev/go-field-sync/models"
)

func (h *Handler) listQueue(w http.ResponseWriter, r *http.Request) {
	intents, err := h.services.QueueService.Pending(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, r, "*Handler.listQueue", err)
		return
	}
	if intents == nil {
		intents = []models.MutationIntent{}
	}
	utils.WriteJSON(w, intents, http.StatusOK)
}

func (h *Handler) drainQueue(w http.ResponseWriter, r *http.Request) {
	outcome := h.services.QueueService.Drain(r.Context(), chi.URLParam(r, "projectID"))

	status := http.StatusOK
	if outcome.Err != nil {
		status = statusFromError(outcome.Err)
		logger.FromRequest(r).Err(outcome.Err).Str("func", "*Handler.drainQueue").Int("applied", outcome.Applied).Msg("drain stopped")
	}
	utils.WriteJSON(w, outcome, status)
}

// syncProject runs one sync and answers with its report. A failed run keeps
// the report as body and maps its first error to the status.
func (h *Handler) syncProject(w http.ResponseWriter, r *http.Request) {
	report := h.services.SyncService.SyncNow(r.Context(), chi.URLParam(r, "projectID"))

	status := http.StatusOK
	if !report.OK() {
		err := report.FirstErr()
		status = statusFromError(err)
		logger.FromRequest(r).Err(err).Str("func", "*Handler.syncProject").Str("project_id", report.ProjectID).Msg("sync failed")
	}
	utils.WriteJSON(w, report, status)
}

func (h *Handler) syncAll(w http.ResponseWriter, r *http.Request) {
	reports := h.services.SyncService.SyncAll(r.Context())
	if reports == nil {
		reports = []models.SyncReport{}
	}
	utils.WriteJSON(w, reports, http.StatusOK)
}
