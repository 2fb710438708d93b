// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/internal/service"
	"github.com/MKhiriev/go-field-sync/internal/transfer"
	"github.com/MKhiriev/go-field-sync/internal/utils"
	"github.com/MKhiriev/go-field-sync/models"
)

type idsRequest struct {
	IDs []string `json:"ids"`
}

type confirmResponse struct {
	Confirmed int `json:"confirmed"`
}

// exportPayload writes a payload to the requested medium. With format=raw
// the response body is the written artefact itself (payload bytes or PNG)
// instead of the JSON description.
func (h *Handler) exportPayload(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	medium := service.MediumFile
	if m := query.Get("medium"); m != "" {
		parsed, err := service.ParseMedium(m)
		if err != nil {
			writeError(w, r, "*Handler.exportPayload", err)
			return
		}
		medium = parsed
	}

	var req idsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "*Handler.exportPayload", err)
		return
	}

	res, err := h.services.TransferService.Export(r.Context(), chi.URLParam(r, "projectID"), req.IDs, medium)
	if err != nil {
		writeError(w, r, "*Handler.exportPayload", err)
		return
	}

	if query.Get("format") != "raw" {
		utils.WriteJSON(w, res, http.StatusCreated)
		return
	}

	body, contentType := res.Payload, "application/json"
	if res.Medium == service.MediumQR {
		body, contentType = res.Image, "image/png"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.FileName))
	w.WriteHeader(http.StatusCreated)
	if _, err = w.Write(body); err != nil {
		logger.FromRequest(r).Err(err).
			Str("func", "*Handler.exportPayload").
			Str("file_name", res.FileName).
			Msg("failed to write payload body")
	}
}

// importPayload merges the payload in the request body into the project of
// the path. confirm=true accepts a payload of another project, confirm=false
// declines it, and without the parameter such a payload answers 428.
func (h *Handler) importPayload(w http.ResponseWriter, r *http.Request) {
	raw, err := transfer.ReadAll(r.Body, h.deps.MaxImportBytes)
	if err != nil {
		writeError(w, r, "*Handler.importPayload", err)
		return
	}

	var confirm service.ConfirmFunc
	if c := r.URL.Query().Get("confirm"); c != "" {
		accept, err := strconv.ParseBool(c)
		if err != nil {
			writeError(w, r, "*Handler.importPayload", fmt.Errorf("%w: confirm: %w", models.ErrValidation, err))
			return
		}
		confirm = func(models.TransferPayload) bool { return accept }
	}

	report, err := h.services.TransferService.Import(r.Context(), raw, chi.URLParam(r, "projectID"), confirm)
	if err != nil {
		writeError(w, r, "*Handler.importPayload", err)
		return
	}
	utils.WriteJSON(w, report, http.StatusOK)
}

func (h *Handler) confirmHandoff(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "*Handler.confirmHandoff", err)
		return
	}

	n, err := h.services.TransferService.ConfirmHandoff(r.Context(), chi.URLParam(r, "projectID"), req.IDs)
	if err != nil {
		writeError(w, r, "*Handler.confirmHandoff", err)
		return
	}
	utils.WriteJSON(w, confirmResponse{Confirmed: n}, http.StatusOK)
}
