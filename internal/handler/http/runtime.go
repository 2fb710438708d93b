package http

import (
	"net/http"

	"github.com/MKhiriev/go-field-sync/internal/connectivity"
	"github.com/MKhiriev/go-field-sync/internal/utils"
	"github.com/MKhiriev/go-field-sync/models"
)

type connectivityState struct {
	Mode   connectivity.Mode `json:"mode"`
	Online bool              `json:"online"`
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	if h.deps.Inbox == nil {
		writeError(w, r, "*Handler.listNotifications", errNotAvailable)
		return
	}

	items := h.deps.Inbox.List()
	if items == nil {
		items = []models.Notification{}
	}
	utils.WriteJSON(w, items, http.StatusOK)
}

func (h *Handler) getConnectivity(w http.ResponseWriter, r *http.Request) {
	if h.deps.Connectivity == nil {
		writeError(w, r, "*Handler.getConnectivity", errNotAvailable)
		return
	}

	utils.WriteJSON(w, connectivityState{
		Mode:   h.deps.Connectivity.Mode(),
		Online: h.deps.Connectivity.Online(r.Context()),
	}, http.StatusOK)
}

// setConnectivity switches between automatic detection and a forced
// online or offline state.
func (h *Handler) setConnectivity(w http.ResponseWriter, r *http.Request) {
	if h.deps.Connectivity == nil {
		writeError(w, r, "*Handler.setConnectivity", errNotAvailable)
		return
	}

	var req struct {
		Mode string `json:"mode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "*Handler.setConnectivity", err)
		return
	}
	mode, err := connectivity.ParseMode(req.Mode)
	if err != nil {
		writeError(w, r, "*Handler.setConnectivity", err)
		return
	}

	h.deps.Connectivity.SetMode(mode)
	h.getConnectivity(w, r)
}
