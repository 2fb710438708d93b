package http

import (
	"net/http"

	"github.com/MKhiriev/go-field-sync/internal/connectivity"
	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/internal/notify"
	"github.com/MKhiriev/go-field-sync/internal/service"
)

// Dependencies are the runtime collaborators the API exposes besides the
// services. Every field is optional; the matching routes answer 404 when
// one is missing.
type Dependencies struct {
	// Inbox backs GET /api/notifications.
	Inbox *notify.Inbox
	// Connectivity backs the manual online/offline switch.
	Connectivity *connectivity.Override
	// Metrics is served on /metrics.
	Metrics http.Handler
	// MaxImportBytes bounds the body of a transfer import.
	MaxImportBytes int64
}

type Handler struct {
	services *service.Services
	deps     Dependencies

	logger *logger.Logger
}

func NewHandler(services *service.Services, deps Dependencies, logger *logger.Logger) *Handler {
	logger.Info().Msg("http handler created")
	return &Handler{
		services: services,
		deps:     deps,
		logger:   logger,
	}
}
