package http

import (
	"errors"
	"net/http"

	"github.com/MKhiriev/go-field-sync/internal/connectivity"
	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/internal/service"
	"github.com/MKhiriev/go-field-sync/internal/store"
	"github.com/MKhiriev/go-field-sync/internal/utils"
	"github.com/MKhiriev/go-field-sync/models"
)

var (
	errInvalidJSON   = errors.New("invalid JSON was passed")
	errRouteNotFound = errors.New("route not found")
	errNotAvailable  = errors.New("not available in this runtime")
)

// Each error below is matched with errors.Is. No error in the tree wraps two
// entries with different statuses.
var errorStatusMap = map[error]int{
	models.ErrValidation:        http.StatusBadRequest,
	models.ErrIntegrity:         http.StatusUnprocessableEntity,
	models.ErrNetwork:           http.StatusBadGateway,
	models.ErrConflict:          http.StatusConflict,
	models.ErrCapacity:          http.StatusRequestEntityTooLarge,
	models.ErrInvalidTransition: http.StatusConflict,
	models.ErrNotFound:          http.StatusNotFound,

	service.ErrVersionIsNotSpecified:   http.StatusInternalServerError,
	service.ErrDrainInProgress:         http.StatusConflict,
	service.ErrSyncInProgress:          http.StatusConflict,
	service.ErrOffline:                 http.StatusServiceUnavailable,
	service.ErrProjectNotRegistered:    http.StatusConflict,
	service.ErrImportNeedsConfirmation: http.StatusPreconditionRequired,
	service.ErrImportDeclined:          http.StatusConflict,

	store.ErrProjectExists:    http.StatusConflict,
	store.ErrSubmissionExists: http.StatusConflict,

	store.ErrBuildingSQLQuery:     http.StatusInternalServerError,
	store.ErrExecutingQuery:       http.StatusInternalServerError,
	store.ErrBeginningTransaction: http.StatusInternalServerError,
	store.ErrCommitingTransaction: http.StatusInternalServerError,
	store.ErrExecutingStatement:   http.StatusInternalServerError,
	store.ErrScanningRow:          http.StatusInternalServerError,
	store.ErrScanningRows:         http.StatusInternalServerError,

	connectivity.ErrUnknownMode: http.StatusBadRequest,

	errInvalidJSON:   http.StatusBadRequest,
	errRouteNotFound: http.StatusNotFound,
	errNotAvailable:  http.StatusNotFound,
}

func statusFromError(err error) int {
	for target, status := range errorStatusMap {
		if errors.Is(err, target) {
			return status
		}
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError logs err under fn and answers with the mapped status. Internal
// failures are not echoed to the caller.
func writeError(w http.ResponseWriter, r *http.Request, fn string, err error) {
	status := statusFromError(err)
	logger.FromRequest(r).Err(err).Str("func", fn).Int("status", status).Msg("request failed")

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	utils.WriteJSON(w, errorResponse{Error: msg}, status)
}
