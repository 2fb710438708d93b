package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/MKhiriev/go-field-sync/internal/config"
	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/internal/utils"
	"github.com/MKhiriev/go-field-sync/models"
)

const (
	projectsPath    = "/api/v1/projects"
	projectPath     = "/api/v1/projects/{remoteID}"
	submissionsPath = "/api/v1/projects/{remoteID}/submissions"
	submissionPath  = "/api/v1/projects/{remoteID}/submissions/{recordID}"
)

type httpRemoteAdapter struct {
	client *utils.HTTPClient
	token  string
	now    func() time.Time

	logger *logger.Logger
}

type registerResponse struct {
	RemoteID string `json:"remoteId"`
}

// NewHTTPRemoteAdapter constructs an HTTP/REST implementation of
// [RemoteAdapter]. It normalises and validates the base URL from
// cfg.HTTPAddress and configures the underlying HTTP client with the resolved
// base URL and the per-request timeout.
//
// Returns [ErrInvalidAddress] if cfg.HTTPAddress is empty or cannot be parsed
// as a valid URL.
func NewHTTPRemoteAdapter(cfg config.Adapter, log *logger.Logger) (RemoteAdapter, error) {
	baseURL, err := normalizeBaseURL(cfg.HTTPAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}

	client := utils.NewHTTPClient(baseURL, cfg.RequestTimeout)
	client.SetHeader("Accept", "application/json")

	return &httpRemoteAdapter{
		client: client,
		token:  strings.TrimSpace(cfg.Token),
		now:    time.Now,
		logger: log,
	}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

// Submit implements [RemoteAdapter]. It POSTs the record snapshot to
// POST /api/v1/projects/{remoteID}/submissions and decodes the {id, receivedAt}
// acknowledgement. A non-zero base travels as an If-Match version tag.
func (h *httpRemoteAdapter) Submit(ctx context.Context, projectRemoteID string, record models.Record, base time.Time) (models.RemoteAck, error) {
	req, err := h.authedRequest(ctx)
	if err != nil {
		return models.RemoteAck{}, err
	}
	if !base.IsZero() {
		req.SetHeader("If-Match", versionTag(base))
	}

	resp, err := req.
		SetHeader("Content-Type", "application/json").
		SetPathParam("remoteID", projectRemoteID).
		SetBody(record).
		Post(submissionsPath)
	if err != nil {
		return models.RemoteAck{}, mapTransportError("submit request", err)
	}
	if err = mapHTTPError(resp); err != nil {
		h.logger.Debug().
			Str("func", "httpRemoteAdapter.Submit").
			Str("submission_id", record.ID).
			Int("status", resp.StatusCode()).
			Bool("conditional", !base.IsZero()).
			Msg("remote rejected submission")
		return models.RemoteAck{}, err
	}

	var ack models.RemoteAck
	if len(resp.Body()) > 0 {
		if err = json.Unmarshal(resp.Body(), &ack); err != nil {
			return models.RemoteAck{}, fmt.Errorf("%w: decode submit response: %w", models.ErrValidation, err)
		}
	}
	if ack.ID == "" {
		ack.ID = record.ID
	}

	return ack, nil
}

// Fetch implements [RemoteAdapter]. It GETs
// GET /api/v1/projects/{remoteID}/submissions?since=<RFC3339Nano> and takes
// the batch cursor from the response Date header.
func (h *httpRemoteAdapter) Fetch(ctx context.Context, projectRemoteID string, since time.Time) (models.RemoteBatch, error) {
	req, err := h.authedRequest(ctx)
	if err != nil {
		return models.RemoteBatch{}, err
	}

	req.SetPathParam("remoteID", projectRemoteID)
	if !since.IsZero() {
		req.SetQueryParam("since", since.UTC().Format(time.RFC3339Nano))
	}

	resp, err := req.Get(submissionsPath)
	if err != nil {
		return models.RemoteBatch{}, mapTransportError("fetch request", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.RemoteBatch{}, err
	}

	var batch models.RemoteBatch
	if err = json.Unmarshal(resp.Body(), &batch.Records); err != nil {
		return models.RemoteBatch{}, fmt.Errorf("%w: decode fetch response: %w", models.ErrValidation, err)
	}

	if date := resp.Header().Get("Date"); date != "" {
		if at, parseErr := http.ParseTime(date); parseErr == nil {
			batch.Cursor = at.UTC()
		} else {
			h.logger.Debug().Str("func", "httpRemoteAdapter.Fetch").Str("date", date).Msg("unparsable Date header")
		}
	}

	return batch, nil
}

// versionTag renders a record version as a quoted entity tag.
func versionTag(version time.Time) string {
	return strconv.Quote(version.UTC().Format(time.RFC3339Nano))
}

// RegisterProject implements [RemoteAdapter]. A definition without RemoteID
// is created via POST /api/v1/projects; otherwise it is updated in place via
// PATCH /api/v1/projects/{remoteID}.
func (h *httpRemoteAdapter) RegisterProject(ctx context.Context, def models.ProjectDefinition) (string, error) {
	req, err := h.authedRequest(ctx)
	if err != nil {
		return "", err
	}
	req.SetHeader("Content-Type", "application/json").SetBody(def)

	if def.RemoteID != "" {
		resp, patchErr := req.SetPathParam("remoteID", def.RemoteID).Patch(projectPath)
		if patchErr != nil {
			return "", mapTransportError("update project request", patchErr)
		}
		if patchErr = mapHTTPError(resp); patchErr != nil {
			return "", patchErr
		}
		return def.RemoteID, nil
	}

	resp, err := req.Post(projectsPath)
	if err != nil {
		return "", mapTransportError("create project request", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return "", err
	}

	var created registerResponse
	if err = json.Unmarshal(resp.Body(), &created); err != nil || created.RemoteID == "" {
		return "", fmt.Errorf("%w: create project response without remoteId", models.ErrValidation)
	}

	return created.RemoteID, nil
}

// Delete implements [RemoteAdapter]. It sends
// DELETE /api/v1/projects/{remoteID}/submissions/{recordID}.
func (h *httpRemoteAdapter) Delete(ctx context.Context, projectRemoteID, recordID string) error {
	req, err := h.authedRequest(ctx)
	if err != nil {
		return err
	}

	resp, err := req.
		SetPathParam("remoteID", projectRemoteID).
		SetPathParam("recordID", recordID).
		Delete(submissionPath)
	if err != nil {
		return mapTransportError("delete request", err)
	}

	return mapHTTPError(resp)
}

// authedRequest builds a request carrying the bearer token. A JWT token whose
// exp claim has passed fails with [ErrTokenExpired] before anything is sent.
func (h *httpRemoteAdapter) authedRequest(ctx context.Context) (*resty.Request, error) {
	if exp, ok := utils.TokenExpiry(h.token); ok && !exp.After(h.now()) {
		return nil, fmt.Errorf("%w: expired at %s", ErrTokenExpired, exp.UTC().Format(time.RFC3339))
	}

	req := h.client.R().SetContext(ctx)
	if h.token != "" {
		req.SetAuthToken(h.token)
	}
	return req, nil
}
