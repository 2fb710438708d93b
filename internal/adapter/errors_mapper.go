package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/MKhiriev/go-field-sync/models"
)

func mapHTTPError(resp *resty.Response) error {
	if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
		return nil
	}

	body := strings.TrimSpace(string(resp.Body()))
	if body == "" {
		body = http.StatusText(resp.StatusCode())
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: remote rejected record: %s", models.ErrValidation, body)
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, body)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", models.ErrNotFound, body)
	case code == http.StatusConflict, code == http.StatusPreconditionFailed:
		return fmt.Errorf("%w: %s", models.ErrConflict, body)
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: http %d: %s", models.ErrNetwork, code, body)
	default:
		return fmt.Errorf("http %d: %s", code, body)
	}
}

// mapTransportError classifies an error returned before any response was
// read. Cancellation by the caller is passed through untouched; everything
// else, including per-call timeouts, is a network failure.
func mapTransportError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return fmt.Errorf("%w: %s: %w", models.ErrNetwork, op, err)
}
