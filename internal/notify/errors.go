package notify

import (
	"errors"

	"github.com/MKhiriev/go-field-sync/models"
)

// FromError builds an error notification for subject. The cause and remedy
// depend on the kind of err.
func FromError(subject string, err error) models.Notification {
	n := models.Notification{
		Severity: models.SeverityError,
		Subject:  subject,
		Cause:    "unexpected failure",
		Remedy:   "check the agent log and retry",
	}
	if err == nil {
		return n
	}

	switch {
	case errors.Is(err, models.ErrValidation):
		n.Cause = "the record or payload is malformed"
		n.Remedy = "correct the data and submit again"
	case errors.Is(err, models.ErrIntegrity):
		n.Cause = "the transfer payload failed verification"
		n.Remedy = "scan the code again or request a fresh export"
	case errors.Is(err, models.ErrNetwork):
		n.Cause = "the remote store could not be reached"
		n.Remedy = "changes stay queued; sync again once the connection is stable"
	case errors.Is(err, models.ErrConflict):
		n.Cause = "the local and remote versions of a record diverged"
		n.Remedy = "review the record and resolve the conflict"
	case errors.Is(err, models.ErrCapacity):
		n.Cause = "the payload or storage exceeds its limit"
		n.Remedy = "export fewer records at a time or free device storage"
	case errors.Is(err, models.ErrInvalidTransition):
		n.Cause = "the operation is not allowed in the record's current state"
		n.Remedy = "refresh the record and try again"
	case errors.Is(err, models.ErrNotFound):
		n.Cause = "the record or project does not exist"
		n.Remedy = "refresh the list"
	}
	n.Cause += ": " + err.Error()

	return n
}

// Warning builds a warning notification.
func Warning(subject, cause, remedy string) models.Notification {
	return models.Notification{
		Severity: models.SeverityWarning,
		Subject:  subject,
		Cause:    cause,
		Remedy:   remedy,
	}
}
