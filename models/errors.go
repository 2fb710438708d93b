package models

import "errors"

// Error taxonomy shared by every layer. Concrete errors wrap one of these with
// %w so callers classify failures with [errors.Is].
var (
	// ErrValidation marks malformed input: a payload, intent or field value
	// that cannot be accepted. Nothing is applied.
	ErrValidation = errors.New("validation error")

	// ErrIntegrity marks a transfer payload whose signature does not match
	// its content. The payload is rejected as a whole and may be re-scanned.
	ErrIntegrity = errors.New("integrity error")

	// ErrNetwork marks a transient remote failure (transport error, timeout,
	// 5xx). Remote calls failing with it are retried a bounded number of times.
	ErrNetwork = errors.New("network error")

	// ErrConflict marks local and remote versions diverging on the same id,
	// or a remote rejection of a record. It needs manual resolution.
	ErrConflict = errors.New("conflict error")

	// ErrCapacity marks a payload that exceeds the limit of the chosen
	// transfer medium.
	ErrCapacity = errors.New("capacity error")

	// ErrInvalidTransition is returned when a lifecycle operation is not
	// allowed from the submission's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotFound is returned when a submission or project does not exist.
	ErrNotFound = errors.New("not found")
)

// Retryable reports whether err is a transient failure worth retrying.
func Retryable(err error) bool {
	return errors.Is(err, ErrNetwork)
}
