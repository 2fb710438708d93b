package adapter

import "errors"

var (
	// ErrUnauthorized is returned for 401 and 403 responses. It is not
	// retryable: the operator has to supply a new token.
	ErrUnauthorized = errors.New("remote store rejected credentials")

	// ErrTokenExpired is returned before any request is sent when the
	// configured bearer token carries an exp claim in the past.
	ErrTokenExpired = errors.New("remote token expired")

	// ErrInvalidAddress is returned by the constructor for an unusable base URL.
	ErrInvalidAddress = errors.New("invalid adapter http address")
)
