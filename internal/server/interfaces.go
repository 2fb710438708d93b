package server

import "context"

// Server defines the lifecycle contract of the local API server.
//
// RunServer serves requests until ctx is cancelled, then shuts down
// gracefully and returns. Shutdown may be called from another goroutine to
// stop the server early.
type Server interface {
	// RunServer starts serving requests and blocks until the server stops.
	RunServer(ctx context.Context) error

	// Shutdown gracefully stops the server and frees associated resources.
	Shutdown(ctx context.Context) error
}
