// Package server wires and runs the agent's local API server.
//
// It owns the HTTP listener lifecycle: binding, serving, and graceful
// shutdown once the caller's context is cancelled.
package server
