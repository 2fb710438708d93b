// Package http implements the local agent API.
//
// It exposes route wiring, request handlers, and middleware for the REST
// API served under /api and the Prometheus endpoint on /metrics. Request
// tracing, access logging and response compression are handled here before
// requests are delegated to the service layer; errors are mapped to
// statuses through errorStatusMap.
package http
