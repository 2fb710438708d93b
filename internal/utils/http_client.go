package utils

import (
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const userAgent = "fieldsync-agent"

// HTTPClient is the resty client behind every outbound call of the agent:
// the remote adapter and the connectivity probe.
type HTTPClient struct {
	*resty.Client
}

// NewHTTPClient returns a client bound to baseURL with a per-request timeout.
// An empty baseURL leaves the client unbound; requests then need absolute
// URLs.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent)
	if baseURL != "" {
		client.SetBaseURL(WithScheme(baseURL))
	}

	return &HTTPClient{Client: client}
}

// WithScheme prefixes addr with "http://" unless it already names a scheme.
func WithScheme(addr string) string {
	if strings.Contains(addr, "://") {
		return addr
	}
	return "http://" + addr
}
