// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/MKhiriev/go-field-sync/internal/config"
	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/internal/utils"
)

// Probe considers the remote store reachable when a GET of the probe path
// returns any response below 500. Results are cached for maxAge so that every
// submission mutation does not pay a network round trip.
type Probe struct {
	client *utils.HTTPClient
	path   string
	maxAge time.Duration
	now    func() time.Time

	mu        sync.Mutex
	checkedAt time.Time
	online    bool

	logger *logger.Logger
}

// NewProbe builds a probe against the adapter base address. An empty address
// yields a probe that always reports offline.
func NewProbe(cfg config.Adapter, maxAge time.Duration, log *logger.Logger) *Probe {
	return &Probe{
		client: utils.NewHTTPClient(cfg.HTTPAddress, cfg.RequestTimeout),
		path:   cfg.ProbePath,
		maxAge: maxAge,
		now:    time.Now,
		logger: log,
	}
}

// Online implements [Checker].
func (p *Probe) Online(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.checkedAt.IsZero() && p.now().Sub(p.checkedAt) < p.maxAge {
		return p.online
	}

	online := p.check(ctx)
	if online != p.online {
		p.logger.Info().
			Str("func", "Probe.Online").
			Bool("online", online).
			Msg("connectivity changed")
	}
	p.online = online
	p.checkedAt = p.now()

	return online
}

// Invalidate drops the cached answer so the next call probes again.
func (p *Probe) Invalidate() {
	p.mu.Lock()
	p.checkedAt = time.Time{}
	p.mu.Unlock()
}

func (p *Probe) check(ctx context.Context) bool {
	if p.client.BaseURL == "" {
		return false
	}

	resp, err := p.client.R().SetContext(ctx).Get(p.path)
	if err != nil {
		p.logger.Debug().Err(err).Str("func", "Probe.check").Msg("probe failed")
		return false
	}

	return resp.StatusCode() < http.StatusInternalServerError
}
