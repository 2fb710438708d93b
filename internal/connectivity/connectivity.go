// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package connectivity decides whether the remote record store is reachable.
//
// Services never probe the network themselves; they receive a [Checker] and
// ask it. Three implementations are provided:
//   - [Probe] issues a lightweight HTTP request against the remote store and
//     caches the answer for a short period;
//   - [Manual] holds a flag toggled by tests and by the operator;
//   - [Override] wraps any checker and lets the operator force the answer
//     through the local API.
package connectivity

import (
	"context"
	"sync/atomic"
)

// Checker reports whether the remote store can currently be reached.
type Checker interface {
	Online(ctx context.Context) bool
}

// Manual is a [Checker] whose answer is set explicitly.
type Manual struct {
	online atomic.Bool
}

// NewManual returns a Manual checker starting in the given state.
func NewManual(online bool) *Manual {
	m := &Manual{}
	m.online.Store(online)
	return m
}

func (m *Manual) Online(context.Context) bool {
	return m.online.Load()
}

// Set changes the reported state.
func (m *Manual) Set(online bool) {
	m.online.Store(online)
}
