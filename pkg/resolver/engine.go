// Copyright (C) 2026 fedtrust authors
//
// This file is part of fedtrust.
//
// fedtrust is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// fedtrust is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with fedtrust.  If not, see <https://www.gnu.org/licenses/>.

package resolver

import (
	"context"

	"go.uber.org/zap"

	"github.com/fedtrust/fedtrust/pkg/client"
	"github.com/fedtrust/fedtrust/pkg/guard"
	"github.com/fedtrust/fedtrust/pkg/metrics"
	"github.com/fedtrust/fedtrust/pkg/protocol"
)

// Engine holds the collaborators shared by every session. It has no mutable
// state and is safe for concurrent use.
type Engine struct {
	client      *client.Client
	guard       guard.Guard
	local       LocalObjectStore
	keys        KeySource
	signedFetch bool
	limit       int
	logger      *zap.Logger
	metrics     *metrics.Collectors
}

// Option configures an Engine
type Option func(*Engine)

// WithLocalStore serves self-host URLs from store
func WithLocalStore(store LocalObjectStore) Option {
	return func(e *Engine) { e.local = store }
}

// WithSignedFetch signs every remote GET with the key from keys
func WithSignedFetch(keys KeySource) Option {
	return func(e *Engine) {
		e.keys = keys
		e.signedFetch = keys != nil
	}
}

// WithRecursionLimit sets the per-session URI limit
func WithRecursionLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.limit = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records resolution metrics
func WithMetrics(m *metrics.Collectors) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates a resolver engine.
func NewEngine(c *client.Client, g guard.Guard, opts ...Option) *Engine {
	e := &Engine{
		client: c,
		guard:  g,
		limit:  DefaultRecursionLimit,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewSession starts a new resolution session.
func (e *Engine) NewSession() *Session {
	return &Session{
		engine:  e,
		limit:   e.limit,
		history: make(map[string]struct{}),
	}
}

// Resolve resolves ref in a session of its own.
func (e *Engine) Resolve(ctx context.Context, ref protocol.ObjectReference, opts ...ResolveOption) (protocol.Document, error) {
	s := e.NewSession()
	defer s.Close()
	return s.Resolve(ctx, ref, opts...)
}

// Limit returns the per-session URI limit.
func (e *Engine) Limit() int {
	return e.limit
}
