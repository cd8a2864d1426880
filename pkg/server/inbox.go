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

package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fedtrust/fedtrust/pkg/metrics"
)

// InboxHandler accepts signed activity POSTs, checks what can be checked
// without network access, and queues them for verification.
type InboxHandler struct {
	queue   Enqueuer
	limits  limits
	logger  *zap.Logger
	metrics *metrics.Collectors
}

// InboxOption configures an InboxHandler
type InboxOption func(*InboxHandler)

// WithMaxBodyBytes bounds the request body
func WithMaxBodyBytes(n int64) InboxOption {
	return func(h *InboxHandler) {
		if n > 0 {
			h.limits.maxBody = n
		}
	}
}

// WithMaxClockSkew bounds the Date header distance from now
func WithMaxClockSkew(d time.Duration) InboxOption {
	return func(h *InboxHandler) {
		if d > 0 {
			h.limits.maxSkew = d
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) InboxOption {
	return func(h *InboxHandler) { h.limits.now = now }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) InboxOption {
	return func(h *InboxHandler) { h.logger = l }
}

// WithMetrics counts inbox responses
func WithMetrics(m *metrics.Collectors) InboxOption {
	return func(h *InboxHandler) { h.metrics = m }
}

// NewInboxHandler creates an inbox handler feeding q.
func NewInboxHandler(q Enqueuer, opts ...InboxOption) *InboxHandler {
	h := &InboxHandler{queue: q, limits: defaultLimits(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *InboxHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.fail(w, r, reject(http.StatusMethodNotAllowed, "inbox only accepts POST"))
		return
	}

	in, err := h.limits.readSigned(w, r)
	if err == nil {
		err = in.parseActivity()
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	job := &Job{
		ID:         uuid.NewString(),
		Activity:   in.activity,
		Meta:       in.meta,
		ReceivedAt: h.limits.now(),
	}
	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		h.fail(w, r, reject(http.StatusServiceUnavailable, "failed to queue activity: %v", err))
		return
	}

	h.logger.Debug("activity queued",
		zap.String("job", job.ID),
		zap.String("uri", in.activity.ID()),
		zap.String("key_id", in.meta.KeyID))
	h.metrics.InboxRequest(strconv.Itoa(http.StatusAccepted))
	w.WriteHeader(http.StatusAccepted)
}

func (h *InboxHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	h.metrics.InboxRequest(strconv.Itoa(status))
	h.logger.Info("inbox request rejected",
		zap.Int("status", status),
		zap.String("remote", r.RemoteAddr),
		zap.Error(err))
	http.Error(w, err.Error(), status)
}
