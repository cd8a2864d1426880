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
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/fedtrust/fedtrust/pkg/federr"
	"github.com/fedtrust/fedtrust/pkg/verifier"
)

type contextKey string

const resultKey contextKey = "verified_activity"

// ErrorHandler writes the response for a rejected request
type ErrorHandler func(w http.ResponseWriter, r *http.Request, status int, err error)

// SignatureMiddleware verifies signed activity POSTs inline and hands the
// verified result to the next handler through the request context.
type SignatureMiddleware struct {
	verifier     verifier.InboxVerifier
	limits       limits
	errorHandler ErrorHandler
	optional     bool
}

// NewSignatureMiddleware creates a new signature middleware
func NewSignatureMiddleware(v verifier.InboxVerifier) *SignatureMiddleware {
	return &SignatureMiddleware{
		verifier:     v,
		limits:       defaultLimits(),
		errorHandler: defaultErrorHandler,
		optional:     false,
	}
}

// SetErrorHandler sets a custom error handler
func (m *SignatureMiddleware) SetErrorHandler(handler ErrorHandler) {
	m.errorHandler = handler
}

// SetOptional sets whether signature verification is optional
// If true, requests without signatures are allowed to pass through
func (m *SignatureMiddleware) SetOptional(optional bool) {
	m.optional = optional
}

// SetMaxBodyBytes bounds the request body
func (m *SignatureMiddleware) SetMaxBodyBytes(n int64) {
	if n > 0 {
		m.limits.maxBody = n
	}
}

// Wrap wraps an HTTP handler with signature verification
func (m *SignatureMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip verification for OPTIONS requests (CORS preflight)
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if m.optional && r.Header.Get("Signature") == "" && r.Header.Get("Authorization") == "" {
			next.ServeHTTP(w, r)
			return
		}

		in, err := m.limits.readSigned(w, r)
		if err == nil {
			err = in.parseActivity()
		}
		if err != nil {
			m.errorHandler(w, r, StatusOf(err), err)
			return
		}

		// Restore body for handler
		r.Body = io.NopCloser(bytes.NewReader(in.body))

		res, err := m.verifier.Verify(r.Context(), in.activity, in.meta)
		if err != nil {
			m.errorHandler(w, r, verifyStatus(err), fmt.Errorf("signature verification failed: %w", err))
			return
		}

		ctx := context.WithValue(r.Context(), resultKey, res)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ResultFromContext returns the verified activity of the request
func ResultFromContext(ctx context.Context) (*verifier.Result, bool) {
	res, ok := ctx.Value(resultKey).(*verifier.Result)
	return res, ok
}

// verifyStatus answers retryable failures with 503 so the sender retries.
func verifyStatus(err error) int {
	if federr.IsRetryable(err) {
		return http.StatusServiceUnavailable
	}
	return http.StatusUnauthorized
}

// defaultErrorHandler is the default error handler
func defaultErrorHandler(w http.ResponseWriter, r *http.Request, status int, err error) {
	http.Error(w, fmt.Sprintf("%s: %s", http.StatusText(status), err.Error()), status)
}
