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
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fedtrust/fedtrust/pkg/protocol"
	"github.com/fedtrust/fedtrust/pkg/signer"
	"github.com/fedtrust/fedtrust/pkg/verifier"
)

const (
	// DefaultMaxBodyBytes bounds an inbox POST body
	DefaultMaxBodyBytes = 1 << 20

	// DefaultMaxClockSkew is how far the Date header may be from now
	DefaultMaxClockSkew = 12 * time.Hour
)

// statusError is a request rejection with the HTTP status to answer.
type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func reject(status int, format string, args ...any) *statusError {
	return &statusError{status: status, err: fmt.Errorf(format, args...)}
}

// StatusOf returns the HTTP status for an inbox rejection, 500 for
// anything else.
func StatusOf(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.status
	}
	return http.StatusInternalServerError
}

// inbound is a signed activity that passed the transport-level checks.
type inbound struct {
	body     []byte
	activity protocol.Document
	meta     *verifier.SignatureMeta
}

// limits are the transport-level checks shared by the inbox handler and
// the middleware.
type limits struct {
	maxBody int64
	maxSkew time.Duration
	now     func() time.Time
}

func defaultLimits() limits {
	return limits{maxBody: DefaultMaxBodyBytes, maxSkew: DefaultMaxClockSkew, now: time.Now}
}

// readSigned reads and checks a signed request. The body is read in full so
// it can be restored for the next handler.
func (l limits) readSigned(w http.ResponseWriter, r *http.Request) (*inbound, error) {
	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, l.maxBody))
		r.Body.Close()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, reject(http.StatusRequestEntityTooLarge, "body exceeds %d bytes", l.maxBody)
			}
			return nil, reject(http.StatusBadRequest, "failed to read body: %v", err)
		}
	}

	if r.Header.Get("Signature") == "" && !strings.HasPrefix(r.Header.Get("Authorization"), "Signature ") {
		return nil, reject(http.StatusUnauthorized, "missing signature")
	}
	if err := l.checkDate(r.Header.Get("Date")); err != nil {
		return nil, err
	}
	if len(body) > 0 {
		if err := checkDigest(r.Header.Get("Digest"), body); err != nil {
			return nil, err
		}
	}

	meta, err := verifier.CaptureSignature(r, body)
	if err != nil {
		return nil, reject(http.StatusUnauthorized, "invalid signature: %v", err)
	}
	return &inbound{body: body, meta: meta}, nil
}

func (l limits) checkDate(value string) error {
	if value == "" {
		return reject(http.StatusUnauthorized, "missing Date header")
	}
	t, err := http.ParseTime(value)
	if err != nil {
		return reject(http.StatusUnauthorized, "invalid Date header")
	}
	skew := l.now().Sub(t)
	if skew < 0 {
		skew = -skew
	}
	if skew > l.maxSkew {
		return reject(http.StatusUnauthorized, "Date header is %s off", skew.Round(time.Second))
	}
	return nil
}

func checkDigest(value string, body []byte) error {
	if value == "" {
		return reject(http.StatusUnauthorized, "missing Digest header")
	}
	want := signer.Digest(body)
	for _, d := range strings.Split(value, ",") {
		if strings.TrimSpace(d) == want {
			return nil
		}
	}
	return reject(http.StatusUnauthorized, "Digest does not match body")
}

// parseActivity decodes the body into an activity document.
func (in *inbound) parseActivity() error {
	doc, err := protocol.Parse(in.body)
	if err != nil {
		return reject(http.StatusBadRequest, "invalid activity: %v", err)
	}
	if doc.Kind() != protocol.KindActivity {
		return reject(http.StatusBadRequest, "document type %q is not an activity", doc.Type())
	}
	in.activity = doc
	return nil
}
