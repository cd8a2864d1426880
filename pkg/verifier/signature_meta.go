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

package verifier

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-fed/httpsig"

	"github.com/fedtrust/fedtrust/pkg/federr"
)

// SignatureMeta is everything needed to re-check an HTTP signature after the
// request is gone, e.g. in a queue worker. It is JSON-serializable.
type SignatureMeta struct {
	KeyID     string      `json:"keyId"`
	Algorithm string      `json:"algorithm"`
	Headers   []string    `json:"headers"`
	Method    string      `json:"method"`
	Path      string      `json:"path"`
	Host      string      `json:"host"`
	Header    http.Header `json:"header"`
	Body      []byte      `json:"body,omitempty"`
}

// CaptureSignature records the signature of an inbound request. body is the
// already-read request body; it is kept so the Digest can be re-checked.
func CaptureSignature(r *http.Request, body []byte) (*SignatureMeta, error) {
	// httpsig adds a Host header to the request it parses
	clone := r.Clone(r.Context())
	v, err := httpsig.NewVerifier(clone)
	if err != nil {
		return nil, federr.Permanent(federr.KindSignature, federr.ReasonSignatureMissing, "no parsable signature").Wrap(err)
	}

	params := parseSignatureParams(signatureHeader(r.Header))
	headers := strings.Fields(strings.ToLower(params["headers"]))
	if len(headers) == 0 {
		headers = []string{"date"}
	}

	return &SignatureMeta{
		KeyID:     v.KeyId(),
		Algorithm: params["algorithm"],
		Headers:   headers,
		Method:    r.Method,
		Path:      r.URL.RequestURI(),
		Host:      r.Host,
		Header:    r.Header.Clone(),
		Body:      body,
	}, nil
}

// Request rebuilds a server-side request equivalent to the captured one.
func (m *SignatureMeta) Request(ctx context.Context) (*http.Request, error) {
	u, err := url.ParseRequestURI(m.Path)
	if err != nil {
		return nil, federr.Permanent(federr.KindMalformed, federr.ReasonInvalidURI, "bad request path %q", m.Path).Wrap(err)
	}
	req := &http.Request{
		Method:     m.Method,
		URL:        u,
		Host:       m.Host,
		Header:     m.Header.Clone(),
		RequestURI: m.Path,
	}
	if req.Header == nil {
		req.Header = http.Header{}
	}
	return req.WithContext(ctx), nil
}

// Covers reports whether header is part of the signed set.
func (m *SignatureMeta) Covers(header string) bool {
	header = strings.ToLower(header)
	for _, h := range m.Headers {
		if h == header {
			return true
		}
	}
	return false
}

func signatureHeader(h http.Header) string {
	if s := h.Get("Signature"); s != "" {
		return s
	}
	return strings.TrimPrefix(h.Get("Authorization"), "Signature ")
}

// parseSignatureParams splits key="value" pairs. httpsig only exposes the
// keyId, so algorithm and headers are read here.
func parseSignatureParams(header string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		out[strings.ToLower(k)] = strings.Trim(v, `"`)
	}
	return out
}
