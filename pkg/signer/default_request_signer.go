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

package signer

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fedtrust/fedtrust/pkg/federr"
	"github.com/fedtrust/fedtrust/pkg/protocol"
)

const (
	// Algorithm is the only HTTP signature algorithm emitted
	Algorithm = "rsa-sha256"

	// RequestTarget is the pseudo-header covering method and path
	RequestTarget = "(request-target)"

	// ContentTypeActivity is set on POST bodies unless overridden
	ContentTypeActivity = `application/activity+json`
)

var (
	getHeaders  = []string{RequestTarget, "date", "host", "accept"}
	postHeaders = []string{RequestTarget, "date", "host", "digest"}
)

// DefaultRequestSigner implements RequestSigner with RSA/SHA-256
type DefaultRequestSigner struct {
	now func() time.Time
}

// Option configures a DefaultRequestSigner
type Option func(*DefaultRequestSigner)

// WithClock overrides the clock used for the Date header
func WithClock(now func() time.Time) Option {
	return func(s *DefaultRequestSigner) {
		s.now = now
	}
}

// NewDefaultRequestSigner creates a new DefaultRequestSigner
func NewDefaultRequestSigner(opts ...Option) *DefaultRequestSigner {
	s := &DefaultRequestSigner{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignGet signs a GET request
func (s *DefaultRequestSigner) SignGet(key *PrivateKeyMaterial, target string, extraHeaders map[string]string) (*SignedRequest, error) {
	headers := map[string]string{
		"accept": protocol.AcceptHeader,
	}
	mergeHeaders(headers, extraHeaders)

	return s.sign(key, http.MethodGet, target, nil, headers, getHeaders)
}

// SignPost signs a POST request
func (s *DefaultRequestSigner) SignPost(key *PrivateKeyMaterial, target string, body []byte, extraHeaders map[string]string, digest string) (*SignedRequest, error) {
	headers := map[string]string{
		"content-type": ContentTypeActivity,
	}
	mergeHeaders(headers, extraHeaders)

	if digest == "" {
		digest = Digest(body)
	}
	headers["digest"] = digest

	if body == nil {
		body = []byte{}
	}
	return s.sign(key, http.MethodPost, target, body, headers, postHeaders)
}

func (s *DefaultRequestSigner) sign(key *PrivateKeyMaterial, method, target string, body []byte, headers map[string]string, include []string) (*SignedRequest, error) {
	if key == nil {
		return nil, federr.Permanent(federr.KindConfig, federr.ReasonInvalidKey, "private key material is nil")
	}
	if key.KeyID == "" {
		return nil, federr.Permanent(federr.KindConfig, federr.ReasonInvalidKey, "private key has no key id")
	}
	privateKey, err := key.RSA()
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return nil, federr.Permanent(federr.KindMalformed, federr.ReasonInvalidURI, "cannot sign request to %q", target)
	}

	headers["date"] = s.now().UTC().Format(http.TimeFormat)
	headers["host"] = u.Host

	signingString, err := buildSigningString(method, u, headers, include)
	if err != nil {
		return nil, err
	}

	hashed := sha256.Sum256([]byte(signingString))
	signature, err := rsa.SignPKCS1v15(rand.Reader, privateKey, crypto.SHA256, hashed[:])
	if err != nil {
		return nil, federr.Permanent(federr.KindConfig, federr.ReasonInvalidKey, "failed to sign").Wrap(err)
	}

	headerValue := buildSignatureHeader(key.KeyID, include, signature)
	headers["signature"] = headerValue

	// The transport sets Host for the real destination; a redirect would
	// otherwise carry a stale value.
	delete(headers, "host")

	return &SignedRequest{
		URL:                  u.String(),
		Method:               method,
		Body:                 body,
		SigningString:        signingString,
		SignatureHeaderValue: headerValue,
		headers:              headers,
	}, nil
}

// buildSigningString creates the canonical signing string, one
// "name: value" line per included header in the given order
func buildSigningString(method string, u *url.URL, headers map[string]string, include []string) (string, error) {
	lines := make([]string, 0, len(include))
	for _, name := range include {
		if name == RequestTarget {
			lines = append(lines, fmt.Sprintf("%s: %s %s", RequestTarget, strings.ToLower(method), requestPath(u)))
			continue
		}
		value, ok := headers[name]
		if !ok {
			return "", fmt.Errorf("header %q is not set", name)
		}
		lines = append(lines, fmt.Sprintf("%s: %s", name, value))
	}
	return strings.Join(lines, "\n"), nil
}

// buildSignatureHeader creates the Signature header value
func buildSignatureHeader(keyID string, include []string, signature []byte) string {
	return fmt.Sprintf(`keyId="%s",algorithm="%s",headers="%s",signature="%s"`,
		keyID, Algorithm, strings.Join(include, " "), base64.StdEncoding.EncodeToString(signature))
}

func requestPath(u *url.URL) string {
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path
}

// Digest returns the Digest header value for body
func Digest(body []byte) string {
	sum := sha256.Sum256(body)
	return "SHA-256=" + base64.StdEncoding.EncodeToString(sum[:])
}

func mergeHeaders(dst, src map[string]string) {
	for k, v := range src {
		k = strings.ToLower(k)
		// Host is derived from the URL and never taken from callers
		if k == "host" {
			continue
		}
		dst[k] = v
	}
}
