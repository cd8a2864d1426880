package signer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// RequestSigner signs outbound HTTP requests with cavage HTTP signatures
type RequestSigner interface {
	// SignGet builds a signed GET request.
	// Signed headers: (request-target) date host accept
	SignGet(key *PrivateKeyMaterial, url string, extraHeaders map[string]string) (*SignedRequest, error)

	// SignPost builds a signed POST request. The digest is computed from body
	// when empty.
	// Signed headers: (request-target) date host digest
	SignPost(key *PrivateKeyMaterial, url string, body []byte, extraHeaders map[string]string, digest string) (*SignedRequest, error)
}

// SignedRequest is an immutable signed request ready for transmission
type SignedRequest struct {
	// URL is the request target
	URL string

	// Method is GET or POST
	Method string

	// Body is nil for GET
	Body []byte

	// SigningString is exactly what was signed
	SigningString string

	// SignatureHeaderValue is the value of the Signature header
	SignatureHeaderValue string

	// headers uses lower-case keys and never contains host
	headers map[string]string
}

// Headers returns a copy of the transmitted headers with lower-case keys.
func (r *SignedRequest) Headers() map[string]string {
	out := make(map[string]string, len(r.headers))
	for k, v := range r.headers {
		out[k] = v
	}
	return out
}

// Header returns the transmitted headers with canonical case restored.
// Host is never included; the transport sets it for the actual destination.
func (r *SignedRequest) Header() http.Header {
	h := make(http.Header, len(r.headers))
	for k, v := range r.headers {
		h.Set(http.CanonicalHeaderKey(k), v)
	}
	return h
}

// HTTPRequest builds a *http.Request for the signed request.
func (r *SignedRequest) HTTPRequest(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header = r.Header()
	return req, nil
}
