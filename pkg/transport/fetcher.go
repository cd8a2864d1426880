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

package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fedtrust/fedtrust/pkg/federr"
)

// Fetcher performs outbound HTTP requests.
//
// Implementations follow redirects and report the URL that finally answered.
// Any HTTP status is returned as a Response; only network level failures are
// errors.
type Fetcher interface {
	Send(ctx context.Context, url string, req *Request) (*Response, error)
}

// Request describes an outbound request
type Request struct {
	// Method defaults to GET
	Method string

	// Header is sent as is; Host is always derived from the URL
	Header http.Header

	// Body is nil for GET
	Body []byte

	// Timeout overrides the fetcher default when positive
	Timeout time.Duration
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Header     http.Header

	// URL is the final URL after redirects
	URL string

	Body []byte
}

// JSON decodes the body into a generic object.
func (r *Response) JSON() (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal(r.Body, &out); err != nil {
		return nil, federr.Permanent(federr.KindMalformed, federr.ReasonInvalidResponse, "response from %s is not a JSON object", r.URL).Wrap(err)
	}
	if out == nil {
		return nil, federr.Permanent(federr.KindMalformed, federr.ReasonInvalidResponse, "response from %s is null", r.URL)
	}
	return out, nil
}

// CheckStatus classifies a non-2xx status. Client errors other than 408 and
// 429 mean the remote will never serve the resource. Everything else may
// succeed later.
func CheckStatus(resp *Response) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests:
		return federr.Retryable(federr.KindTransport, federr.ReasonFetchFailed, "%s answered %d", resp.URL, code)
	case code >= 400 && code < 500:
		return federr.Permanent(federr.KindNotFound, federr.ReasonGone, "%s answered %d", resp.URL, code)
	default:
		return federr.Retryable(federr.KindTransport, federr.ReasonFetchFailed, "%s answered %d", resp.URL, code)
	}
}
