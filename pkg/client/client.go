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

package client

import (
	"context"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/fedtrust/fedtrust/pkg/federr"
	"github.com/fedtrust/fedtrust/pkg/protocol"
	"github.com/fedtrust/fedtrust/pkg/signer"
	"github.com/fedtrust/fedtrust/pkg/transport"
)

// Client fetches and delivers protocol documents, signing requests with
// HTTP signatures when a key is supplied.
type Client struct {
	fetcher transport.Fetcher
	signer  signer.RequestSigner
	logger  *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithSigner replaces the request signer
func WithSigner(s signer.RequestSigner) Option {
	return func(c *Client) { c.signer = s }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a new Client over the fetcher.
func New(fetcher transport.Fetcher, opts ...Option) *Client {
	c := &Client{
		fetcher: fetcher,
		signer:  signer.NewDefaultRequestSigner(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetched is a protocol document together with the URL that served it.
type Fetched struct {
	Document protocol.Document

	// FinalURL is the URL after redirects
	FinalURL string
}

// Get fetches a protocol document. The request is signed with key when key
// is non-nil. Non-2xx statuses, non-protocol content types, and bodies that
// are not JSON objects are errors.
func (c *Client) Get(ctx context.Context, url string, key *signer.PrivateKeyMaterial) (*Fetched, error) {
	if err := ctx.Err(); err != nil {
		return nil, federr.FromContext(err)
	}

	req := &transport.Request{Method: http.MethodGet}
	if key != nil {
		signed, err := c.signer.SignGet(key, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header = signed.Header()
	} else {
		req.Header = http.Header{"Accept": {protocol.AcceptHeader}}
	}

	resp, err := c.fetcher.Send(ctx, url, req)
	if err != nil {
		return nil, err
	}
	if err := transport.CheckStatus(resp); err != nil {
		c.logger.Debug("fetch rejected by status", zap.String("uri", url), zap.Int("status", resp.StatusCode))
		return nil, err
	}
	if !IsProtocolContentType(resp.Header.Get("Content-Type")) {
		return nil, federr.Permanent(federr.KindMalformed, federr.ReasonInvalidResponse,
			"%s served content type %q", resp.URL, resp.Header.Get("Content-Type"))
	}

	body, err := resp.JSON()
	if err != nil {
		return nil, err
	}
	finalURL := resp.URL
	if finalURL == "" {
		finalURL = url
	}
	return &Fetched{Document: protocol.Document(body), FinalURL: finalURL}, nil
}

// Post delivers body to an inbox with a signed POST.
func (c *Client) Post(ctx context.Context, inbox string, body []byte, key *signer.PrivateKeyMaterial) error {
	if err := ctx.Err(); err != nil {
		return federr.FromContext(err)
	}

	signed, err := c.signer.SignPost(key, inbox, body, nil, "")
	if err != nil {
		return err
	}

	resp, err := c.fetcher.Send(ctx, inbox, &transport.Request{
		Method: http.MethodPost,
		Header: signed.Header(),
		Body:   signed.Body,
	})
	if err != nil {
		return err
	}
	if err := transport.CheckStatus(resp); err != nil {
		c.logger.Info("delivery rejected", zap.String("uri", inbox), zap.Int("status", resp.StatusCode))
		return err
	}
	return nil
}

// IsProtocolContentType accepts application/activity+json and
// application/ld+json with the activitystreams profile.
func IsProtocolContentType(value string) bool {
	mediaType, params, err := mime.ParseMediaType(value)
	if err != nil {
		return false
	}
	switch mediaType {
	case "application/activity+json":
		return true
	case "application/ld+json":
		return strings.TrimSpace(params["profile"]) == protocol.ActivityStreamsContext
	}
	return false
}
