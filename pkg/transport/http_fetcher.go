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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fedtrust/fedtrust/pkg/federr"
	"github.com/fedtrust/fedtrust/pkg/metrics"
)

const (
	// DefaultTimeout bounds a single request including redirects
	DefaultTimeout = 10 * time.Second

	// DefaultMaxRedirects matches what large implementations follow
	DefaultMaxRedirects = 5

	// DefaultMaxBodyBytes caps how much of a response is read
	DefaultMaxBodyBytes = 10 << 20

	// DefaultUserAgent is sent when the request has none
	DefaultUserAgent = "fedtrust"
)

// errPrivateAddress is returned by the dialer for loopback, private, and
// link-local destinations.
var errPrivateAddress = errors.New("destination address is not public")

var errTooManyRedirects = errors.New("too many redirects")

// HTTPFetcher implements Fetcher over net/http.
type HTTPFetcher struct {
	client       *http.Client
	timeout      time.Duration
	maxRedirects int
	maxBodyBytes int64
	userAgent    string
	allowPrivate bool
	limiter      *HostLimiter
	overrides    map[string]string
	logger       *zap.Logger
	metrics      *metrics.Collectors
}

// FetcherOption configures an HTTPFetcher
type FetcherOption func(*HTTPFetcher)

// WithTimeout sets the default per-request timeout
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *HTTPFetcher) { f.timeout = d }
}

// WithMaxRedirects sets how many redirects are followed
func WithMaxRedirects(n int) FetcherOption {
	return func(f *HTTPFetcher) { f.maxRedirects = n }
}

// WithMaxBodyBytes caps the response size
func WithMaxBodyBytes(n int64) FetcherOption {
	return func(f *HTTPFetcher) { f.maxBodyBytes = n }
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) { f.userAgent = ua }
}

// WithAllowPrivateNetworks permits loopback and private destinations.
// Tests against httptest servers need this.
func WithAllowPrivateNetworks(allow bool) FetcherOption {
	return func(f *HTTPFetcher) { f.allowPrivate = allow }
}

// WithHostLimiter throttles requests per remote host
func WithHostLimiter(l *HostLimiter) FetcherOption {
	return func(f *HTTPFetcher) { f.limiter = l }
}

// WithHostOverrides dials the mapped address instead of resolving the
// host. Keys and values are host:port.
func WithHostOverrides(overrides map[string]string) FetcherOption {
	return func(f *HTTPFetcher) { f.overrides = overrides }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) FetcherOption {
	return func(f *HTTPFetcher) { f.logger = l }
}

// WithMetrics records fetch metrics
func WithMetrics(m *metrics.Collectors) FetcherOption {
	return func(f *HTTPFetcher) { f.metrics = m }
}

// NewHTTPFetcher creates a new HTTPFetcher.
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		timeout:      DefaultTimeout,
		maxRedirects: DefaultMaxRedirects,
		maxBodyBytes: DefaultMaxBodyBytes,
		userAgent:    DefaultUserAgent,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}

	dialer := &net.Dialer{Timeout: f.timeout}
	if !f.allowPrivate {
		dialer.Control = denyPrivate
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = dialer.DialContext
	if len(f.overrides) > 0 {
		overrides := f.overrides
		tr.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			if to, ok := overrides[addr]; ok {
				addr = to
			}
			return dialer.DialContext(ctx, network, addr)
		}
	}
	tr.Proxy = nil

	f.client = &http.Client{
		Transport: tr,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > f.maxRedirects {
				return fmt.Errorf("%w: stopped after %d", errTooManyRedirects, f.maxRedirects)
			}
			return nil
		},
	}
	return f
}

// Send performs the request and reads the whole body.
func (f *HTTPFetcher) Send(ctx context.Context, target string, req *Request) (*Response, error) {
	if req == nil {
		req = &Request{}
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	u, err := url.Parse(target)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return nil, federr.Permanent(federr.KindMalformed, federr.ReasonInvalidURI, "cannot fetch %q", target)
	}

	waited, err := f.limiter.Wait(ctx, u.Host)
	if err != nil {
		return nil, federr.FromContext(err)
	}
	if waited {
		f.metrics.Throttled()
	}

	timeout := f.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, federr.Permanent(federr.KindMalformed, federr.ReasonInvalidURI, "failed to create request").Wrap(err)
	}
	for k, v := range req.Header {
		httpReq.Header[k] = append([]string(nil), v...)
	}
	httpReq.Header.Del("Host")
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", f.userAgent)
	}

	start := time.Now()
	resp, err := f.client.Do(httpReq)
	if err != nil {
		f.metrics.ObserveFetch(method, "error", time.Since(start))
		f.logger.Debug("fetch failed", zap.String("uri", target), zap.Error(err))
		if errors.Is(err, errPrivateAddress) {
			return nil, federr.Permanent(federr.KindPolicy, federr.ReasonBlockedHost, "%s resolves to a non-public address", u.Host).Wrap(err)
		}
		if errors.Is(err, errTooManyRedirects) {
			return nil, federr.Permanent(federr.KindPolicy, federr.ReasonRedirectAuthority, "too many redirects from %s", target).Wrap(err)
		}
		if ctxErr := federr.FromContext(err); ctxErr != err {
			return nil, ctxErr
		}
		return nil, federr.Retryable(federr.KindTransport, federr.ReasonFetchFailed, "request to %s failed", u.Host).Wrap(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		f.metrics.ObserveFetch(method, "error", time.Since(start))
		return nil, federr.Retryable(federr.KindTransport, federr.ReasonFetchFailed, "reading response from %s failed", u.Host).Wrap(err)
	}
	if int64(len(data)) > f.maxBodyBytes {
		f.metrics.ObserveFetch(method, "too_large", time.Since(start))
		return nil, federr.Permanent(federr.KindMalformed, federr.ReasonInvalidResponse, "response from %s exceeds %d bytes", u.Host, f.maxBodyBytes)
	}

	f.metrics.ObserveFetch(method, fmt.Sprintf("%dxx", resp.StatusCode/100), time.Since(start))
	f.logger.Debug("fetched",
		zap.String("uri", target),
		zap.String("final_uri", resp.Request.URL.String()),
		zap.Int("status", resp.StatusCode))

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		URL:        resp.Request.URL.String(),
		Body:       data,
	}, nil
}

// denyPrivate refuses connections to addresses that are not globally routable.
func denyPrivate(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return fmt.Errorf("%w: %s", errPrivateAddress, address)
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified() || ip.IsMulticast() || ip.IsInterfaceLocalMulticast() {
		return fmt.Errorf("%w: %s", errPrivateAddress, address)
	}
	return nil
}
