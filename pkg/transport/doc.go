// Package transport performs the outbound HTTP requests of the federation
// engine.
//
// The Fetcher interface is the only way other packages reach the network, so
// tests can substitute an in-memory implementation. HTTPFetcher is the
// production implementation:
//
//	f := transport.NewHTTPFetcher(
//	    transport.WithTimeout(10*time.Second),
//	    transport.WithHostLimiter(transport.NewHostLimiter(2, 10, 0)),
//	)
//	resp, err := f.Send(ctx, "https://remote.example/notes/1", &transport.Request{
//	    Header: http.Header{"Accept": {protocol.AcceptHeader}},
//	})
//
// # Failure classes
//
// Send returns an error only when no HTTP response was obtained. Network
// failures and timeouts are retryable; refusing to dial a private address or
// following too many redirects are permanent. Use CheckStatus to classify the
// status code of a response.
//
// # Private networks
//
// By default the dialer refuses loopback, private, and link-local addresses
// after DNS resolution, so a remote document cannot make the server fetch
// from its own internal network.
package transport
