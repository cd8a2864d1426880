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

package ldsig

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/piprate/json-gold/ld"
	"go.uber.org/zap"

	"github.com/fedtrust/fedtrust/pkg/federr"
	"github.com/fedtrust/fedtrust/pkg/protocol"
	"github.com/fedtrust/fedtrust/pkg/transport"
)

//go:embed contexts/*.json
var embedded embed.FS

// builtinContexts are served without network access.
var builtinContexts = map[string]string{
	protocol.SecurityContext: "contexts/security-v1.json",
	protocol.IdentityContext: "contexts/identity-v1.json",
}

const (
	// DefaultContextCacheSize bounds the number of remote contexts kept
	DefaultContextCacheSize = 64

	// DefaultContextTimeout bounds one remote context fetch
	DefaultContextTimeout = 10 * time.Second

	contextAccept = "application/ld+json, application/json"
)

// ContextLoader resolves JSON-LD @context URLs for json-gold. Builtin
// contexts come from the binary; any other context is fetched once and kept
// in an LRU cache. It is safe for concurrent use.
type ContextLoader struct {
	fetcher transport.Fetcher
	cache   *lru.Cache[string, *ld.RemoteDocument]
	timeout time.Duration
	logger  *zap.Logger
}

// LoaderOption configures a ContextLoader
type LoaderOption func(*loaderConfig)

type loaderConfig struct {
	size    int
	timeout time.Duration
	logger  *zap.Logger
}

// WithCacheSize sets how many remote contexts are cached
func WithCacheSize(n int) LoaderOption {
	return func(c *loaderConfig) { c.size = n }
}

// WithContextTimeout bounds remote context fetches
func WithContextTimeout(d time.Duration) LoaderOption {
	return func(c *loaderConfig) { c.timeout = d }
}

// WithLoaderLogger sets the logger
func WithLoaderLogger(l *zap.Logger) LoaderOption {
	return func(c *loaderConfig) { c.logger = l }
}

// NewContextLoader creates a loader. fetcher may be nil, in which case only
// builtin and preloaded contexts resolve.
func NewContextLoader(fetcher transport.Fetcher, opts ...LoaderOption) (*ContextLoader, error) {
	cfg := loaderConfig{
		size:    DefaultContextCacheSize,
		timeout: DefaultContextTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	cache, err := lru.New[string, *ld.RemoteDocument](cfg.size)
	if err != nil {
		return nil, fmt.Errorf("failed to create context cache: %w", err)
	}
	return &ContextLoader{
		fetcher: fetcher,
		cache:   cache,
		timeout: cfg.timeout,
		logger:  cfg.logger,
	}, nil
}

// Preload registers a context document under url. Preloaded documents are
// subject to cache eviction like fetched ones.
func (l *ContextLoader) Preload(url string, document []byte) error {
	doc, err := ld.DocumentFromReader(bytes.NewReader(document))
	if err != nil {
		return fmt.Errorf("failed to parse context %s: %w", url, err)
	}
	l.cache.Add(url, &ld.RemoteDocument{DocumentURL: url, Document: doc})
	return nil
}

// LoadDocument implements ld.DocumentLoader.
func (l *ContextLoader) LoadDocument(u string) (*ld.RemoteDocument, error) {
	key := strings.TrimSuffix(u, "#")

	if name, ok := builtinContexts[key]; ok {
		data, err := embedded.ReadFile(name)
		if err != nil {
			return nil, err
		}
		doc, err := ld.DocumentFromReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return &ld.RemoteDocument{DocumentURL: key, Document: doc}, nil
	}

	if doc, ok := l.cache.Get(key); ok {
		return doc, nil
	}

	if l.fetcher == nil {
		return nil, federr.Permanent(federr.KindSignature, federr.ReasonNormalization, "context %s is not available offline", key)
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	resp, err := l.fetcher.Send(ctx, key, &transport.Request{
		Header: http.Header{"Accept": {contextAccept}},
	})
	if err != nil {
		l.logger.Info("context fetch failed", zap.String("uri", key), zap.Error(err))
		return nil, err
	}
	if err := transport.CheckStatus(resp); err != nil {
		return nil, err
	}
	doc, err := ld.DocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, federr.Permanent(federr.KindSignature, federr.ReasonNormalization, "context %s is not JSON", key).Wrap(err)
	}

	remote := &ld.RemoteDocument{DocumentURL: key, Document: doc}
	l.cache.Add(key, remote)
	l.logger.Debug("context cached", zap.String("uri", key))
	return remote, nil
}

// Len returns the number of cached remote contexts.
func (l *ContextLoader) Len() int {
	return l.cache.Len()
}

// recordingLoader remembers the last loader failure of one operation, since
// json-gold does not expose the cause of a loading error.
type recordingLoader struct {
	inner ld.DocumentLoader
	err   error
}

func (r *recordingLoader) LoadDocument(u string) (*ld.RemoteDocument, error) {
	doc, err := r.inner.LoadDocument(u)
	if err != nil {
		r.err = err
	}
	return doc, err
}
