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

// Package actorcache keeps remote actors and their public keys in an
// expiring in-memory cache, resolving misses through the object resolver.
package actorcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fedtrust/fedtrust/pkg/federr"
	"github.com/fedtrust/fedtrust/pkg/guard"
	"github.com/fedtrust/fedtrust/pkg/metrics"
	"github.com/fedtrust/fedtrust/pkg/protocol"
	"github.com/fedtrust/fedtrust/pkg/resolver"
)

const (
	DefaultSize = 1024
	DefaultTTL  = time.Hour
)

// Resolver is the part of the resolver engine the cache uses.
type Resolver interface {
	Resolve(ctx context.Context, ref protocol.ObjectReference, opts ...resolver.ResolveOption) (protocol.Document, error)
}

// Cache implements verifier.ActorStore. It is safe for concurrent use;
// concurrent misses for the same actor share one fetch.
type Cache struct {
	resolver Resolver
	byKey    *expirable.LRU[string, *protocol.AuthenticatedActor]
	byActor  *expirable.LRU[string, *protocol.AuthenticatedActor]
	group    singleflight.Group
	logger   *zap.Logger
	metrics  *metrics.Collectors
}

// Option configures a Cache
type Option func(*config)

type config struct {
	size    int
	ttl     time.Duration
	logger  *zap.Logger
	metrics *metrics.Collectors
}

// WithSize bounds the number of cached actors
func WithSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.size = n
		}
	}
}

// WithTTL sets how long an actor stays cached
func WithTTL(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMetrics records cache hits and misses
func WithMetrics(m *metrics.Collectors) Option {
	return func(c *config) { c.metrics = m }
}

// New creates a cache resolving misses through r.
func New(r Resolver, opts ...Option) *Cache {
	cfg := config{size: DefaultSize, ttl: DefaultTTL, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Cache{
		resolver: r,
		byKey:    expirable.NewLRU[string, *protocol.AuthenticatedActor](cfg.size, nil, cfg.ttl),
		byActor:  expirable.NewLRU[string, *protocol.AuthenticatedActor](cfg.size, nil, cfg.ttl),
		logger:   cfg.logger,
		metrics:  cfg.metrics,
	}
}

// FindByKeyID only consults the cache. Key ids usually carry a fragment,
// which the resolver refuses, so a miss is left to FindByActorID.
func (c *Cache) FindByKeyID(_ context.Context, keyID string) (*protocol.AuthenticatedActor, error) {
	actor, ok := c.byKey.Get(keyID)
	c.metrics.ActorCacheLookup(ok)
	if !ok {
		return nil, nil
	}
	return actor, nil
}

// FindByActorID returns the cached actor or resolves it.
func (c *Cache) FindByActorID(ctx context.Context, actorID string) (*protocol.AuthenticatedActor, error) {
	if actor, ok := c.byActor.Get(actorID); ok {
		c.metrics.ActorCacheLookup(true)
		return actor, nil
	}
	c.metrics.ActorCacheLookup(false)
	return c.load(ctx, actorID)
}

// RefetchPublicKey reloads the actor, replacing its cache entries.
func (c *Cache) RefetchPublicKey(ctx context.Context, actor *protocol.AuthenticatedActor) (*protocol.PublicKeyMaterial, error) {
	c.Invalidate(actor.Actor.ID)
	if actor.PublicKey != nil {
		c.byKey.Remove(actor.PublicKey.KeyID)
	}
	fresh, err := c.load(ctx, actor.Actor.ID)
	if err != nil {
		return nil, err
	}
	return fresh.PublicKey, nil
}

// Add caches an actor, e.g. one rendered locally. Its key is indexed only
// when the key id lives on the actor's host.
func (c *Cache) Add(actor *protocol.AuthenticatedActor) {
	c.byActor.Add(actor.Actor.ID, actor)
	if actor.PublicKey != nil && keyOnActorHost(actor) {
		c.byKey.Add(actor.PublicKey.KeyID, actor)
	}
}

func keyOnActorHost(actor *protocol.AuthenticatedActor) bool {
	actorHost, err := guard.ExtractHost(actor.Actor.ID)
	if err != nil {
		return false
	}
	keyHost, err := guard.ExtractHost(actor.PublicKey.KeyID)
	return err == nil && keyHost == actorHost
}

// Invalidate drops an actor.
func (c *Cache) Invalidate(actorID string) {
	if actor, ok := c.byActor.Peek(actorID); ok && actor.PublicKey != nil {
		c.byKey.Remove(actor.PublicKey.KeyID)
	}
	c.byActor.Remove(actorID)
}

// Len returns the number of cached actors.
func (c *Cache) Len() int {
	return c.byActor.Len()
}

func (c *Cache) load(ctx context.Context, actorID string) (*protocol.AuthenticatedActor, error) {
	v, err, shared := c.group.Do(actorID, func() (any, error) {
		doc, err := c.resolver.Resolve(ctx, protocol.URI(actorID))
		if err != nil {
			return nil, err
		}
		actor, err := protocol.ActorFromDocument(doc)
		if err != nil {
			return nil, federr.Permanent(federr.KindActorResolution, federr.ReasonActorUnresolved, "%s is not an actor", actorID).Wrap(err)
		}
		c.Add(actor)
		if actor.Actor.ID != actorID {
			c.byActor.Add(actorID, actor)
		}
		return actor, nil
	})
	if err != nil {
		c.logger.Debug("actor load failed", zap.String("uri", actorID), zap.Error(err))
		return nil, err
	}
	if shared {
		c.logger.Debug("actor load shared", zap.String("uri", actorID))
	}
	return v.(*protocol.AuthenticatedActor), nil
}
