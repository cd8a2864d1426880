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

// Package metrics holds the prometheus collectors shared by the resolver,
// transport, and verifier. A nil *Collectors is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fedtrust"

// Collectors tracks federation trust metrics
type Collectors struct {
	// Fetch metrics
	FetchTotal    *prometheus.CounterVec
	FetchLatency  *prometheus.HistogramVec
	FetchThrottle prometheus.Counter

	// Resolution metrics
	ResolveTotal *prometheus.CounterVec
	SessionDepth prometheus.Histogram

	// Verification metrics
	VerifyTotal   *prometheus.CounterVec
	KeyRefetches  prometheus.Counter
	ActorCacheHit *prometheus.CounterVec

	// Inbox metrics
	InboxRequests *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates and registers the collectors. A nil registry uses a fresh
// private registry.
func New(registry *prometheus.Registry) *Collectors {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	factory := promauto.With(registry)

	return &Collectors{
		FetchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "Outbound fetches by result",
		}, []string{"method", "result"}),
		FetchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_latency_seconds",
			Help:      "Outbound fetch latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		FetchThrottle: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_throttled_total",
			Help:      "Fetches delayed by the per-host rate limit",
		}),
		ResolveTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolve_total",
			Help:      "Object resolutions by source and outcome reason",
		}, []string{"source", "reason"}),
		SessionDepth: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_session_size",
			Help:      "Number of URIs recorded by a resolution session",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
		}),
		VerifyTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verify_total",
			Help:      "Inbound activity verifications by outcome and reason",
		}, []string{"outcome", "reason"}),
		KeyRefetches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "key_refetch_total",
			Help:      "Public key refetches after a signature failure",
		}),
		ActorCacheHit: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actor_cache_lookups_total",
			Help:      "Actor cache lookups by result",
		}, []string{"result"}),
		InboxRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbox_requests_total",
			Help:      "Inbox POSTs by HTTP status",
		}, []string{"status"}),
		gatherer: registry,
	}
}

// ObserveFetch records one outbound request.
func (c *Collectors) ObserveFetch(method, result string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.FetchTotal.WithLabelValues(method, result).Inc()
	c.FetchLatency.WithLabelValues(method).Observe(elapsed.Seconds())
}

// Throttled records a fetch that had to wait for its host's rate limit.
func (c *Collectors) Throttled() {
	if c == nil {
		return
	}
	c.FetchThrottle.Inc()
}

// ObserveResolve records a resolution; reason is "ok" on success.
func (c *Collectors) ObserveResolve(source, reason string) {
	if c == nil {
		return
	}
	c.ResolveTotal.WithLabelValues(source, reason).Inc()
}

// ObserveSession records how many URIs a finished session visited.
func (c *Collectors) ObserveSession(size int) {
	if c == nil {
		return
	}
	c.SessionDepth.Observe(float64(size))
}

// ObserveVerify records a verification outcome.
func (c *Collectors) ObserveVerify(outcome, reason string) {
	if c == nil {
		return
	}
	c.VerifyTotal.WithLabelValues(outcome, reason).Inc()
}

// KeyRefetched records a key rotation refetch.
func (c *Collectors) KeyRefetched() {
	if c == nil {
		return
	}
	c.KeyRefetches.Inc()
}

// ActorCacheLookup records an actor cache hit or miss.
func (c *Collectors) ActorCacheLookup(hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.ActorCacheHit.WithLabelValues(result).Inc()
}

// InboxRequest records an inbox response status.
func (c *Collectors) InboxRequest(status string) {
	if c == nil {
		return
	}
	c.InboxRequests.WithLabelValues(status).Inc()
}

// Handler serves the registry in the prometheus text format.
func (c *Collectors) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
