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
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter applies a token bucket per remote host and periodically evicts
// idle entries.
type HostLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu     sync.Mutex
	byHost map[string]*hostEntry
	hits   uint64
}

type hostEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewHostLimiter creates a per-host limiter; returns nil (no limiting) if
// rps or burst is not positive.
func NewHostLimiter(rps float64, burst int, idleTTL time.Duration) *HostLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &HostLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		byHost:  make(map[string]*hostEntry),
	}
}

// Wait blocks until a request to host may proceed. It reports whether the
// caller had to wait.
func (l *HostLimiter) Wait(ctx context.Context, host string) (bool, error) {
	if l == nil {
		return false, nil
	}
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return false, nil
	}

	lim := l.get(host, time.Now())
	if lim.Allow() {
		return false, nil
	}
	return true, lim.Wait(ctx)
}

func (l *HostLimiter) get(host string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byHost[host]
	if !ok {
		e = &hostEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byHost[host] = e
	}
	e.lastSeen = now

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byHost {
			if v.lastSeen.Before(cutoff) {
				delete(l.byHost, k)
			}
		}
	}
	return e.limiter
}

// Len returns the number of tracked hosts.
func (l *HostLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byHost)
}
