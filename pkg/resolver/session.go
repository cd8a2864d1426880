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

package resolver

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fedtrust/fedtrust/pkg/federr"
	"github.com/fedtrust/fedtrust/pkg/guard"
	"github.com/fedtrust/fedtrust/pkg/protocol"
	"github.com/fedtrust/fedtrust/pkg/signer"
)

// Session is one top-level resolution. Its history grows with every URI it
// looks up and no URI may be looked up twice. A Session must not be shared
// between goroutines.
type Session struct {
	engine  *Engine
	limit   int
	history map[string]struct{}
	closed  bool
}

// Resolve returns the document ref refers to. Inline documents are returned
// as is; URIs are looked up locally or fetched.
func (s *Session) Resolve(ctx context.Context, ref protocol.ObjectReference, opts ...ResolveOption) (protocol.Document, error) {
	var o resolveOptions
	for _, opt := range opts {
		opt(&o)
	}

	if ref.IsInline() {
		return ref.Document(), nil
	}
	if ref.IsZero() {
		return nil, federr.Permanent(federr.KindMalformed, federr.ReasonInvalidURI, "empty object reference")
	}

	uri := ref.URI()
	doc, source, err := s.resolveURI(ctx, uri, o)
	reason := "ok"
	if err != nil {
		reason = string(federr.ReasonOf(err))
		if reason == "" {
			reason = "unclassified"
		}
		s.engine.logger.Debug("resolution rejected",
			zap.String("uri", uri),
			zap.String("reason", reason),
			zap.Error(err))
	}
	s.engine.metrics.ObserveResolve(source, reason)
	return doc, err
}

func (s *Session) resolveURI(ctx context.Context, uri string, o resolveOptions) (protocol.Document, string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, "remote", federr.Permanent(federr.KindMalformed, federr.ReasonInvalidURI, "unparsable uri %q", uri).Wrap(err)
	}
	if u.Fragment != "" || strings.Contains(uri, "#") {
		return nil, "remote", federr.Permanent(federr.KindMalformed, federr.ReasonFragmentURI, "cannot resolve uri with fragment %q", uri)
	}

	key := normalizeURI(u)
	if _, seen := s.history[key]; seen {
		return nil, "remote", federr.Permanent(federr.KindExhausted, federr.ReasonHistoryReplay, "%s was already resolved in this session", uri)
	}
	if len(s.history) >= s.limit {
		return nil, "remote", federr.Permanent(federr.KindExhausted, federr.ReasonRecursionLimit, "recursion limit %d reached", s.limit)
	}
	s.history[key] = struct{}{}

	host, err := guard.ExtractHost(uri)
	if err != nil {
		return nil, "remote", err
	}
	if s.engine.guard.IsSelfHost(host) {
		doc, err := s.engine.resolveLocal(ctx, u)
		return doc, "local", err
	}
	if !s.engine.guard.IsHostAllowed(host) {
		return nil, "remote", federr.Permanent(federr.KindPolicy, federr.ReasonBlockedHost, "host %s is blocked", host)
	}

	doc, err := s.fetchRemote(ctx, uri, host, o)
	return doc, "remote", err
}

func (s *Session) fetchRemote(ctx context.Context, uri, host string, o resolveOptions) (protocol.Document, error) {
	var key *signer.PrivateKeyMaterial
	if s.engine.signedFetch {
		var err error
		key, err = s.engine.keys.Key(ctx)
		if err != nil {
			return nil, err
		}
	}

	got, err := s.engine.client.Get(ctx, uri, key)
	if err != nil {
		return nil, err
	}
	doc := got.Document

	if !doc.HasContext(protocol.ActivityStreamsContext) {
		return nil, federr.Permanent(federr.KindMalformed, federr.ReasonInvalidContext, "%s has no activitystreams context", uri)
	}

	if doc.ID() == "" {
		if !o.allowAnonymous {
			return nil, federr.Permanent(federr.KindMalformed, federr.ReasonMissingID, "%s has no id", uri)
		}
		doc.SetID(got.FinalURL)
	}

	if err := s.checkAuthority(host, doc.ID(), "id"); err != nil {
		return nil, err
	}
	if err := s.checkAuthority(host, got.FinalURL, "final url"); err != nil {
		return nil, err
	}
	return doc, nil
}

// checkAuthority holds a document to the host that was requested. A
// different host must share its registrable domain and pass the guard.
func (s *Session) checkAuthority(requested, uri, what string) error {
	host, err := guard.ExtractHost(uri)
	if err != nil {
		return err
	}
	if host == requested {
		return nil
	}
	if !s.engine.guard.RelatedHosts(requested, host) {
		return federr.Permanent(federr.KindPolicy, federr.ReasonRedirectAuthority,
			"%s %s is not on the domain of %s", what, uri, requested)
	}
	if !s.engine.guard.IsHostAllowed(host) {
		return federr.Permanent(federr.KindPolicy, federr.ReasonBlockedHost, "host %s is blocked", host)
	}
	return nil
}

// ResolveCollection resolves ref and requires a collection or collection page.
func (s *Session) ResolveCollection(ctx context.Context, ref protocol.ObjectReference) (*protocol.Collection, error) {
	doc, err := s.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	col, err := doc.AsCollection()
	if err != nil {
		return nil, federr.Permanent(federr.KindMalformed, federr.ReasonInvalidType, "%s is not a collection", doc.ID()).Wrap(err)
	}
	return col, nil
}

// CollectionItems returns up to maxItems item references of a collection,
// following first and next pages within this session. A non-positive
// maxItems returns nothing without fetching.
func (s *Session) CollectionItems(ctx context.Context, ref protocol.ObjectReference, maxItems int) ([]protocol.ObjectReference, error) {
	if maxItems <= 0 {
		return nil, nil
	}
	col, err := s.ResolveCollection(ctx, ref)
	if err != nil {
		return nil, err
	}

	items := append([]protocol.ObjectReference(nil), col.Items...)
	next := col.First
	if len(items) > 0 {
		next = col.Next
	}
	for next != nil && len(items) < maxItems {
		page, err := s.ResolveCollection(ctx, *next)
		if err != nil {
			return truncate(items, maxItems), err
		}
		items = append(items, page.Items...)
		next = page.Next
	}
	return truncate(items, maxItems), nil
}

func truncate(items []protocol.ObjectReference, n int) []protocol.ObjectReference {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// ResolveThread resolves ref and then the chain of inReplyTo parents, up to
// maxDepth documents. A reply cycle fails with a history replay error. The
// documents resolved before a failure are returned with it.
func (s *Session) ResolveThread(ctx context.Context, ref protocol.ObjectReference, maxDepth int) ([]protocol.Document, error) {
	var thread []protocol.Document
	for len(thread) < maxDepth {
		doc, err := s.Resolve(ctx, ref)
		if err != nil {
			return thread, err
		}
		thread = append(thread, doc)

		parent, ok := doc["inReplyTo"]
		if !ok || parent == nil {
			break
		}
		ref, err = protocol.FromValue(parent)
		if err != nil {
			break
		}
	}
	return thread, nil
}

// History returns the normalized URIs looked up so far, sorted.
func (s *Session) History() []string {
	out := make([]string, 0, len(s.history))
	for k := range s.history {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of URIs looked up so far.
func (s *Session) Len() int {
	return len(s.history)
}

// Close records the session size. Calling it is optional.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.engine.metrics.ObserveSession(len(s.history))
}

// normalizeURI lower-cases scheme and host so that spelling variants of one
// URI share a history entry.
func normalizeURI(u *url.URL) string {
	n := *u
	n.Scheme = strings.ToLower(n.Scheme)
	n.Host = strings.ToLower(n.Host)
	return n.String()
}
