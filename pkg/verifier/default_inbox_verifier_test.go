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

package verifier

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedtrust/fedtrust/pkg/federr"
	"github.com/fedtrust/fedtrust/pkg/guard"
	"github.com/fedtrust/fedtrust/pkg/ldsig/ldsigtest"
	"github.com/fedtrust/fedtrust/pkg/metrics"
	"github.com/fedtrust/fedtrust/pkg/protocol"
	"github.com/fedtrust/fedtrust/pkg/signer"
	"github.com/fedtrust/fedtrust/pkg/signer/signertest"
)

const (
	aliceID   = "https://remote.example/users/alice"
	malloryID = "https://remote.example/users/mallory"
	relayID   = "https://relay.example/actor"
	inboxURL  = "https://self.example/inbox"
)

// fakeActorStore is an in-memory ActorStore
type fakeActorStore struct {
	mu sync.Mutex

	byKey   map[string]*protocol.AuthenticatedActor
	byActor map[string]*protocol.AuthenticatedActor
	fresh   map[string]*protocol.PublicKeyMaterial

	actorErr   error
	refetchErr error

	keyLookups   int
	actorLookups int
	refetches    int
}

func newFakeActorStore() *fakeActorStore {
	return &fakeActorStore{
		byKey:   map[string]*protocol.AuthenticatedActor{},
		byActor: map[string]*protocol.AuthenticatedActor{},
		fresh:   map[string]*protocol.PublicKeyMaterial{},
	}
}

func (s *fakeActorStore) add(a *protocol.AuthenticatedActor) {
	s.byActor[a.Actor.ID] = a
	if a.PublicKey != nil {
		s.byKey[a.PublicKey.KeyID] = a
	}
}

func (s *fakeActorStore) FindByKeyID(_ context.Context, keyID string) (*protocol.AuthenticatedActor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyLookups++
	return s.byKey[keyID], nil
}

func (s *fakeActorStore) FindByActorID(_ context.Context, actorID string) (*protocol.AuthenticatedActor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actorLookups++
	if s.actorErr != nil {
		return nil, s.actorErr
	}
	return s.byActor[actorID], nil
}

func (s *fakeActorStore) RefetchPublicKey(_ context.Context, actor *protocol.AuthenticatedActor) (*protocol.PublicKeyMaterial, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refetches++
	if s.refetchErr != nil {
		return nil, s.refetchErr
	}
	return s.fresh[actor.Actor.ID], nil
}

func keyMaterial(t testing.TB, actorID string, key *rsa.PrivateKey) *protocol.PublicKeyMaterial {
	t.Helper()
	pemData, err := protocol.EncodePublicKeyPEM(&key.PublicKey)
	require.NoError(t, err)
	return &protocol.PublicKeyMaterial{
		KeyID: actorID + "#main-key",
		Owner: actorID,
		PEM:   pemData,
		Key:   &key.PublicKey,
	}
}

func actorWithKey(t testing.TB, actorID string, key *rsa.PrivateKey) *protocol.AuthenticatedActor {
	t.Helper()
	host, err := guard.ExtractHost(actorID)
	require.NoError(t, err)
	return &protocol.AuthenticatedActor{
		Actor:     protocol.RemoteActor{ID: actorID, Host: host},
		PublicKey: keyMaterial(t, actorID, key),
	}
}

func createNote(actorID, id string) protocol.Document {
	return protocol.Document{
		"@context": []any{protocol.ActivityStreamsContext, protocol.SecurityContext},
		"id":       id,
		"type":     "Create",
		"actor":    actorID,
		"object": map[string]any{
			"id":           id + "/note",
			"type":         "Note",
			"attributedTo": actorID,
			"content":      "hello",
		},
	}
}

// deliver signs activity as key and captures it the way the inbox does.
func deliver(t testing.TB, key *signer.PrivateKeyMaterial, activity protocol.Document) (protocol.Document, *SignatureMeta) {
	t.Helper()
	body, err := json.Marshal(activity)
	require.NoError(t, err)

	signed, err := signer.NewDefaultRequestSigner().SignPost(key, inboxURL, body, nil, "")
	require.NoError(t, err)
	req, err := signed.HTTPRequest(context.Background())
	require.NoError(t, err)

	meta, err := CaptureSignature(req, body)
	require.NoError(t, err)

	parsed, err := protocol.Parse(body)
	require.NoError(t, err)
	return parsed, meta
}

func newTestGuard(blocked ...string) guard.Guard {
	return guard.NewDefaultGuard(guard.Options{SelfHost: "self.example", BlockedHosts: blocked})
}

func TestDefaultInboxVerifier_HTTPSignature(t *testing.T) {
	// Test Case 1: a correctly signed activity verifies on the HTTP path

	// Setup
	ctx := context.Background()
	store := newFakeActorStore()
	store.add(actorWithKey(t, aliceID, signertest.Key(t, aliceID)))
	v := NewDefaultInboxVerifier(newTestGuard(), store, nil)
	activity, meta := deliver(t, signertest.Material(t, aliceID), createNote(aliceID, "https://remote.example/activities/1"))

	// Execute
	res, err := v.Verify(ctx, activity, meta)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, OutcomeVerified, res.Outcome)
	assert.Equal(t, PathHTTPSignature, res.Path)
	assert.Equal(t, aliceID, res.Actor.Actor.ID)
	assert.Equal(t, activity, res.Activity)
	assert.Equal(t, 1, store.keyLookups)
	assert.Equal(t, 0, store.actorLookups)
	assert.Equal(t, 0, store.refetches)
}

func TestDefaultInboxVerifier_ActorArrayCollapses(t *testing.T) {
	store := newFakeActorStore()
	store.add(actorWithKey(t, aliceID, signertest.Key(t, aliceID)))
	v := NewDefaultInboxVerifier(newTestGuard(), store, nil)

	doc := createNote(aliceID, "https://remote.example/activities/2")
	doc["actor"] = []any{aliceID, malloryID}
	activity, meta := deliver(t, signertest.Material(t, aliceID), doc)

	res, err := v.Verify(context.Background(), activity, meta)

	require.NoError(t, err)
	assert.Equal(t, aliceID, res.Actor.Actor.ID)
}

func TestDefaultInboxVerifier_Rejections(t *testing.T) {
	aliceKey := signertest.Key(t, aliceID)

	tests := []struct {
		name      string
		setup     func(store *fakeActorStore, doc protocol.Document)
		blocked   []string
		reason    federr.Reason
		retryable bool
	}{
		{
			name:    "blocked signer host",
			blocked: []string{"remote.example"},
			reason:  federr.ReasonBlockedHost,
		},
		{
			name:   "missing actor",
			setup:  func(_ *fakeActorStore, doc protocol.Document) { delete(doc, "actor") },
			reason: federr.ReasonMissingActor,
		},
		{
			name:   "empty actor array",
			setup:  func(_ *fakeActorStore, doc protocol.Document) { doc["actor"] = []any{} },
			reason: federr.ReasonMissingActor,
		},
		{
			name: "actor gone",
			setup: func(s *fakeActorStore, _ protocol.Document) {
				s.byKey = map[string]*protocol.AuthenticatedActor{}
				s.actorErr = federr.Permanent(federr.KindNotFound, federr.ReasonGone, "410")
			},
			reason: federr.ReasonActorGone,
		},
		{
			name: "actor unreachable",
			setup: func(s *fakeActorStore, _ protocol.Document) {
				s.byKey = map[string]*protocol.AuthenticatedActor{}
				s.actorErr = errors.New("connection reset")
			},
			reason:    federr.ReasonActorUnresolved,
			retryable: true,
		},
		{
			name: "actor unknown",
			setup: func(s *fakeActorStore, _ protocol.Document) {
				s.byKey = map[string]*protocol.AuthenticatedActor{}
				s.byActor = map[string]*protocol.AuthenticatedActor{}
			},
			reason: federr.ReasonActorUnresolved,
		},
		{
			name: "no public key",
			setup: func(s *fakeActorStore, _ protocol.Document) {
				s.byKey[aliceID+"#main-key"] = &protocol.AuthenticatedActor{Actor: protocol.RemoteActor{ID: aliceID}}
			},
			reason: federr.ReasonNoPublicKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			store := newFakeActorStore()
			store.add(actorWithKey(t, aliceID, aliceKey))
			doc := createNote(aliceID, "https://remote.example/activities/3")
			if tt.setup != nil {
				tt.setup(store, doc)
			}
			v := NewDefaultInboxVerifier(newTestGuard(tt.blocked...), store, nil)
			activity, meta := deliver(t, signertest.Material(t, aliceID), doc)

			// Execute
			res, err := v.Verify(context.Background(), activity, meta)

			// Assert
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, tt.reason, federr.ReasonOf(err))
			assert.Equal(t, tt.retryable, federr.IsRetryable(err))
		})
	}
}

func TestDefaultInboxVerifier_Unsigned(t *testing.T) {
	v := NewDefaultInboxVerifier(newTestGuard(), newFakeActorStore(), nil)

	_, err := v.Verify(context.Background(), createNote(aliceID, ""), nil)

	assert.Equal(t, federr.ReasonSignatureMissing, federr.ReasonOf(err))
	assert.False(t, federr.IsRetryable(err))
}

func TestDefaultInboxVerifier_TamperedBody(t *testing.T) {
	// Test Case 2: a body altered after signing no longer matches its digest

	// Setup
	store := newFakeActorStore()
	store.add(actorWithKey(t, aliceID, signertest.Key(t, aliceID)))
	v := NewDefaultInboxVerifier(newTestGuard(), store, ldsigtest.Processor(t))
	activity, meta := deliver(t, signertest.Material(t, aliceID), createNote(aliceID, "https://remote.example/activities/4"))

	meta.Body[len(meta.Body)-2] ^= 0x01

	// Execute
	_, err := v.Verify(context.Background(), activity, meta)

	// Assert
	require.Error(t, err)
	assert.Equal(t, federr.ReasonSignatureInvalid, federr.ReasonOf(err))
	assert.False(t, federr.IsRetryable(err))
}

func TestDefaultInboxVerifier_TamperedHeader(t *testing.T) {
	store := newFakeActorStore()
	store.add(actorWithKey(t, aliceID, signertest.Key(t, aliceID)))
	store.fresh[aliceID] = keyMaterial(t, aliceID, signertest.Key(t, aliceID))
	v := NewDefaultInboxVerifier(newTestGuard(), store, nil)
	activity, meta := deliver(t, signertest.Material(t, aliceID), createNote(aliceID, "https://remote.example/activities/5"))

	meta.Header.Set("Date", "Thu, 01 Jan 2026 00:00:00 GMT")

	_, err := v.Verify(context.Background(), activity, meta)

	assert.Equal(t, federr.ReasonSignatureInvalid, federr.ReasonOf(err))
	assert.Equal(t, 1, store.refetches)
}

func TestDefaultInboxVerifier_RotatedKey(t *testing.T) {
	// Test Case 3: the cached key is stale, one refetch picks up the new key

	// Setup
	m := metrics.New(nil)
	store := newFakeActorStore()
	store.add(actorWithKey(t, aliceID, signertest.Key(t, "alice-old")))
	store.fresh[aliceID] = keyMaterial(t, aliceID, signertest.Key(t, aliceID))
	v := NewDefaultInboxVerifier(newTestGuard(), store, nil, WithMetrics(m))
	activity, meta := deliver(t, signertest.Material(t, aliceID), createNote(aliceID, "https://remote.example/activities/6"))

	// Execute
	res, err := v.Verify(context.Background(), activity, meta)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, OutcomeVerified, res.Outcome)
	assert.Equal(t, &signertest.Key(t, aliceID).PublicKey, res.Actor.PublicKey.Key)
	assert.Equal(t, 1, store.refetches)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.KeyRefetches))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VerifyTotal.WithLabelValues("verified", "ok")))
}

func TestDefaultInboxVerifier_RefetchOnlyOnce(t *testing.T) {
	store := newFakeActorStore()
	store.add(actorWithKey(t, aliceID, signertest.Key(t, "alice-old")))
	store.fresh[aliceID] = keyMaterial(t, aliceID, signertest.Key(t, "alice-older"))
	v := NewDefaultInboxVerifier(newTestGuard(), store, ldsigtest.Processor(t))
	activity, meta := deliver(t, signertest.Material(t, aliceID), createNote(aliceID, "https://remote.example/activities/7"))

	_, err := v.Verify(context.Background(), activity, meta)

	require.Error(t, err)
	assert.Equal(t, federr.ReasonSignatureInvalid, federr.ReasonOf(err))
	assert.Equal(t, 1, store.refetches)
}

func TestDefaultInboxVerifier_RefetchUnreachable(t *testing.T) {
	store := newFakeActorStore()
	store.add(actorWithKey(t, aliceID, signertest.Key(t, "alice-old")))
	store.refetchErr = federr.Retryable(federr.KindTransport, federr.ReasonFetchFailed, "timeout")
	v := NewDefaultInboxVerifier(newTestGuard(), store, nil)
	activity, meta := deliver(t, signertest.Material(t, aliceID), createNote(aliceID, "https://remote.example/activities/8"))

	_, err := v.Verify(context.Background(), activity, meta)

	require.Error(t, err)
	assert.True(t, federr.IsRetryable(err))
}

func TestDefaultInboxVerifier_ActorMismatch(t *testing.T) {
	// Test Case 4: a valid signature by someone other than the actor

	// Setup
	store := newFakeActorStore()
	store.add(actorWithKey(t, aliceID, signertest.Key(t, aliceID)))
	store.add(actorWithKey(t, malloryID, signertest.Key(t, malloryID)))
	v := NewDefaultInboxVerifier(newTestGuard(), store, ldsigtest.Processor(t))
	activity, meta := deliver(t, signertest.Material(t, malloryID), createNote(aliceID, "https://remote.example/activities/9"))

	// Execute
	_, err := v.Verify(context.Background(), activity, meta)

	// Assert
	require.Error(t, err)
	assert.Equal(t, federr.ReasonActorMismatch, federr.ReasonOf(err))
	assert.Equal(t, 0, store.refetches)
}

func TestDefaultInboxVerifier_ForeignKeyClaimIgnored(t *testing.T) {
	// Test Case 5: a cached actor on another host claiming alice's key id
	// does not shadow alice

	// Setup
	evilID := "https://evil.example/users/mallory"
	store := newFakeActorStore()
	store.add(actorWithKey(t, aliceID, signertest.Key(t, aliceID)))
	evil := actorWithKey(t, evilID, signertest.Key(t, evilID))
	evil.PublicKey.KeyID = aliceID + "#main-key"
	store.byKey[aliceID+"#main-key"] = evil
	v := NewDefaultInboxVerifier(newTestGuard(), store, nil)
	activity, meta := deliver(t, signertest.Material(t, aliceID), createNote(aliceID, "https://remote.example/activities/12"))

	// Execute
	res, err := v.Verify(context.Background(), activity, meta)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, aliceID, res.Actor.Actor.ID)
	assert.Equal(t, 1, store.actorLookups)
	assert.Equal(t, 0, store.refetches)
}

func TestDefaultKeyResolver_SignerHost(t *testing.T) {
	tests := []struct {
		name    string
		cached  func(t *testing.T) *protocol.AuthenticatedActor
		actorID string
		wantID  string
		reason  federr.Reason
	}{
		{
			name: "key id hit with another key id falls back",
			cached: func(t *testing.T) *protocol.AuthenticatedActor {
				a := actorWithKey(t, aliceID, signertest.Key(t, aliceID))
				a.PublicKey.KeyID = aliceID + "#other-key"
				return a
			},
			actorID: aliceID,
			wantID:  aliceID,
		},
		{
			name:    "fallback actor on another host",
			actorID: "https://evil.example/users/mallory",
			reason:  federr.ReasonActorMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			store := newFakeActorStore()
			store.add(actorWithKey(t, aliceID, signertest.Key(t, aliceID)))
			store.add(actorWithKey(t, "https://evil.example/users/mallory", signertest.Key(t, malloryID)))
			if tt.cached != nil {
				store.byKey[aliceID+"#main-key"] = tt.cached(t)
			} else {
				delete(store.byKey, aliceID+"#main-key")
			}
			r := NewDefaultKeyResolver(store)

			// Execute
			actor, err := r.ResolveSigner(context.Background(), aliceID+"#main-key", tt.actorID)

			// Assert
			if tt.reason != "" {
				require.Error(t, err)
				assert.Equal(t, tt.reason, federr.ReasonOf(err))
				assert.False(t, federr.IsRetryable(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, actor.Actor.ID)
		})
	}
}

func TestDefaultInboxVerifier_AuthorityBinding(t *testing.T) {
	// Test Case 6: a verified signer cannot push ids of another host

	// Setup
	store := newFakeActorStore()
	store.add(actorWithKey(t, aliceID, signertest.Key(t, aliceID)))
	v := NewDefaultInboxVerifier(newTestGuard(), store, nil)
	activity, meta := deliver(t, signertest.Material(t, aliceID), createNote(aliceID, "https://other.example/activities/1"))

	// Execute
	_, err := v.Verify(context.Background(), activity, meta)

	// Assert
	require.Error(t, err)
	assert.Equal(t, federr.ReasonAuthorityMismatch, federr.ReasonOf(err))
	assert.False(t, federr.IsRetryable(err))
}

func TestDefaultInboxVerifier_NonStringIDStripped(t *testing.T) {
	store := newFakeActorStore()
	store.add(actorWithKey(t, aliceID, signertest.Key(t, aliceID)))
	v := NewDefaultInboxVerifier(newTestGuard(), store, nil)

	doc := createNote(aliceID, "")
	doc["id"] = map[string]any{"id": "https://other.example/x"}
	activity, meta := deliver(t, signertest.Material(t, aliceID), doc)

	res, err := v.Verify(context.Background(), activity, meta)

	require.NoError(t, err)
	_, present := res.Activity["id"]
	assert.False(t, present)
	// the caller's copy is left alone
	_, present = activity["id"]
	assert.True(t, present)
}

func TestDefaultInboxVerifier_LDSignatureFallback(t *testing.T) {
	// Test Case 7: a relay forwards an activity carrying alice's LD signature

	// Setup
	processor := ldsigtest.Processor(t)
	store := newFakeActorStore()
	store.add(actorWithKey(t, aliceID, signertest.Key(t, aliceID)))
	store.add(actorWithKey(t, relayID, signertest.Key(t, relayID)))
	v := NewDefaultInboxVerifier(newTestGuard(), store, processor)

	signed, err := processor.Sign(createNote(aliceID, "https://remote.example/activities/10"), aliceID+"#main-key", signertest.Key(t, aliceID))
	require.NoError(t, err)
	signed["injected"] = "not covered by the signature"
	activity, meta := deliver(t, signertest.Material(t, relayID), signed)

	// Execute
	res, err := v.Verify(context.Background(), activity, meta)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, OutcomeVerifiedNormalized, res.Outcome)
	assert.Equal(t, PathLDSignature, res.Path)
	assert.Equal(t, aliceID, res.Actor.Actor.ID)
	assert.NotEqual(t, activity, res.Activity)
	_, present := res.Activity["injected"]
	assert.False(t, present)
	_, present = res.Activity["signature"]
	assert.False(t, present)
	assert.Nil(t, res.Activity.LDSignature())
	assert.Equal(t, "https://remote.example/activities/10", res.Activity.ID())
}

func TestDefaultInboxVerifier_LDSignatureRejections(t *testing.T) {
	processor := ldsigtest.Processor(t)

	tests := []struct {
		name    string
		mutate  func(doc protocol.Document)
		blocked []string
		reason  federr.Reason
	}{
		{
			name: "unsupported suite",
			mutate: func(doc protocol.Document) {
				doc["signature"].(map[string]any)["type"] = "Ed25519Signature2018"
			},
			reason: federr.ReasonUnsupportedSuite,
		},
		{
			name:   "tampered content",
			mutate: func(doc protocol.Document) { doc["object"].(map[string]any)["content"] = "forged" },
			reason: federr.ReasonSignatureInvalid,
		},
		{
			name:    "creator host blocked",
			blocked: []string{"creator.example"},
			mutate: func(doc protocol.Document) {
				doc["signature"].(map[string]any)["creator"] = "https://creator.example/users/c#main-key"
			},
			reason: federr.ReasonBlockedHost,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			store := newFakeActorStore()
			store.add(actorWithKey(t, aliceID, signertest.Key(t, aliceID)))
			store.add(actorWithKey(t, relayID, signertest.Key(t, relayID)))
			v := NewDefaultInboxVerifier(newTestGuard(tt.blocked...), store, processor)

			signed, err := processor.Sign(createNote(aliceID, "https://remote.example/activities/11"), aliceID+"#main-key", signertest.Key(t, aliceID))
			require.NoError(t, err)
			tt.mutate(signed)
			activity, meta := deliver(t, signertest.Material(t, relayID), signed)

			// Execute
			_, err = v.Verify(context.Background(), activity, meta)

			// Assert
			require.Error(t, err)
			assert.Equal(t, tt.reason, federr.ReasonOf(err))
			assert.False(t, federr.IsRetryable(err))
		})
	}
}

func TestCaptureSignature(t *testing.T) {
	body := []byte(`{"type":"Follow"}`)
	signed, err := signer.NewDefaultRequestSigner().SignPost(signertest.Material(t, aliceID), inboxURL+"?x=1", body, nil, "")
	require.NoError(t, err)
	req, err := signed.HTTPRequest(context.Background())
	require.NoError(t, err)

	meta, err := CaptureSignature(req, body)

	require.NoError(t, err)
	assert.Equal(t, aliceID+"#main-key", meta.KeyID)
	assert.Equal(t, signer.Algorithm, meta.Algorithm)
	assert.Equal(t, []string{"(request-target)", "date", "host", "digest"}, meta.Headers)
	assert.Equal(t, "/inbox?x=1", meta.Path)
	assert.Equal(t, "self.example", meta.Host)
	assert.True(t, meta.Covers("Digest"))
	assert.Empty(t, req.Header.Get("Host"))

	// survives a trip through a job queue
	data, err := json.Marshal(meta)
	require.NoError(t, err)
	var restored SignatureMeta
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, meta, &restored)
}

func TestCaptureSignature_Unsigned(t *testing.T) {
	req, err := (&signer.SignedRequest{URL: inboxURL, Method: "POST"}).HTTPRequest(context.Background())
	require.NoError(t, err)

	_, err = CaptureSignature(req, nil)

	assert.Equal(t, federr.ReasonSignatureMissing, federr.ReasonOf(err))
}
