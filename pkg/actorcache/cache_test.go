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

package actorcache

import (
	"context"
	"crypto/rsa"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedtrust/fedtrust/pkg/federr"
	"github.com/fedtrust/fedtrust/pkg/metrics"
	"github.com/fedtrust/fedtrust/pkg/protocol"
	"github.com/fedtrust/fedtrust/pkg/resolver"
	"github.com/fedtrust/fedtrust/pkg/signer/signertest"
)

const aliceID = "https://remote.example/users/alice"

type fakeResolver struct {
	mu    sync.Mutex
	docs  map[string]protocol.Document
	err   error
	calls int
}

func (r *fakeResolver) Resolve(_ context.Context, ref protocol.ObjectReference, _ ...resolver.ResolveOption) (protocol.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	doc, ok := r.docs[ref.URI()]
	if !ok {
		return nil, federr.Permanent(federr.KindNotFound, federr.ReasonGone, "404")
	}
	return doc.Clone(), nil
}

func actorDoc(t *testing.T, id string, key *rsa.PrivateKey) protocol.Document {
	t.Helper()
	pemData, err := protocol.EncodePublicKeyPEM(&key.PublicKey)
	require.NoError(t, err)
	return protocol.Document{
		"@context":          []any{protocol.ActivityStreamsContext, protocol.SecurityContext},
		"id":                id,
		"type":              "Person",
		"preferredUsername": "alice",
		"inbox":             id + "/inbox",
		"publicKey": map[string]any{
			"id":           id + "#main-key",
			"owner":        id,
			"publicKeyPem": pemData,
		},
	}
}

func TestCache_FindByActorID(t *testing.T) {
	// Test Case 1: a miss resolves once, later lookups are served from memory

	// Setup
	ctx := context.Background()
	m := metrics.New(nil)
	r := &fakeResolver{docs: map[string]protocol.Document{aliceID: actorDoc(t, aliceID, signertest.Key(t, aliceID))}}
	c := New(r, WithMetrics(m))

	// Execute
	first, err := c.FindByActorID(ctx, aliceID)
	require.NoError(t, err)
	second, err := c.FindByActorID(ctx, aliceID)
	require.NoError(t, err)
	byKey, err := c.FindByKeyID(ctx, aliceID+"#main-key")
	require.NoError(t, err)

	// Assert
	assert.Equal(t, 1, r.calls)
	assert.Same(t, first, second)
	assert.Same(t, first, byKey)
	assert.Equal(t, "remote.example", first.Actor.Host)
	assert.Equal(t, aliceID+"/inbox", first.Actor.Inbox)
	require.NotNil(t, first.PublicKey)
	assert.Equal(t, &signertest.Key(t, aliceID).PublicKey, first.PublicKey.Key)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ActorCacheHit.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActorCacheHit.WithLabelValues("miss")))
}

func TestCache_FindByKeyIDMissDoesNotFetch(t *testing.T) {
	r := &fakeResolver{docs: map[string]protocol.Document{}}
	c := New(r)

	actor, err := c.FindByKeyID(context.Background(), aliceID+"#main-key")

	assert.NoError(t, err)
	assert.Nil(t, actor)
	assert.Equal(t, 0, r.calls)
}

func TestCache_ForeignKeyIDNotIndexed(t *testing.T) {
	// Test Case 2: an actor claiming a key id on another host cannot take it over

	// Setup
	ctx := context.Background()
	malloryID := "https://evil.example/users/mallory"
	forged := actorDoc(t, malloryID, signertest.Key(t, malloryID))
	forged["publicKey"].(map[string]any)["id"] = aliceID + "#main-key"
	r := &fakeResolver{docs: map[string]protocol.Document{malloryID: forged}}
	c := New(r)

	// Execute
	mallory, err := c.FindByActorID(ctx, malloryID)
	require.NoError(t, err)
	byKey, err := c.FindByKeyID(ctx, aliceID+"#main-key")
	require.NoError(t, err)

	// Assert
	assert.Nil(t, mallory.PublicKey)
	assert.Nil(t, byKey)
}

func TestCache_AddSkipsForeignKey(t *testing.T) {
	c := New(&fakeResolver{})
	c.Add(&protocol.AuthenticatedActor{
		Actor:     protocol.RemoteActor{ID: "https://evil.example/users/mallory"},
		PublicKey: &protocol.PublicKeyMaterial{KeyID: aliceID + "#main-key", Key: &signertest.Key(t, aliceID).PublicKey},
	})

	actor, err := c.FindByKeyID(context.Background(), aliceID+"#main-key")

	require.NoError(t, err)
	assert.Nil(t, actor)
	assert.Equal(t, 1, c.Len())
}

func TestCache_RefetchPublicKey(t *testing.T) {
	// Test Case 3: a rotated key replaces the cached one

	// Setup
	ctx := context.Background()
	r := &fakeResolver{docs: map[string]protocol.Document{aliceID: actorDoc(t, aliceID, signertest.Key(t, "alice-old"))}}
	c := New(r)
	stale, err := c.FindByActorID(ctx, aliceID)
	require.NoError(t, err)

	r.mu.Lock()
	r.docs[aliceID] = actorDoc(t, aliceID, signertest.Key(t, aliceID))
	r.mu.Unlock()

	// Execute
	key, err := c.RefetchPublicKey(ctx, stale)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, &signertest.Key(t, aliceID).PublicKey, key.Key)
	cached, err := c.FindByKeyID(ctx, aliceID+"#main-key")
	require.NoError(t, err)
	assert.Equal(t, key, cached.PublicKey)
	assert.Equal(t, 2, r.calls)
}

func TestCache_Errors(t *testing.T) {
	ctx := context.Background()

	// gone passes through for the verifier to classify
	c := New(&fakeResolver{docs: map[string]protocol.Document{}})
	_, err := c.FindByActorID(ctx, aliceID)
	assert.True(t, federr.IsGone(err))

	// a document that is not an actor
	note := protocol.Document{"id": aliceID, "type": "Note"}
	c = New(&fakeResolver{docs: map[string]protocol.Document{aliceID: note}})
	_, err = c.FindByActorID(ctx, aliceID)
	assert.Equal(t, federr.ReasonActorUnresolved, federr.ReasonOf(err))
	assert.False(t, federr.IsRetryable(err))
	assert.Equal(t, 0, c.Len())

	// transient failures are not cached
	r := &fakeResolver{err: federr.Retryable(federr.KindTransport, federr.ReasonFetchFailed, "503")}
	c = New(r)
	_, err = c.FindByActorID(ctx, aliceID)
	assert.True(t, federr.IsRetryable(err))
	_, err = c.FindByActorID(ctx, aliceID)
	assert.Error(t, err)
	assert.Equal(t, 2, r.calls)
}

func TestCache_Expiry(t *testing.T) {
	ctx := context.Background()
	r := &fakeResolver{docs: map[string]protocol.Document{aliceID: actorDoc(t, aliceID, signertest.Key(t, aliceID))}}
	c := New(r, WithTTL(20*time.Millisecond))

	_, err := c.FindByActorID(ctx, aliceID)
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)
	_, err = c.FindByActorID(ctx, aliceID)
	require.NoError(t, err)

	assert.Equal(t, 2, r.calls)
}

func TestCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	r := &fakeResolver{docs: map[string]protocol.Document{aliceID: actorDoc(t, aliceID, signertest.Key(t, aliceID))}}
	c := New(r)
	_, err := c.FindByActorID(ctx, aliceID)
	require.NoError(t, err)

	c.Invalidate(aliceID)

	assert.Equal(t, 0, c.Len())
	actor, err := c.FindByKeyID(ctx, aliceID+"#main-key")
	assert.NoError(t, err)
	assert.Nil(t, actor)
}
