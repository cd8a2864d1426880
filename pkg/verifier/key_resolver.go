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
	"strings"

	"github.com/fedtrust/fedtrust/pkg/federr"
	"github.com/fedtrust/fedtrust/pkg/guard"
	"github.com/fedtrust/fedtrust/pkg/protocol"
)

// KeyResolver finds the actor and public key behind a signature.
type KeyResolver interface {
	// ResolveSigner looks up by keyID first and falls back to actorID.
	ResolveSigner(ctx context.Context, keyID, actorID string) (*protocol.AuthenticatedActor, error)

	// Refetch returns the actor's current key, bypassing any cache
	Refetch(ctx context.Context, actor *protocol.AuthenticatedActor) (*protocol.PublicKeyMaterial, error)
}

// DefaultKeyResolver implements KeyResolver over an ActorStore and maps
// lookup failures onto the retry policy.
type DefaultKeyResolver struct {
	store ActorStore
}

// NewDefaultKeyResolver creates a new DefaultKeyResolver
func NewDefaultKeyResolver(store ActorStore) *DefaultKeyResolver {
	return &DefaultKeyResolver{store: store}
}

// ResolveSigner resolves the signing actor. A gone actor is permanent, an
// unreachable one is retryable, and an actor that resolves to nothing is
// permanent. The signer always lives on the keyID host; a cached entry that
// does not publish keyID itself is ignored.
func (r *DefaultKeyResolver) ResolveSigner(ctx context.Context, keyID, actorID string) (*protocol.AuthenticatedActor, error) {
	if err := ctx.Err(); err != nil {
		return nil, federr.FromContext(err)
	}
	keyHost, err := guard.ExtractHost(keyID)
	if err != nil {
		return nil, err
	}

	actor, err := r.store.FindByKeyID(ctx, keyID)
	if err != nil {
		return nil, classifyLookup(err, keyID)
	}
	if actor != nil && onHost(actor, keyHost) && (actor.PublicKey == nil || actor.PublicKey.KeyID == keyID) {
		return actor, nil
	}

	if actorID == "" {
		actorID = KeyOwner(keyID)
	}
	actor, err = r.store.FindByActorID(ctx, actorID)
	if err != nil {
		return nil, classifyLookup(err, actorID)
	}
	if actor == nil {
		return nil, federr.Permanent(federr.KindActorResolution, federr.ReasonActorUnresolved, "actor %s not found", actorID)
	}
	if !onHost(actor, keyHost) {
		return nil, federr.Permanent(federr.KindSignature, federr.ReasonActorMismatch,
			"key %s does not belong to actor %s", keyID, actor.Actor.ID)
	}
	return actor, nil
}

func onHost(actor *protocol.AuthenticatedActor, host string) bool {
	h, err := guard.ExtractHost(actor.Actor.ID)
	return err == nil && h == host
}

// Refetch asks the store for a fresh key.
func (r *DefaultKeyResolver) Refetch(ctx context.Context, actor *protocol.AuthenticatedActor) (*protocol.PublicKeyMaterial, error) {
	key, err := r.store.RefetchPublicKey(ctx, actor)
	if err != nil {
		return nil, classifyLookup(err, actor.Actor.ID)
	}
	return key, nil
}

func classifyLookup(err error, uri string) error {
	switch {
	case federr.IsGone(err):
		return federr.Permanent(federr.KindActorResolution, federr.ReasonActorGone, "actor %s is gone", uri).Wrap(err)
	case federr.KindOf(err) == federr.KindPolicy:
		return err
	default:
		return federr.Retryable(federr.KindActorResolution, federr.ReasonActorUnresolved, "failed to resolve %s", uri).Wrap(err)
	}
}

// KeyOwner guesses the actor id of a key id by dropping its fragment.
func KeyOwner(keyID string) string {
	owner, _, _ := strings.Cut(keyID, "#")
	return owner
}
