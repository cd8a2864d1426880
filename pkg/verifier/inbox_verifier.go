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

	"github.com/fedtrust/fedtrust/pkg/protocol"
)

// InboxVerifier authenticates pushed activities before any business logic
// sees them.
type InboxVerifier interface {
	// Verify returns the activity to act on and its authenticated signer.
	// Every error is a *federr.Error whose Retryable flag decides whether the
	// job may be attempted again.
	Verify(ctx context.Context, activity protocol.Document, meta *SignatureMeta) (*Result, error)
}

// ActorStore is the actor and key cache the verifier consults. Lookups
// return (nil, nil) when the actor is simply unknown.
type ActorStore interface {
	// FindByKeyID is the cached fast path keyed by the signature keyId
	FindByKeyID(ctx context.Context, keyID string) (*protocol.AuthenticatedActor, error)

	// FindByActorID may resolve the actor remotely
	FindByActorID(ctx context.Context, actorID string) (*protocol.AuthenticatedActor, error)

	// RefetchPublicKey bypasses the cache to pick up a rotated key
	RefetchPublicKey(ctx context.Context, actor *protocol.AuthenticatedActor) (*protocol.PublicKeyMaterial, error)
}

// Outcome is the verification result class.
type Outcome int

const (
	// OutcomeRejected means the activity must not be processed
	OutcomeRejected Outcome = iota
	// OutcomeVerified means the HTTP signature verified the wire payload
	OutcomeVerified
	// OutcomeVerifiedNormalized means the LD signature verified and the
	// activity was replaced by its compacted form
	OutcomeVerifiedNormalized
)

func (o Outcome) String() string {
	switch o {
	case OutcomeVerified:
		return "verified"
	case OutcomeVerifiedNormalized:
		return "verified_normalized"
	default:
		return "rejected"
	}
}

// Path names the signature scheme that authenticated an activity.
type Path string

const (
	PathHTTPSignature Path = "http_signature"
	PathLDSignature   Path = "ld_signature"
)

// Result is a successfully verified activity.
type Result struct {
	// Activity is the payload downstream code must use. On the LD path it
	// is the compacted form, not the wire payload.
	Activity protocol.Document
	Actor    *protocol.AuthenticatedActor
	Outcome  Outcome
	Path     Path
}
