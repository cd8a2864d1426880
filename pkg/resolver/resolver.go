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
	"errors"

	"github.com/fedtrust/fedtrust/pkg/protocol"
	"github.com/fedtrust/fedtrust/pkg/signer"
)

// DefaultRecursionLimit bounds the number of distinct URIs one session may
// resolve.
const DefaultRecursionLimit = 256

// ErrLocalNotFound is returned by a LocalObjectStore with no matching row.
var ErrLocalNotFound = errors.New("local object not found")

// LocalKind names the kind of local object a self-host URL addresses
type LocalKind string

const (
	LocalNote     LocalKind = "note"
	LocalUser     LocalKind = "user"
	LocalQuestion LocalKind = "question"
	LocalLike     LocalKind = "like"
	LocalFollow   LocalKind = "follow"
	LocalAnnounce LocalKind = "announce"
)

// LocalObjectStore renders objects owned by this server.
//
// For LocalNote with subpath "activity" the store renders the Create wrapper
// of the note. For LocalFollow, id is the follower and subpath the followee.
// A missing row is reported as ErrLocalNotFound or a nil document.
type LocalObjectStore interface {
	Render(ctx context.Context, kind LocalKind, id, subpath string) (protocol.Document, error)
}

// KeySource supplies the key used for signed fetches. signer.InstanceActor
// implements it.
type KeySource interface {
	Key(ctx context.Context) (*signer.PrivateKeyMaterial, error)
}

// ObjectResolver resolves object references into documents.
type ObjectResolver interface {
	// Resolve resolves one reference in a fresh session.
	Resolve(ctx context.Context, ref protocol.ObjectReference, opts ...ResolveOption) (protocol.Document, error)

	// NewSession starts a session whose history bounds every lookup made
	// through it.
	NewSession() *Session
}

type resolveOptions struct {
	allowAnonymous bool
}

// ResolveOption modifies a single resolution
type ResolveOption func(*resolveOptions)

// AllowAnonymous accepts a remote document without an id and uses the final
// fetch URL as its id. Only callers that address the document directly, such
// as a search by URL, should pass it.
func AllowAnonymous() ResolveOption {
	return func(o *resolveOptions) { o.allowAnonymous = true }
}
