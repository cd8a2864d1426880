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

// Package verifier authenticates activities pushed to an inbox.
//
// An inbound request is captured while it is still in hand, and verified
// later, typically in a queue worker:
//
//	meta, err := verifier.CaptureSignature(r, body)
//	// ... enqueue activity and meta ...
//	v := verifier.NewDefaultInboxVerifier(g, actors, ldsig.NewProcessor(loader))
//	res, err := v.Verify(ctx, activity, meta)
//	if err != nil {
//	    // federr.Decide(err, logger) says retry or dead-letter
//	}
//	handle(res.Activity, res.Actor)
//
// # Pipeline
//
// Verify runs these checks in order:
//
//  1. The keyId host must be federation-allowed.
//  2. The activity must have exactly one actor. An array collapses to its
//     first element.
//  3. The signer is looked up by keyId, then by the activity actor. A gone
//     actor is a permanent failure, an unreachable one is retryable.
//  4. A signer without a public key is rejected.
//  5. The strategies run in order until one succeeds.
//  6. A string activity id must live on the signer's host. Any other id
//     value is removed.
//
// # Strategies
//
// HTTPSignatureStrategy checks the cavage signature over the captured
// request, including the Digest of POST bodies. When the signature does not
// verify it asks for a key refetch, which happens at most once per
// verification to pick up a rotated key. It then requires the signer to be
// the activity actor.
//
// LDSignatureStrategy checks an embedded RsaSignature2017. Only that suite
// is accepted. The creator host is gated and the creator key resolved. On
// success the working activity is replaced by its compacted form, so
// properties outside the JSON-LD context never reach the caller. The
// creator must be the actor of the compacted activity.
//
// A retryable error from any strategy stops the pipeline. Permanent
// failures fall through to the next strategy.
package verifier
