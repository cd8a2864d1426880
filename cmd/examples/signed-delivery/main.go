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

package main

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"log"

	"github.com/fedtrust/fedtrust/pkg/federr"
	"github.com/fedtrust/fedtrust/pkg/guard"
	"github.com/fedtrust/fedtrust/pkg/protocol"
	"github.com/fedtrust/fedtrust/pkg/signer"
	"github.com/fedtrust/fedtrust/pkg/verifier"
)

const (
	actorID  = "https://remote.example/users/alice"
	inboxURL = "https://self.example/inbox"
)

// staticActors is an ActorStore that knows exactly one actor
type staticActors struct {
	actor *protocol.AuthenticatedActor
}

func (s *staticActors) FindByKeyID(_ context.Context, keyID string) (*protocol.AuthenticatedActor, error) {
	if s.actor.PublicKey != nil && s.actor.PublicKey.KeyID == keyID {
		return s.actor, nil
	}
	return nil, nil
}

func (s *staticActors) FindByActorID(_ context.Context, id string) (*protocol.AuthenticatedActor, error) {
	if s.actor.Actor.ID == id {
		return s.actor, nil
	}
	return nil, nil
}

func (s *staticActors) RefetchPublicKey(_ context.Context, actor *protocol.AuthenticatedActor) (*protocol.PublicKeyMaterial, error) {
	return actor.PublicKey, nil
}

func publicKey(key *rsa.PrivateKey) *protocol.PublicKeyMaterial {
	pemData, err := protocol.EncodePublicKeyPEM(&key.PublicKey)
	if err != nil {
		log.Fatalf("Failed to encode public key: %v", err)
	}
	return &protocol.PublicKeyMaterial{KeyID: actorID + "#main-key", Owner: actorID, PEM: pemData, Key: &key.PublicKey}
}

// This example signs an activity the way a remote server delivers it and
// verifies it the way an inbox worker does.
func main() {
	fmt.Println("=== Signed Delivery Example ===")
	fmt.Println()
	ctx := context.Background()

	// Step 1: Create the sender's key
	fmt.Println("Step 1: Generating sender key...")
	key, err := signer.GenerateKey()
	if err != nil {
		log.Fatalf("Failed to generate key: %v", err)
	}
	material := signer.NewPrivateKeyMaterial(actorID+"#main-key", key)
	fmt.Printf("  keyId: %s\n\n", material.KeyID)

	// Step 2: Sign a Create activity
	fmt.Println("Step 2: Signing delivery...")
	activity := map[string]any{
		"@context": protocol.ActivityStreamsContext,
		"id":       "https://remote.example/activities/1",
		"type":     "Create",
		"actor":    actorID,
		"object": map[string]any{
			"id":      "https://remote.example/notes/1",
			"type":    "Note",
			"content": "hello, fediverse",
		},
	}
	body, err := json.Marshal(activity)
	if err != nil {
		log.Fatalf("Failed to encode activity: %v", err)
	}
	signed, err := signer.NewDefaultRequestSigner().SignPost(material, inboxURL, body, nil, "")
	if err != nil {
		log.Fatalf("Failed to sign: %v", err)
	}
	fmt.Printf("  Signing string:\n%s\n\n", signed.SigningString)

	// Step 3: Capture the signature at the inbox
	fmt.Println("Step 3: Capturing signature...")
	req, err := signed.HTTPRequest(ctx)
	if err != nil {
		log.Fatalf("Failed to build request: %v", err)
	}
	meta, err := verifier.CaptureSignature(req, body)
	if err != nil {
		log.Fatalf("Failed to capture signature: %v", err)
	}
	fmt.Printf("  headers: %v\n\n", meta.Headers)

	// Step 4: Verify against the sender's published key
	fmt.Println("Step 4: Verifying...")
	actors := &staticActors{actor: &protocol.AuthenticatedActor{
		Actor:     protocol.RemoteActor{ID: actorID, Host: "remote.example"},
		PublicKey: publicKey(key),
	}}
	g := guard.NewDefaultGuard(guard.Options{SelfHost: "self.example"})
	v := verifier.NewDefaultInboxVerifier(g, actors, nil)

	doc, err := protocol.Parse(body)
	if err != nil {
		log.Fatalf("Failed to parse activity: %v", err)
	}
	res, err := v.Verify(ctx, doc, meta)
	if err != nil {
		log.Fatalf("Verification failed: %v", err)
	}
	fmt.Printf("  ✓ %s by %s (%s)\n\n", res.Activity.Type(), res.Actor.Actor.ID, res.Path)

	// Step 5: A tampered body is refused
	fmt.Println("Step 5: Tampering with the body...")
	tampered := *meta
	tampered.Body = []byte(`{"type":"Delete"}`)
	_, err = v.Verify(ctx, doc, &tampered)
	fmt.Printf("  ✗ rejected: %s (retryable: %v)\n", federr.ReasonOf(err), federr.IsRetryable(err))
}
