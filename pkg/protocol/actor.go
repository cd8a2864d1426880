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

package protocol

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/fedtrust/fedtrust/pkg/guard"
)

// PublicKeyMaterial is a remote actor's verification key.
type PublicKeyMaterial struct {
	KeyID string
	Owner string
	PEM   string
	Key   crypto.PublicKey
}

// RemoteActor identifies a federated actor.
type RemoteActor struct {
	ID          string
	Host        string
	Username    string
	Inbox       string
	SharedInbox string
}

// AuthenticatedActor is the signer of an inbound activity. PublicKey may be
// nil when it could not be resolved; callers must then fail closed.
type AuthenticatedActor struct {
	Actor     RemoteActor
	PublicKey *PublicKeyMaterial
}

// ParsePublicKeyPEM accepts PKIX ("PUBLIC KEY") and PKCS#1 ("RSA PUBLIC KEY") blocks.
func ParsePublicKeyPEM(data string) (crypto.PublicKey, error) {
	block, _ := pem.Decode([]byte(data))
	if block == nil {
		return nil, fmt.Errorf("no PEM block in public key")
	}
	switch block.Type {
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PKIX public key: %w", err)
		}
		return key, nil
	case "RSA PUBLIC KEY":
		key, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PKCS1 public key: %w", err)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block type %q", block.Type)
	}
}

// EncodePublicKeyPEM renders an RSA public key as a PKIX PEM block.
func EncodePublicKeyPEM(key *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

// ActorFromDocument builds an AuthenticatedActor from an actor document.
// The key is left nil when the actor publishes none, it does not parse, or
// its id names another host than the actor's.
func ActorFromDocument(d Document) (*AuthenticatedActor, error) {
	if d.Kind() != KindActor {
		return nil, fmt.Errorf("document type %q is not an actor", d.Type())
	}
	if d.ID() == "" {
		return nil, fmt.Errorf("actor has no id")
	}
	host, err := guard.ExtractHost(d.ID())
	if err != nil {
		return nil, fmt.Errorf("actor id: %w", err)
	}
	out := &AuthenticatedActor{
		Actor: RemoteActor{
			ID:       d.ID(),
			Host:     host,
			Username: d.Str("preferredUsername"),
			Inbox:    d.Str("inbox"),
		},
	}
	if endpoints, ok := d["endpoints"].(map[string]any); ok {
		out.Actor.SharedInbox, _ = endpoints["sharedInbox"].(string)
	}

	for _, raw := range publicKeys(d["publicKey"]) {
		keyPEM, _ := raw["publicKeyPem"].(string)
		keyID, _ := raw["id"].(string)
		owner, _ := raw["owner"].(string)
		if keyPEM == "" || keyID == "" {
			continue
		}
		if owner != "" && owner != d.ID() {
			continue
		}
		if !sameHost(keyID, host) {
			continue
		}
		key, err := ParsePublicKeyPEM(keyPEM)
		if err != nil {
			continue
		}
		out.PublicKey = &PublicKeyMaterial{KeyID: keyID, Owner: d.ID(), PEM: keyPEM, Key: key}
		break
	}
	return out, nil
}

// PublicKeyByID returns the actor key with the given id, when published on
// the actor's own host.
func (d Document) PublicKeyByID(keyID string) *PublicKeyMaterial {
	host, err := guard.ExtractHost(d.ID())
	if err != nil || !sameHost(keyID, host) {
		return nil
	}
	for _, raw := range publicKeys(d["publicKey"]) {
		id, _ := raw["id"].(string)
		if id != keyID {
			continue
		}
		keyPEM, _ := raw["publicKeyPem"].(string)
		key, err := ParsePublicKeyPEM(keyPEM)
		if err != nil {
			return nil
		}
		return &PublicKeyMaterial{KeyID: id, Owner: d.ID(), PEM: keyPEM, Key: key}
	}
	return nil
}

func publicKeys(v any) []map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return []map[string]any{t}
	case Document:
		return []map[string]any{t}
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, e := range t {
			if m, ok := e.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

// sameHost reports whether uri lives on host. A key published by an actor
// must not claim an id under another host.
func sameHost(uri, host string) bool {
	h, err := guard.ExtractHost(uri)
	return err == nil && h == host
}
