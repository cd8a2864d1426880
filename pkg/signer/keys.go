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

package signer

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"sync"

	"github.com/fedtrust/fedtrust/pkg/federr"
)

// KeySize is the RSA modulus size for generated keys
const KeySize = 2048

// ErrKeyNotFound is returned by a KeyStore with no key for the actor
var ErrKeyNotFound = errors.New("key not found")

// PrivateKeyMaterial is a signing key and the keyId it is published under.
type PrivateKeyMaterial struct {
	// KeyID is the public key URI, normally "{actor}#main-key"
	KeyID string

	// PrivateKeyPEM is a PKCS#1 or PKCS#8 RSA private key
	PrivateKeyPEM string

	once   sync.Once
	parsed *rsa.PrivateKey
	err    error
}

// NewPrivateKeyMaterial wraps an already parsed key.
func NewPrivateKeyMaterial(keyID string, key *rsa.PrivateKey) *PrivateKeyMaterial {
	m := &PrivateKeyMaterial{KeyID: keyID, PrivateKeyPEM: EncodePrivateKeyPEM(key), parsed: key}
	m.once.Do(func() {})
	return m
}

// RSA parses the PEM once and returns the key.
func (m *PrivateKeyMaterial) RSA() (*rsa.PrivateKey, error) {
	m.once.Do(func() {
		if m.parsed == nil {
			m.parsed, m.err = ParsePrivateKey(m.PrivateKeyPEM)
		}
	})
	return m.parsed, m.err
}

// Public returns the public half of the key.
func (m *PrivateKeyMaterial) Public() (*rsa.PublicKey, error) {
	key, err := m.RSA()
	if err != nil {
		return nil, err
	}
	return &key.PublicKey, nil
}

// ParsePrivateKey decodes a PKCS#1 or PKCS#8 RSA private key.
func ParsePrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, federr.Permanent(federr.KindConfig, federr.ReasonInvalidKey, "no PEM block found")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, federr.Permanent(federr.KindConfig, federr.ReasonInvalidKey, "failed to parse private key").Wrap(err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, federr.Permanent(federr.KindConfig, federr.ReasonInvalidKey, "private key is %T, not RSA", parsed)
	}
	return key, nil
}

// MustParsePrivateKey is ParsePrivateKey for static test fixtures.
func MustParsePrivateKey(pemData string) *rsa.PrivateKey {
	key, err := ParsePrivateKey(pemData)
	if err != nil {
		panic(err)
	}
	return key
}

// EncodePrivateKeyPEM encodes key as PKCS#8 PEM.
func EncodePrivateKeyPEM(key *rsa.PrivateKey) string {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		// rsa keys always marshal
		panic(err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
}

// GenerateKey creates a new RSA key of KeySize bits.
func GenerateKey() (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, KeySize)
	if err != nil {
		return nil, federr.Retryable(federr.KindInternal, federr.ReasonInternal, "key generation failed").Wrap(err)
	}
	return key, nil
}

// KeyStore persists actor signing keys.
type KeyStore interface {
	// GetPrivateKey returns ErrKeyNotFound when the actor has no key.
	GetPrivateKey(ctx context.Context, actorID string) (*PrivateKeyMaterial, error)

	// SavePrivateKey stores a key for the actor.
	SavePrivateKey(ctx context.Context, actorID string, key *PrivateKeyMaterial) error
}

// MemoryKeyStore is an in-process KeyStore.
type MemoryKeyStore struct {
	mu   sync.RWMutex
	keys map[string]*PrivateKeyMaterial
}

// NewMemoryKeyStore creates an empty store.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{keys: make(map[string]*PrivateKeyMaterial)}
}

func (s *MemoryKeyStore) GetPrivateKey(_ context.Context, actorID string) (*PrivateKeyMaterial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[actorID]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return key, nil
}

func (s *MemoryKeyStore) SavePrivateKey(_ context.Context, actorID string, key *PrivateKeyMaterial) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[actorID] = key
	return nil
}

// InstanceActor is the server-wide actor used to sign fetches that are not
// made on behalf of a user. Its key is created on first use.
type InstanceActor struct {
	id    string
	store KeyStore

	mu  sync.Mutex
	key *PrivateKeyMaterial
}

// NewInstanceActor creates an instance actor for the actor URI id.
func NewInstanceActor(id string, store KeyStore) *InstanceActor {
	return &InstanceActor{id: id, store: store}
}

// ID returns the actor URI.
func (a *InstanceActor) ID() string {
	return a.id
}

// KeyID returns the URI the public key is published under.
func (a *InstanceActor) KeyID() string {
	return a.id + "#main-key"
}

// Key loads the signing key, generating and saving one if none exists.
func (a *InstanceActor) Key(ctx context.Context) (*PrivateKeyMaterial, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.key != nil {
		return a.key, nil
	}

	key, err := a.store.GetPrivateKey(ctx, a.id)
	if err == nil {
		a.key = key
		return key, nil
	}
	if !errors.Is(err, ErrKeyNotFound) {
		return nil, err
	}

	generated, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	key = NewPrivateKeyMaterial(a.KeyID(), generated)
	if err := a.store.SavePrivateKey(ctx, a.id, key); err != nil {
		return nil, err
	}
	a.key = key
	return key, nil
}
