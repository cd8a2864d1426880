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

// Package signertest provides RSA key fixtures for tests.
package signertest

import (
	"crypto/rsa"
	"sync"
	"testing"

	"github.com/fedtrust/fedtrust/pkg/signer"
)

var (
	mu   sync.Mutex
	keys = map[string]*rsa.PrivateKey{}
)

// Key returns a 2048-bit RSA key shared by every test in the process that
// asks for the same name. Generation happens once per name.
func Key(t testing.TB, name string) *rsa.PrivateKey {
	t.Helper()
	mu.Lock()
	defer mu.Unlock()
	if key, ok := keys[name]; ok {
		return key
	}
	key, err := signer.GenerateKey()
	if err != nil {
		t.Fatalf("generate key %q: %v", name, err)
	}
	keys[name] = key
	return key
}

// Material returns key material for actorID published as actorID#main-key.
func Material(t testing.TB, actorID string) *signer.PrivateKeyMaterial {
	t.Helper()
	return signer.NewPrivateKeyMaterial(actorID+"#main-key", Key(t, actorID))
}
