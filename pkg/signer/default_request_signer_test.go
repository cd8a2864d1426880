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
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-fed/httpsig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedtrust/fedtrust/pkg/federr"
	"github.com/fedtrust/fedtrust/pkg/protocol"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func testMaterial(t *testing.T) *PrivateKeyMaterial {
	t.Helper()
	testKeyOnce.Do(func() {
		var err error
		testKey, err = GenerateKey()
		require.NoError(t, err)
	})
	return NewPrivateKeyMaterial("https://self.example/users/alice#main-key", testKey)
}

func fixedClock() time.Time {
	return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
}

var signatureRe = regexp.MustCompile(`^keyId="([^"]+)",algorithm="rsa-sha256",headers="([^"]+)",signature="([^"]+)"$`)

func TestDefaultRequestSigner_SignGet(t *testing.T) {
	// Test Case 1: GET signing string has the fixed header order

	// Setup
	key := testMaterial(t)
	s := NewDefaultRequestSigner(WithClock(fixedClock))

	// Execute
	req, err := s.SignGet(key, "https://remote.example/notes/1?page=true", nil)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "GET", req.Method)
	assert.Nil(t, req.Body)
	assert.Equal(t, strings.Join([]string{
		"(request-target): get /notes/1?page=true",
		"date: Fri, 02 Jan 2026 03:04:05 GMT",
		"host: remote.example",
		"accept: " + protocol.AcceptHeader,
	}, "\n"), req.SigningString)

	m := signatureRe.FindStringSubmatch(req.SignatureHeaderValue)
	require.NotNil(t, m, req.SignatureHeaderValue)
	assert.Equal(t, key.KeyID, m[1])
	assert.Equal(t, "(request-target) date host accept", m[2])

	sig, err := base64.StdEncoding.DecodeString(m[3])
	require.NoError(t, err)
	hashed := sha256.Sum256([]byte(req.SigningString))
	pub, err := key.Public()
	require.NoError(t, err)
	assert.NoError(t, rsa.VerifyPKCS1v15(pub, crypto.SHA256, hashed[:], sig))
}

func TestDefaultRequestSigner_SignPost(t *testing.T) {
	// Test Case 2: POST signs the body digest

	// Setup
	key := testMaterial(t)
	s := NewDefaultRequestSigner(WithClock(fixedClock))
	body := []byte(`{"type":"Create"}`)

	// Execute
	req, err := s.SignPost(key, "https://remote.example/inbox", body, nil, "")

	// Assert
	require.NoError(t, err)
	headers := req.Headers()
	sum := sha256.Sum256(body)
	assert.Equal(t, "SHA-256="+base64.StdEncoding.EncodeToString(sum[:]), headers["digest"])
	assert.Equal(t, ContentTypeActivity, headers["content-type"])
	assert.Equal(t, body, req.Body)
	assert.Contains(t, req.SigningString, "(request-target): post /inbox\n")
	assert.True(t, strings.HasSuffix(req.SigningString, "digest: "+headers["digest"]))
	assert.Contains(t, req.SignatureHeaderValue, `headers="(request-target) date host digest"`)
}

func TestDefaultRequestSigner_HostNotTransmitted(t *testing.T) {
	// Test Case 3: host is signed but stripped from the header set

	// Setup
	s := NewDefaultRequestSigner()

	// Execute
	req, err := s.SignGet(testMaterial(t), "https://remote.example:8443/x", map[string]string{"Host": "spoofed.example"})

	// Assert
	require.NoError(t, err)
	_, ok := req.Headers()["host"]
	assert.False(t, ok)
	assert.Empty(t, req.Header().Get("Host"))
	assert.Contains(t, req.SigningString, "host: remote.example:8443")
}

func TestDefaultRequestSigner_ExtraHeaders(t *testing.T) {
	// Test Case 4: extra headers are lower-cased and may override accept

	// Setup
	s := NewDefaultRequestSigner()

	// Execute
	req, err := s.SignGet(testMaterial(t), "https://remote.example/x", map[string]string{
		"Accept":     "application/activity+json",
		"User-Agent": "fedtrust/test",
	})

	// Assert
	require.NoError(t, err)
	headers := req.Headers()
	assert.Equal(t, "application/activity+json", headers["accept"])
	assert.Equal(t, "fedtrust/test", headers["user-agent"])
	assert.Contains(t, req.SigningString, "accept: application/activity+json")
	assert.Equal(t, "fedtrust/test", req.Header().Get("User-Agent"))
}

func TestDefaultRequestSigner_ExplicitDigest(t *testing.T) {
	// Test Case 5: caller-supplied digest is used as is

	// Setup
	s := NewDefaultRequestSigner()

	// Execute
	req, err := s.SignPost(testMaterial(t), "https://remote.example/inbox", []byte("{}"), nil, "SHA-256=precomputed")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "SHA-256=precomputed", req.Headers()["digest"])
}

func TestDefaultRequestSigner_Errors(t *testing.T) {
	s := NewDefaultRequestSigner()

	t.Run("nil key", func(t *testing.T) {
		_, err := s.SignGet(nil, "https://remote.example/x", nil)
		assert.Equal(t, federr.KindConfig, federr.KindOf(err))
	})

	t.Run("bad pem", func(t *testing.T) {
		_, err := s.SignGet(&PrivateKeyMaterial{KeyID: "k", PrivateKeyPEM: "garbage"}, "https://remote.example/x", nil)
		assert.Equal(t, federr.ReasonInvalidKey, federr.ReasonOf(err))
	})

	t.Run("relative url", func(t *testing.T) {
		_, err := s.SignGet(testMaterial(t), "/notes/1", nil)
		assert.Equal(t, federr.ReasonInvalidURI, federr.ReasonOf(err))
	})
}

func TestDefaultRequestSigner_VerifiesWithGoFed(t *testing.T) {
	// Test Case 6: an independent implementation accepts our signatures

	// Setup
	key := testMaterial(t)
	s := NewDefaultRequestSigner()
	pub, err := key.Public()
	require.NoError(t, err)

	for _, build := range []func() (*SignedRequest, error){
		func() (*SignedRequest, error) { return s.SignGet(key, "https://remote.example/users/bob?x=1", nil) },
		func() (*SignedRequest, error) {
			return s.SignPost(key, "https://remote.example/inbox", []byte(`{"a":1}`), nil, "")
		},
	} {
		signed, err := build()
		require.NoError(t, err)

		// Execute
		req, err := signed.HTTPRequest(context.Background())
		require.NoError(t, err)
		v, err := httpsig.NewVerifier(req)
		require.NoError(t, err)

		// Assert
		assert.Equal(t, key.KeyID, v.KeyId())
		assert.NoError(t, v.Verify(pub, httpsig.RSA_SHA256))
	}
}

func TestPrivateKeyMaterial_PEMRoundTrip(t *testing.T) {
	key := testMaterial(t)

	parsed, err := ParsePrivateKey(key.PrivateKeyPEM)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(testKey))

	assert.Panics(t, func() { MustParsePrivateKey("nope") })
}

func TestInstanceActor_Key(t *testing.T) {
	// Test Case 7: key is created once and persisted

	// Setup
	ctx := context.Background()
	store := NewMemoryKeyStore()
	existing := testMaterial(t)
	require.NoError(t, store.SavePrivateKey(ctx, "https://self.example/actor", existing))
	actor := NewInstanceActor("https://self.example/actor", store)

	// Execute
	first, err := actor.Key(ctx)
	require.NoError(t, err)
	second, err := actor.Key(ctx)
	require.NoError(t, err)

	// Assert
	assert.Same(t, existing, first)
	assert.Same(t, first, second)
	assert.Equal(t, "https://self.example/actor#main-key", actor.KeyID())

	_, err = store.GetPrivateKey(ctx, "https://self.example/other")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}
