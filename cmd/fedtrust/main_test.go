package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedtrust/fedtrust/pkg/protocol"
	"github.com/fedtrust/fedtrust/pkg/signer"
	"github.com/fedtrust/fedtrust/pkg/version"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestKeygenThenSign(t *testing.T) {
	// Test Case 1: a generated key signs a GET under the given keyId

	// Setup
	t.Setenv("FEDTRUST_HOST", "social.example")
	keyPath := filepath.Join(t.TempDir(), "actor.pem")

	// Execute
	out, err := run(t, "keygen", "--out", keyPath, "--actor", "https://social.example/actor")
	require.NoError(t, err)

	// Assert
	var published map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &published))
	assert.Equal(t, "https://social.example/actor#main-key", published["publicKey"]["id"])
	pub, err := protocol.ParsePublicKeyPEM(published["publicKey"]["publicKeyPem"])
	require.NoError(t, err)

	data, err := os.ReadFile(keyPath)
	require.NoError(t, err)
	key, err := signer.ParsePrivateKey(string(data))
	require.NoError(t, err)
	assert.Equal(t, &key.PublicKey, pub)

	out, err = run(t, "--key", keyPath, "sign", "https://remote.example/users/bob")
	require.NoError(t, err)
	assert.Contains(t, out, "GET https://remote.example/users/bob")
	assert.Contains(t, out, "(request-target): get /users/bob")
	assert.Contains(t, out, `keyId="https://social.example/actor#main-key"`)
	assert.Contains(t, out, "Accept: application/activity+json")
}

func TestSign_Post(t *testing.T) {
	bodyPath := filepath.Join(t.TempDir(), "body.json")
	body := []byte(`{"type":"Follow"}`)
	require.NoError(t, os.WriteFile(bodyPath, body, 0o600))

	out, err := run(t, "sign", "--body", bodyPath, "--key-id", "https://localhost/users/admin#key",
		"-H", "X-Trace: 1", "https://remote.example/inbox")

	require.NoError(t, err)
	assert.Contains(t, out, "POST https://remote.example/inbox")
	assert.Contains(t, out, "Digest: "+signer.Digest(body))
	assert.Contains(t, out, `keyId="https://localhost/users/admin#key"`)
	assert.Contains(t, out, "X-Trace: 1")
}

func TestSign_Errors(t *testing.T) {
	_, err := run(t, "sign", "--deliver", "https://remote.example/inbox")
	assert.EqualError(t, err, "--deliver needs --body")

	_, err = run(t, "sign", "-H", "broken", "https://remote.example/inbox")
	assert.ErrorContains(t, err, "is not name:value")

	_, err = run(t, "--key", filepath.Join(t.TempDir(), "absent.pem"), "sign", "https://remote.example/")
	assert.ErrorContains(t, err, "failed to read key")
}

func TestInvalidConfig(t *testing.T) {
	t.Setenv("FEDTRUST_FEDERATION_MODE", "open")

	_, err := run(t, "sign", "https://remote.example/")

	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "failed to load config"))
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")

	require.NoError(t, err)
	var info version.Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, version.Get(), info)
}
