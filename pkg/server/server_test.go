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

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fedtrust/fedtrust/pkg/protocol"
	"github.com/fedtrust/fedtrust/pkg/signer"
	"github.com/fedtrust/fedtrust/pkg/signer/signertest"
	"github.com/fedtrust/fedtrust/pkg/verifier"
)

const (
	aliceID  = "https://remote.example/users/alice"
	inboxURL = "https://self.example/inbox"
)

// mockVerifier returns a fixed result or error and records its calls
type mockVerifier struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (m *mockVerifier) Verify(_ context.Context, activity protocol.Document, meta *verifier.SignatureMeta) (*verifier.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	actorID, _ := activity.ActorID()
	return &verifier.Result{
		Activity: activity,
		Actor:    &protocol.AuthenticatedActor{Actor: protocol.RemoteActor{ID: actorID}},
		Outcome:  verifier.OutcomeVerified,
		Path:     verifier.PathHTTPSignature,
	}, nil
}

func (m *mockVerifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func createActivity(id string) protocol.Document {
	return protocol.Document{
		"@context": protocol.ActivityStreamsContext,
		"id":       id,
		"type":     "Create",
		"actor":    aliceID,
		"object": map[string]any{
			"id":      id + "/note",
			"type":    "Note",
			"content": "hello",
		},
	}
}

// signedPost builds an inbox POST for body signed by alice.
func signedPost(t *testing.T, body []byte) *http.Request {
	t.Helper()
	signed, err := signer.NewDefaultRequestSigner().SignPost(signertest.Material(t, aliceID), inboxURL, body, nil, "")
	require.NoError(t, err)
	req, err := signed.HTTPRequest(context.Background())
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/activity+json")
	return req
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
