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
	"net/http"
	"strings"

	"github.com/go-fed/httpsig"

	"github.com/fedtrust/fedtrust/pkg/federr"
	"github.com/fedtrust/fedtrust/pkg/signer"
)

// HTTPSignatureStrategy verifies the cavage HTTP signature of the captured
// request against the signer resolved from its keyId.
type HTTPSignatureStrategy struct{}

// Path implements Strategy.
func (HTTPSignatureStrategy) Path() Path { return PathHTTPSignature }

// Attempt implements Strategy. A cryptographic failure asks for one key
// refetch; a binding failure does not, since a new key cannot fix it.
func (HTTPSignatureStrategy) Attempt(ctx context.Context, st *State) (Step, error) {
	meta := st.Meta
	if !meta.Covers(signer.RequestTarget) {
		return StepFail, federr.Permanent(federr.KindSignature, federr.ReasonSignatureInvalid, "signature does not cover %s", signer.RequestTarget)
	}
	if err := checkDigest(meta); err != nil {
		return StepFail, err
	}

	algo, err := algorithmOf(meta.Algorithm)
	if err != nil {
		return StepFail, err
	}

	req, err := meta.Request(ctx)
	if err != nil {
		return StepFail, err
	}
	v, err := httpsig.NewVerifier(req)
	if err != nil {
		return StepFail, federr.Permanent(federr.KindSignature, federr.ReasonSignatureMissing, "no parsable signature").Wrap(err)
	}

	if err := v.Verify(st.Signer.PublicKey.Key, algo); err != nil {
		if !st.Refetched() {
			return StepRetryWithNewKey, nil
		}
		return StepFail, federr.Permanent(federr.KindSignature, federr.ReasonSignatureInvalid, "HTTP signature does not verify").Wrap(err)
	}

	if st.Signer.Actor.ID != st.ActorID {
		return StepFail, federr.Permanent(federr.KindSignature, federr.ReasonActorMismatch,
			"signed by %s on behalf of %s", st.Signer.Actor.ID, st.ActorID)
	}
	return StepOK, nil
}

// checkDigest binds a POST body to the signature. A body that no longer
// matches its signed Digest is indistinguishable from a forged one.
func checkDigest(meta *SignatureMeta) error {
	if meta.Method != http.MethodPost {
		return nil
	}
	if !meta.Covers("digest") {
		return federr.Permanent(federr.KindSignature, federr.ReasonSignatureInvalid, "POST signature does not cover digest")
	}
	if meta.Body == nil {
		return nil
	}
	want := signer.Digest(meta.Body)
	for _, d := range strings.Split(meta.Header.Get("Digest"), ",") {
		if strings.TrimSpace(d) == want {
			return nil
		}
	}
	return federr.Permanent(federr.KindSignature, federr.ReasonSignatureInvalid, "digest does not match body")
}

func algorithmOf(name string) (httpsig.Algorithm, error) {
	switch strings.ToLower(name) {
	// hs2019 leaves the algorithm to the key, and keys are RSA here
	case "", signer.Algorithm, "hs2019":
		return httpsig.RSA_SHA256, nil
	default:
		return "", federr.Permanent(federr.KindSignature, federr.ReasonUnsupportedSuite, "unsupported algorithm %q", name)
	}
}
