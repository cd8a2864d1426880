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

	"go.uber.org/zap"

	"github.com/fedtrust/fedtrust/pkg/federr"
	"github.com/fedtrust/fedtrust/pkg/guard"
	"github.com/fedtrust/fedtrust/pkg/ldsig"
)

// LDSignatureStrategy verifies an embedded RsaSignature2017 and replaces the
// working activity with its compacted form.
type LDSignatureStrategy struct {
	processor *ldsig.Processor
	keys      KeyResolver
	guard     guard.Guard
	logger    *zap.Logger
}

// NewLDSignatureStrategy creates the LD-signature fallback.
func NewLDSignatureStrategy(p *ldsig.Processor, keys KeyResolver, g guard.Guard, logger *zap.Logger) *LDSignatureStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LDSignatureStrategy{processor: p, keys: keys, guard: g, logger: logger}
}

// Path implements Strategy.
func (s *LDSignatureStrategy) Path() Path { return PathLDSignature }

// Attempt implements Strategy.
func (s *LDSignatureStrategy) Attempt(ctx context.Context, st *State) (Step, error) {
	sig := st.Activity.LDSignature()
	if sig == nil {
		return StepFail, federr.Permanent(federr.KindSignature, federr.ReasonSignatureMissing, "no LD signature to fall back to")
	}
	if sig.Type != ldsig.SuiteRsaSignature2017 {
		return StepFail, federr.Permanent(federr.KindSignature, federr.ReasonUnsupportedSuite, "unsupported signature suite %q", sig.Type)
	}

	// the creator host is gated before anything is fetched from it
	host, err := guard.ExtractHost(sig.Creator)
	if err != nil {
		return StepFail, err
	}
	if !s.guard.IsHostAllowed(host) {
		return StepFail, federr.Permanent(federr.KindPolicy, federr.ReasonBlockedHost, "LD signature creator host %s is blocked", host)
	}

	creator, err := s.keys.ResolveSigner(ctx, sig.Creator, KeyOwner(sig.Creator))
	if err != nil {
		return StepFail, err
	}
	if creator.PublicKey == nil {
		return StepFail, federr.Permanent(federr.KindActorResolution, federr.ReasonNoPublicKey, "creator %s has no public key", sig.Creator)
	}

	if err := s.processor.Verify(st.Activity, creator.PublicKey.Key); err != nil {
		return StepFail, err
	}

	generic, err := st.Activity.Generic()
	if err != nil {
		return StepFail, federr.Permanent(federr.KindMalformed, federr.ReasonInvalidResponse, "activity is not JSON").Wrap(err)
	}
	// the signature covers the uncompacted form only
	delete(generic, "signature")
	compacted, err := s.processor.Compact(generic, nil)
	if err != nil {
		return StepFail, err
	}

	actorID, err := compacted.ActorID()
	if err != nil {
		return StepFail, federr.Permanent(federr.KindMalformed, federr.ReasonMissingActor, "compacted activity has no actor").Wrap(err)
	}
	if creator.Actor.ID != actorID {
		return StepFail, federr.Permanent(federr.KindSignature, federr.ReasonActorMismatch,
			"LD signed by %s on behalf of %s", creator.Actor.ID, actorID)
	}

	s.logger.Debug("LD signature verified",
		zap.String("key_id", sig.Creator),
		zap.String("uri", compacted.ID()))

	st.Activity = compacted
	st.ActorID = actorID
	st.Signer = creator
	return StepOK, nil
}
