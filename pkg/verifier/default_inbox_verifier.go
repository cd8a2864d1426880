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
	"github.com/fedtrust/fedtrust/pkg/metrics"
	"github.com/fedtrust/fedtrust/pkg/protocol"
)

// DefaultInboxVerifier runs the strategy pipeline: HTTP signature first,
// then the LD signature. It holds no per-call state and is safe for
// concurrent use.
type DefaultInboxVerifier struct {
	guard      guard.Guard
	keys       KeyResolver
	strategies []Strategy
	logger     *zap.Logger
	metrics    *metrics.Collectors
}

// Option configures a DefaultInboxVerifier
type Option func(*DefaultInboxVerifier)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(v *DefaultInboxVerifier) { v.logger = l }
}

// WithMetrics records verification outcomes
func WithMetrics(m *metrics.Collectors) Option {
	return func(v *DefaultInboxVerifier) { v.metrics = m }
}

// WithStrategies replaces the default pipeline
func WithStrategies(s ...Strategy) Option {
	return func(v *DefaultInboxVerifier) { v.strategies = s }
}

// NewDefaultInboxVerifier creates a verifier. processor may be nil to
// disable the LD-signature fallback.
func NewDefaultInboxVerifier(g guard.Guard, store ActorStore, processor *ldsig.Processor, opts ...Option) *DefaultInboxVerifier {
	v := &DefaultInboxVerifier{
		guard:  g,
		keys:   NewDefaultKeyResolver(store),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.strategies == nil {
		v.strategies = []Strategy{HTTPSignatureStrategy{}}
		if processor != nil {
			v.strategies = append(v.strategies, NewLDSignatureStrategy(processor, v.keys, g, v.logger))
		}
	}
	return v
}

// Verify implements InboxVerifier.
func (v *DefaultInboxVerifier) Verify(ctx context.Context, activity protocol.Document, meta *SignatureMeta) (*Result, error) {
	res, err := v.verify(ctx, activity, meta)
	if err != nil {
		v.metrics.ObserveVerify(OutcomeRejected.String(), string(federr.ReasonOf(err)))
		v.logger.Info("activity rejected",
			zap.String("uri", activity.ID()),
			zap.String("reason", string(federr.ReasonOf(err))),
			zap.Bool("retryable", federr.IsRetryable(err)),
			zap.Error(err))
		return nil, err
	}
	v.metrics.ObserveVerify(res.Outcome.String(), "ok")
	v.logger.Debug("activity verified",
		zap.String("uri", res.Activity.ID()),
		zap.String("actor", res.Actor.Actor.ID),
		zap.String("path", string(res.Path)))
	return res, nil
}

func (v *DefaultInboxVerifier) verify(ctx context.Context, activity protocol.Document, meta *SignatureMeta) (*Result, error) {
	if meta == nil || meta.KeyID == "" {
		return nil, federr.Permanent(federr.KindSignature, federr.ReasonSignatureMissing, "request is not signed")
	}

	host, err := guard.ExtractHost(meta.KeyID)
	if err != nil {
		return nil, err
	}
	if !v.guard.IsHostAllowed(host) {
		return nil, federr.Permanent(federr.KindPolicy, federr.ReasonBlockedHost, "signer host %s is blocked", host)
	}

	actorID, err := activity.ActorID()
	if err != nil {
		return nil, federr.Permanent(federr.KindMalformed, federr.ReasonMissingActor, "activity has no actor").Wrap(err)
	}

	signerActor, err := v.keys.ResolveSigner(ctx, meta.KeyID, actorID)
	if err != nil {
		return nil, err
	}
	if signerActor.PublicKey == nil || signerActor.PublicKey.Key == nil {
		return nil, federr.Permanent(federr.KindActorResolution, federr.ReasonNoPublicKey, "actor %s has no public key", signerActor.Actor.ID)
	}

	st := &State{
		Activity: activity.Clone(),
		ActorID:  actorID,
		Meta:     meta,
		Signer:   signerActor,
	}
	path, err := v.run(ctx, st)
	if err != nil {
		return nil, err
	}

	if err := bindAuthority(st); err != nil {
		return nil, err
	}

	outcome := OutcomeVerified
	if path == PathLDSignature {
		outcome = OutcomeVerifiedNormalized
	}
	return &Result{Activity: st.Activity, Actor: st.Signer, Outcome: outcome, Path: path}, nil
}

// run tries each strategy in order. The first permanent failure is the one
// reported unless a later strategy gets further than "no signature".
func (v *DefaultInboxVerifier) run(ctx context.Context, st *State) (Path, error) {
	var failure error
	for _, s := range v.strategies {
		step, err := v.attempt(ctx, s, st)
		if step == StepOK {
			return s.Path(), nil
		}
		if err != nil && federr.IsRetryable(err) {
			return "", err
		}
		if failure == nil || federr.ReasonOf(err) != federr.ReasonSignatureMissing {
			failure = err
		}
		v.logger.Debug("signature strategy failed",
			zap.String("path", string(s.Path())),
			zap.String("key_id", st.Meta.KeyID),
			zap.Error(err))
	}
	if failure == nil {
		failure = federr.Permanent(federr.KindSignature, federr.ReasonSignatureInvalid, "no signature strategy configured")
	}
	return "", failure
}

// attempt runs one strategy, refetching the signer key at most once per
// verification when the strategy asks for it.
func (v *DefaultInboxVerifier) attempt(ctx context.Context, s Strategy, st *State) (Step, error) {
	step, err := s.Attempt(ctx, st)
	if step != StepRetryWithNewKey {
		return step, err
	}
	if st.refetched {
		return StepFail, federr.Permanent(federr.KindSignature, federr.ReasonSignatureInvalid, "signature does not verify after key refetch")
	}
	st.refetched = true
	v.metrics.KeyRefetched()

	key, err := v.keys.Refetch(ctx, st.Signer)
	if err != nil {
		if federr.IsRetryable(err) {
			return StepFail, err
		}
		return StepFail, federr.Permanent(federr.KindSignature, federr.ReasonSignatureInvalid, "signature does not verify and key refetch failed").Wrap(err)
	}
	if key == nil || key.Key == nil {
		return StepFail, federr.Permanent(federr.KindSignature, federr.ReasonSignatureInvalid, "signature does not verify and actor has no key")
	}
	v.logger.Info("signer key refetched",
		zap.String("actor", st.Signer.Actor.ID),
		zap.String("key_id", key.KeyID))

	signerActor := *st.Signer
	signerActor.PublicKey = key
	st.Signer = &signerActor

	step, err = s.Attempt(ctx, st)
	if step == StepRetryWithNewKey {
		return StepFail, federr.Permanent(federr.KindSignature, federr.ReasonSignatureInvalid, "signature does not verify after key refetch")
	}
	return step, err
}

// bindAuthority requires a string id to live on the signer's host and strips
// an id of any other shape.
func bindAuthority(st *State) error {
	raw, ok := st.Activity["id"]
	if !ok {
		return nil
	}
	id, isString := raw.(string)
	if !isString || id == "" {
		delete(st.Activity, "id")
		return nil
	}

	idHost, err := guard.ExtractHost(id)
	if err != nil {
		return err
	}
	signerHost, err := guard.ExtractHost(st.Signer.Actor.ID)
	if err != nil {
		return err
	}
	if idHost != signerHost {
		return federr.Permanent(federr.KindSignature, federr.ReasonAuthorityMismatch,
			"activity id host %s does not match signer host %s", idHost, signerHost)
	}
	return nil
}
