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

package federr

import (
	"context"
	"errors"
	"fmt"
)

// Kind is the closed set of failure categories produced by the engine.
type Kind int

const (
	// KindInternal covers bugs and anything not otherwise classified.
	KindInternal Kind = iota
	// KindMalformed is a malformed reference or response (fragment URI, missing id, wrong context).
	KindMalformed
	// KindPolicy is a federation policy rejection (blocked host, redirect authority).
	KindPolicy
	// KindExhausted is a resolution guard trip (replay, recursion limit).
	KindExhausted
	// KindTransport is a network or remote-status failure.
	KindTransport
	// KindSignature is a failed or unsupported signature, or a binding mismatch.
	KindSignature
	// KindActorResolution is a failure to resolve the signing actor or its key.
	KindActorResolution
	// KindNotFound is a missing local resource.
	KindNotFound
	// KindConfig is invalid configuration or key material.
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindMalformed:
		return "malformed"
	case KindPolicy:
		return "policy"
	case KindExhausted:
		return "exhausted"
	case KindTransport:
		return "transport"
	case KindSignature:
		return "signature"
	case KindActorResolution:
		return "actor_resolution"
	case KindNotFound:
		return "not_found"
	case KindConfig:
		return "config"
	default:
		return "internal"
	}
}

// Reason is a stable, enumerable rejection code.
type Reason string

const (
	ReasonFragmentURI       Reason = "fragment_uri"
	ReasonInvalidURI        Reason = "invalid_uri"
	ReasonInvalidHost       Reason = "invalid_host"
	ReasonMissingID         Reason = "missing_id"
	ReasonInvalidContext    Reason = "invalid_context"
	ReasonInvalidResponse   Reason = "invalid_response"
	ReasonInvalidType       Reason = "invalid_type"
	ReasonBlockedHost       Reason = "blocked_host"
	ReasonRedirectAuthority Reason = "redirect_authority"
	ReasonHistoryReplay     Reason = "history_replay"
	ReasonRecursionLimit    Reason = "recursion_limit"
	ReasonFetchFailed       Reason = "fetch_failed"
	ReasonGone              Reason = "gone"
	ReasonNotFound          Reason = "not_found"
	ReasonSignatureInvalid  Reason = "signature_invalid"
	ReasonSignatureMissing  Reason = "signature_missing"
	ReasonUnsupportedSuite  Reason = "unsupported_suite"
	ReasonActorMismatch     Reason = "actor_mismatch"
	ReasonAuthorityMismatch Reason = "authority_mismatch"
	ReasonMissingActor      Reason = "missing_actor"
	ReasonNoPublicKey       Reason = "no_public_key"
	ReasonActorUnresolved   Reason = "actor_unresolved"
	ReasonActorGone         Reason = "actor_gone"
	ReasonNormalization     Reason = "normalization_failed"
	ReasonInvalidKey        Reason = "invalid_key"
	ReasonInternal          Reason = "internal"
)

// Error is the single error type crossing the engine boundary. Retryable is
// the only field the queue layer needs to look at.
type Error struct {
	Kind      Kind
	Reason    Reason
	Retryable bool
	Detail    string
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same kind and reason, so sentinel
// comparisons like errors.Is(err, &Error{Kind: KindPolicy, Reason: ReasonBlockedHost}) work.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Reason == t.Reason
}

// Permanent builds a non-retryable error.
func Permanent(kind Kind, reason Reason, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Retryable builds an error the queue layer should reschedule.
func Retryable(kind Kind, reason Reason, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: reason, Retryable: true, Detail: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a classified error and returns it.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// KindOf returns the kind of err, KindInternal when err is unclassified.
func KindOf(err error) Kind {
	if fe, ok := As(err); ok {
		return fe.Kind
	}
	return KindInternal
}

// ReasonOf returns the reason code of err, ReasonInternal when err is unclassified.
func ReasonOf(err error) Reason {
	if fe, ok := As(err); ok {
		return fe.Reason
	}
	return ReasonInternal
}

// IsRetryable reports whether err should be retried. Unclassified errors are
// retryable: dropping data because of a misclassified bug is worse than a retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if fe, ok := As(err); ok {
		return fe.Retryable
	}
	return true
}

// IsClassified reports whether err carries an *Error.
func IsClassified(err error) bool {
	_, ok := As(err)
	return ok
}

// IsGone reports whether the remote affirmatively said the resource does not exist.
func IsGone(err error) bool {
	fe, ok := As(err)
	return ok && (fe.Reason == ReasonGone || fe.Reason == ReasonActorGone || fe.Reason == ReasonNotFound)
}

// FromContext converts a context error into a retryable transport error.
// Other errors are returned unchanged.
func FromContext(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Retryable(KindTransport, ReasonFetchFailed, "context done").Wrap(err)
	}
	return err
}
