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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPermanentAndRetryable(t *testing.T) {
	p := Permanent(KindPolicy, ReasonBlockedHost, "host %s", "evil.example")
	r := Retryable(KindTransport, ReasonFetchFailed, "timeout")

	assert.False(t, p.Retryable)
	assert.True(t, r.Retryable)
	assert.Equal(t, "policy: blocked_host: host evil.example", p.Error())
}

func TestWrapPreservesChain(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("resolve: %w", Retryable(KindTransport, ReasonFetchFailed, "GET").Wrap(cause))

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, &Error{Kind: KindTransport, Reason: ReasonFetchFailed})
	assert.Equal(t, KindTransport, KindOf(err))
	assert.Equal(t, ReasonFetchFailed, ReasonOf(err))
	assert.True(t, IsRetryable(err))
}

func TestUnclassifiedIsRetryable(t *testing.T) {
	err := errors.New("boom")

	assert.True(t, IsRetryable(err))
	assert.False(t, IsClassified(err))
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, ReasonInternal, ReasonOf(err))
	assert.False(t, IsRetryable(nil))
}

func TestIsGone(t *testing.T) {
	assert.True(t, IsGone(Permanent(KindTransport, ReasonGone, "410")))
	assert.True(t, IsGone(Permanent(KindActorResolution, ReasonActorGone, "")))
	assert.False(t, IsGone(Retryable(KindTransport, ReasonFetchFailed, "")))
	assert.False(t, IsGone(errors.New("x")))
}

func TestFromContext(t *testing.T) {
	err := FromContext(context.DeadlineExceeded)

	fe, ok := As(err)
	require.True(t, ok)
	assert.True(t, fe.Retryable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other := errors.New("other")
	assert.Same(t, other, FromContext(other))
}

func TestDecide(t *testing.T) {
	logger := zap.NewNop()

	assert.Equal(t, Done, Decide(nil, logger))
	assert.Equal(t, Retry, Decide(errors.New("bug"), logger))
	assert.Equal(t, Retry, Decide(Retryable(KindActorResolution, ReasonActorUnresolved, ""), nil))
	assert.Equal(t, DeadLetter, Decide(Permanent(KindSignature, ReasonSignatureInvalid, ""), logger))
	assert.Equal(t, "dead_letter", DeadLetter.String())
}
