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

	"github.com/fedtrust/fedtrust/pkg/protocol"
)

// Step is what a strategy tells the pipeline to do next.
type Step int

const (
	// StepOK means the activity is authenticated
	StepOK Step = iota
	// StepRetryWithNewKey asks the pipeline to refetch the signer key once
	// and run the strategy again
	StepRetryWithNewKey
	// StepFail hands over to the next strategy
	StepFail
)

func (s Step) String() string {
	switch s {
	case StepOK:
		return "ok"
	case StepRetryWithNewKey:
		return "retry_with_new_key"
	default:
		return "fail"
	}
}

// Strategy is one way of authenticating an activity. A strategy that
// returns a retryable error aborts the pipeline; a permanent error with
// StepFail is remembered and the next strategy runs.
type Strategy interface {
	Path() Path
	Attempt(ctx context.Context, st *State) (Step, error)
}

// State is the working set shared by the strategies of one verification.
type State struct {
	Activity protocol.Document
	ActorID  string
	Meta     *SignatureMeta
	// Signer is the actor resolved from the HTTP signature keyId. A strategy
	// that authenticates someone else replaces it.
	Signer *protocol.AuthenticatedActor

	refetched bool
}

// Refetched reports whether the one allowed key refetch has happened.
func (s *State) Refetched() bool {
	return s.refetched
}
