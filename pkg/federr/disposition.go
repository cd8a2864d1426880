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

import "go.uber.org/zap"

// Disposition is what the job queue should do with a failed job.
type Disposition int

const (
	// Done means the job succeeded.
	Done Disposition = iota
	// Retry means reschedule with backoff.
	Retry
	// DeadLetter means never attempt the job again.
	DeadLetter
)

func (d Disposition) String() string {
	switch d {
	case Retry:
		return "retry"
	case DeadLetter:
		return "dead_letter"
	default:
		return "done"
	}
}

// Decide maps a job error to a queue disposition. Unclassified errors are
// retried and logged at error level so the bug gets noticed.
func Decide(err error, logger *zap.Logger) Disposition {
	if err == nil {
		return Done
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	fe, ok := As(err)
	if !ok {
		logger.Error("unclassified error, retrying", zap.Error(err))
		return Retry
	}
	if fe.Retryable {
		logger.Info("retryable failure",
			zap.String("kind", fe.Kind.String()),
			zap.String("reason", string(fe.Reason)),
			zap.Error(err))
		return Retry
	}
	logger.Info("permanent failure",
		zap.String("kind", fe.Kind.String()),
		zap.String("reason", string(fe.Reason)),
		zap.Error(err))
	return DeadLetter
}
