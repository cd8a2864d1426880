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
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fedtrust/fedtrust/pkg/federr"
	"github.com/fedtrust/fedtrust/pkg/protocol"
	"github.com/fedtrust/fedtrust/pkg/verifier"
)

// ErrQueueFull is returned by Enqueue when the queue cannot take more jobs.
var ErrQueueFull = errors.New("queue is full")

// Job is one inbound activity waiting for verification.
type Job struct {
	ID         string                  `json:"id"`
	Activity   protocol.Document       `json:"activity"`
	Meta       *verifier.SignatureMeta `json:"meta"`
	ReceivedAt time.Time               `json:"receivedAt"`
	Attempt    int                     `json:"attempt"`
}

// Enqueuer accepts jobs. Production deployments put a durable queue here.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *Job) error
}

// ActivityHandler is the business logic that acts on verified activities.
type ActivityHandler interface {
	HandleActivity(ctx context.Context, res *verifier.Result) error
}

// ActivityHandlerFunc adapts a function to ActivityHandler
type ActivityHandlerFunc func(ctx context.Context, res *verifier.Result) error

// HandleActivity implements ActivityHandler.
func (f ActivityHandlerFunc) HandleActivity(ctx context.Context, res *verifier.Result) error {
	return f(ctx, res)
}

// Processor verifies a job and hands it to the business logic. The
// returned disposition is the only place retry policy is decided.
type Processor struct {
	verifier verifier.InboxVerifier
	handler  ActivityHandler
	logger   *zap.Logger
}

// NewProcessor creates a processor
func NewProcessor(v verifier.InboxVerifier, h ActivityHandler, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{verifier: v, handler: h, logger: logger}
}

// Process runs one job.
func (p *Processor) Process(ctx context.Context, job *Job) federr.Disposition {
	logger := p.logger.With(zap.String("job", job.ID), zap.Int("attempt", job.Attempt))

	res, err := p.verifier.Verify(ctx, job.Activity, job.Meta)
	if err != nil {
		return federr.Decide(err, logger)
	}
	return federr.Decide(p.handler.HandleActivity(ctx, res), logger)
}

// MemoryQueue is an in-process Enqueuer with a worker pool, for tests and
// single-node deployments.
type MemoryQueue struct {
	jobs        chan *Job
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger

	// DeadLetters receives jobs that will not be attempted again, when set
	DeadLetters chan<- *Job
}

// NewMemoryQueue creates a queue holding up to size pending jobs.
func NewMemoryQueue(size, maxAttempts int, backoff time.Duration, logger *zap.Logger) *MemoryQueue {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryQueue{
		jobs:        make(chan *Job, size),
		maxAttempts: maxAttempts,
		backoff:     backoff,
		logger:      logger,
	}
}

// Enqueue implements Enqueuer. It never blocks.
func (q *MemoryQueue) Enqueue(_ context.Context, job *Job) error {
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run processes jobs with the given number of workers until ctx is done.
func (q *MemoryQueue) Run(ctx context.Context, workers int, p *Processor) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case job := <-q.jobs:
					q.handle(ctx, p, job)
				}
			}
		})
	}
	return g.Wait()
}

func (q *MemoryQueue) handle(ctx context.Context, p *Processor, job *Job) {
	job.Attempt++
	switch p.Process(ctx, job) {
	case federr.Done:
		return
	case federr.Retry:
		if job.Attempt < q.maxAttempts {
			delay := q.backoff * time.Duration(1<<(job.Attempt-1))
			time.AfterFunc(delay, func() {
				if err := q.Enqueue(ctx, job); err != nil {
					q.logger.Warn("retry dropped", zap.String("job", job.ID), zap.Error(err))
					q.deadLetter(job)
				}
			})
			return
		}
		q.logger.Warn("job exhausted its attempts", zap.String("job", job.ID), zap.Int("attempt", job.Attempt))
	}
	q.deadLetter(job)
}

func (q *MemoryQueue) deadLetter(job *Job) {
	if q.DeadLetters == nil {
		return
	}
	select {
	case q.DeadLetters <- job:
	default:
	}
}
