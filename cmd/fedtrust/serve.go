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

package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fedtrust/fedtrust/pkg/server"
	"github.com/fedtrust/fedtrust/pkg/verifier"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run a verifying shared inbox",
		Long: `Serve accepts signed deliveries on /inbox, verifies them on a worker pool and
logs every verified activity. Metrics are served on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			a, err := newApp(cmd.Context(), cfg, logger, keyFile)
			if err != nil {
				return err
			}
			return a.serve(cmd.Context())
		},
	}
}

// serve runs the inbox until ctx is done.
func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg.Inbox
	logger := a.logger.Named("inbox")

	dead := make(chan *server.Job, cfg.QueueSize)
	queue := server.NewMemoryQueue(cfg.QueueSize, cfg.MaxAttempts, cfg.RetryBackoff, logger)
	queue.DeadLetters = dead

	handler := server.ActivityHandlerFunc(func(_ context.Context, res *verifier.Result) error {
		logger.Info("activity verified",
			zap.String("uri", res.Activity.ID()),
			zap.String("type", res.Activity.Type()),
			zap.String("actor", res.Actor.Actor.ID),
			zap.String("path", string(res.Path)),
			zap.String("outcome", res.Outcome.String()))
		return nil
	})

	inbox := server.NewInboxHandler(queue,
		server.WithMaxBodyBytes(cfg.MaxBodyBytes),
		server.WithMaxClockSkew(cfg.MaxClockSkew),
		server.WithLogger(logger),
		server.WithMetrics(a.metrics))

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.NewMux(inbox, a.metrics),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return queue.Run(ctx, cfg.Workers, server.NewProcessor(a.verifier, handler, logger))
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case job := <-dead:
				logger.Warn("activity dead-lettered",
					zap.String("job", job.ID),
					zap.String("uri", job.Activity.ID()),
					zap.String("key_id", job.Meta.KeyID),
					zap.Int("attempt", job.Attempt))
			}
		}
	})
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("host", a.cfg.Host))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
