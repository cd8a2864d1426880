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
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/fedtrust/fedtrust/pkg/actorcache"
	"github.com/fedtrust/fedtrust/pkg/client"
	"github.com/fedtrust/fedtrust/pkg/config"
	"github.com/fedtrust/fedtrust/pkg/guard"
	"github.com/fedtrust/fedtrust/pkg/ldsig"
	"github.com/fedtrust/fedtrust/pkg/metrics"
	"github.com/fedtrust/fedtrust/pkg/resolver"
	"github.com/fedtrust/fedtrust/pkg/signer"
	"github.com/fedtrust/fedtrust/pkg/transport"
	"github.com/fedtrust/fedtrust/pkg/verifier"
	"github.com/fedtrust/fedtrust/pkg/version"
)

// app holds the components built from one configuration.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Collectors

	guard     *guard.DefaultGuard
	fetcher   *transport.HTTPFetcher
	client    *client.Client
	instance  *signer.InstanceActor
	engine    *resolver.Engine
	processor *ldsig.Processor
	actors    *actorcache.Cache
	verifier  *verifier.DefaultInboxVerifier
}

// newApp wires the engine. keyFile, when set, is the instance actor's
// private key; otherwise one is generated in memory on first use.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, keyFile string) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(prometheus.NewRegistry()),
	}

	a.guard = guard.NewDefaultGuard(cfg.GuardOptions())

	fetchOpts := []transport.FetcherOption{
		transport.WithTimeout(cfg.Fetch.Timeout),
		transport.WithMaxRedirects(cfg.Fetch.MaxRedirects),
		transport.WithMaxBodyBytes(cfg.Fetch.MaxBodyBytes),
		transport.WithAllowPrivateNetworks(cfg.Fetch.AllowPrivateNetworks),
		transport.WithUserAgent(version.UserAgent(cfg.Host)),
		transport.WithLogger(logger.Named("fetch")),
		transport.WithMetrics(a.metrics),
	}
	if cfg.Fetch.RatePerHost > 0 {
		fetchOpts = append(fetchOpts, transport.WithHostLimiter(
			transport.NewHostLimiter(cfg.Fetch.RatePerHost, cfg.Fetch.Burst, 0)))
	}
	a.fetcher = transport.NewHTTPFetcher(fetchOpts...)
	a.client = client.New(a.fetcher,
		client.WithSigner(signer.NewDefaultRequestSigner()),
		client.WithLogger(logger.Named("client")))

	store := signer.NewMemoryKeyStore()
	a.instance = signer.NewInstanceActor(cfg.InstanceActorID(), store)
	if keyFile != "" {
		key, err := loadKey(keyFile, a.instance.KeyID())
		if err != nil {
			return nil, err
		}
		if err := store.SavePrivateKey(ctx, a.instance.ID(), key); err != nil {
			return nil, err
		}
	}

	engineOpts := []resolver.Option{
		resolver.WithRecursionLimit(cfg.Resolver.RecursionLimit),
		resolver.WithLogger(logger.Named("resolver")),
		resolver.WithMetrics(a.metrics),
	}
	if cfg.SignedFetch {
		engineOpts = append(engineOpts, resolver.WithSignedFetch(a.instance))
	}
	a.engine = resolver.NewEngine(a.client, a.guard, engineOpts...)

	loader, err := ldsig.NewContextLoader(a.fetcher, ldsig.WithLoaderLogger(logger.Named("ldsig")))
	if err != nil {
		return nil, err
	}
	a.processor = ldsig.NewProcessor(loader)

	a.actors = actorcache.New(a.engine,
		actorcache.WithSize(cfg.Keys.CacheSize),
		actorcache.WithTTL(cfg.Keys.CacheTTL),
		actorcache.WithLogger(logger.Named("actors")),
		actorcache.WithMetrics(a.metrics))

	a.verifier = verifier.NewDefaultInboxVerifier(a.guard, a.actors, a.processor,
		verifier.WithLogger(logger.Named("verifier")),
		verifier.WithMetrics(a.metrics))

	return a, nil
}

// loadKey reads an RSA private key PEM published under keyID.
func loadKey(path, keyID string) (*signer.PrivateKeyMaterial, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}
	key, err := signer.ParsePrivateKey(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse key %s: %w", path, err)
	}
	return signer.NewPrivateKeyMaterial(keyID, key), nil
}
