// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	temporallog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/temporal"

	"github.com/bureau-foundation/offload/lib/config"
	"github.com/bureau-foundation/offload/lib/offload"
)

// Dial connects to the Temporal frontend named in cfg. SDK logging goes
// through logger.
func Dial(cfg config.TemporalConfig, logger *slog.Logger) (client.Client, error) {
	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    temporallog.NewStructuredLogger(logger.With("component", "temporal")),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to temporal at %s: %w", cfg.HostPort, err)
	}
	return temporalClient, nil
}

// InterceptorOptions builds offload interceptor options from the
// loaded configuration. Store and codec come from payloadstore.Open
// and payloadcodec.Build.
func InterceptorOptions(cfg *config.Config, store offload.Store, codec converter.PayloadCodec, logger *slog.Logger) offload.Options {
	local := offload.DefaultLocalActivityOptions()
	if cfg.Offload.ExtractTimeout > 0 {
		local.StartToCloseTimeout = cfg.Offload.ExtractTimeout
	}
	if cfg.Offload.ExtractMaximumAttempts > 0 {
		local.RetryPolicy = &temporal.RetryPolicy{MaximumAttempts: cfg.Offload.ExtractMaximumAttempts}
	}
	return offload.Options{
		Store:                store,
		Codec:                codec,
		LocalActivityOptions: &local,
		FetchTimeout:         cfg.Offload.FetchTimeout,
		Logger:               logger,
	}
}
