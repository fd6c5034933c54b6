// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package payloadstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bureau-foundation/offload/lib/config"
	"github.com/bureau-foundation/offload/lib/offload"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the store selected by cfg.Kind, wrapped in
// [Instrumented] when cfg.Instrument is set. The returned closer
// releases backend resources and must be closed after the last use of
// the store.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger, registerer prometheus.Registerer) (offload.Store, io.Closer, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var store offload.Store
	var closer io.Closer = nopCloser{}

	switch cfg.Kind {
	case config.StoreMemory:
		logger.Warn("memory payload store selected; references will not survive a restart")
		store = NewMemory()

	case config.StoreFile:
		file, err := NewFile(cfg.Directory, logger)
		if err != nil {
			return nil, nil, err
		}
		store = file

	case config.StoreSQLite:
		database, err := OpenSQLite(SQLiteConfig{
			Path:     cfg.SQLite.Path,
			PoolSize: cfg.SQLite.PoolSize,
			Logger:   logger,
		})
		if err != nil {
			return nil, nil, err
		}
		store, closer = database, database

	case config.StoreNATS:
		objects, err := ConnectNATS(ctx, NATSConfig{
			URL:    cfg.NATS.URL,
			Bucket: cfg.NATS.Bucket,
			Logger: logger,
		})
		if err != nil {
			return nil, nil, err
		}
		store, closer = objects, objects

	default:
		return nil, nil, fmt.Errorf("payloadstore: unknown store kind %q", cfg.Kind)
	}

	if cfg.Instrument {
		instrumented, err := NewInstrumented(store, cfg.Kind, registerer)
		if err != nil {
			closer.Close()
			return nil, nil, err
		}
		store = instrumented
	}

	logger.Info("payload store opened", "kind", cfg.Kind, "instrumented", cfg.Instrument)
	return store, closer, nil
}
