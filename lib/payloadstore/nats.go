// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package payloadstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	commonpb "go.temporal.io/api/common/v1"

	"github.com/bureau-foundation/offload/lib/offload"
)

// NATSConfig holds the parameters for [ConnectNATS].
type NATSConfig struct {
	// URL is the NATS server URL. Required.
	URL string

	// Bucket is the object store bucket, created if missing. Required.
	Bucket string

	// Logger receives connection state changes. Nil discards.
	Logger *slog.Logger
}

// NATS stores payloads as objects in a JetStream object store bucket.
type NATS struct {
	objects jetstream.ObjectStore
	bucket  string
	conn    *nats.Conn
	logger  *slog.Logger
}

var _ offload.Store = (*NATS)(nil)

// ConnectNATS dials the server, ensures the bucket exists and returns
// a store that owns the connection. The caller must Close the store.
func ConnectNATS(ctx context.Context, cfg NATSConfig) (*NATS, error) {
	if cfg.URL == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("payloadstore: nats URL and Bucket are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("offload-payload-store"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "url", cfg.URL, "error", err)
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			logger.Info("nats reconnected", "url", conn.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("payloadstore: connecting to %s: %w", cfg.URL, err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("payloadstore: jetstream: %w", err)
	}
	store, err := NewNATS(ctx, js, cfg.Bucket, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	store.conn = conn
	return store, nil
}

// NewNATS creates a store on an existing JetStream context, creating
// the bucket if missing. The store does not own the connection.
func NewNATS(ctx context.Context, js jetstream.JetStream, bucket string, logger *slog.Logger) (*NATS, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	objects, err := js.CreateOrUpdateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "offloaded workflow payloads",
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("payloadstore: object store %q: %w", bucket, err)
	}
	logger.Info("nats payload store ready", "bucket", bucket)
	return &NATS{objects: objects, bucket: bucket, logger: logger}, nil
}

// Store implements offload.Store. Payloads already present are not
// re-uploaded.
func (n *NATS) Store(ctx context.Context, payload *commonpb.Payload) (any, error) {
	data, key, err := packPayload(payload)
	if err != nil {
		return nil, err
	}

	if _, err := n.objects.GetInfo(ctx, key); err == nil {
		n.logger.Debug("payload already stored", "bucket", n.bucket, "key", key)
		return key, nil
	} else if !errors.Is(err, jetstream.ErrObjectNotFound) {
		return nil, n.unavailable(ctx, "stat", key, err)
	}

	if _, err := n.objects.PutBytes(ctx, key, data); err != nil {
		return nil, n.unavailable(ctx, "put", key, err)
	}
	n.logger.Debug("payload stored", "bucket", n.bucket, "key", key, "bytes", len(data))
	return key, nil
}

// Fetch implements offload.Store.
func (n *NATS) Fetch(ctx context.Context, ref any) (*commonpb.Payload, error) {
	if _, err := parseKey(ref); err != nil {
		return nil, err
	}
	key := ref.(string)

	data, err := n.objects.GetBytes(ctx, key)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return nil, fmt.Errorf("%w: %s in bucket %s", offload.ErrNotFound, key, n.bucket)
	}
	if err != nil {
		return nil, n.unavailable(ctx, "get", key, err)
	}
	return unpackPayload(key, data)
}

// Delete removes a payload. Deleting an unknown reference is not an
// error.
func (n *NATS) Delete(ctx context.Context, ref any) error {
	if _, err := parseKey(ref); err != nil {
		return err
	}
	key := ref.(string)
	if err := n.objects.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrObjectNotFound) {
		return n.unavailable(ctx, "delete", key, err)
	}
	return nil
}

func (n *NATS) unavailable(ctx context.Context, operation, key string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %s %s in bucket %s: %v", offload.ErrStoreUnavailable, operation, key, n.bucket, err)
}

// Close drains the connection if the store owns it.
func (n *NATS) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}
