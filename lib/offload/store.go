// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package offload

import (
	"context"

	commonpb "go.temporal.io/api/common/v1"
)

// Store is a durable blob store addressed by opaque references.
//
// The reference returned by Store must be a JSON-compatible value (see
// [ValidateJSONValue]) and must stay fetchable for as long as any
// workflow that recorded it might replay. Fetch receives the same value
// after a JSON round trip, so numbers arrive as json.Number and objects
// as map[string]any.
//
// Implementations must be safe for concurrent use. Fetch wraps
// [ErrNotFound] for unknown or expired references and
// [ErrStoreUnavailable] for transient I/O failures.
type Store interface {
	Store(ctx context.Context, payload *commonpb.Payload) (any, error)
	Fetch(ctx context.Context, ref any) (*commonpb.Payload, error)
}
