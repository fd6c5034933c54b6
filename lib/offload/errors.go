// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package offload

import (
	"errors"

	"go.temporal.io/sdk/temporal"
)

// Sentinel errors. Store implementations wrap [ErrNotFound] and
// [ErrStoreUnavailable]; the engine wraps everything else. Match with
// errors.Is.
var (
	// ErrUnboundEngine means a reference was resolved outside any
	// intercepted activity or workflow call. Programmer error.
	ErrUnboundEngine = errors.New("offload: no engine bound to context")

	// ErrNotFound means the store has no payload for the reference
	// (unknown or expired).
	ErrNotFound = errors.New("offload: reference not found in store")

	// ErrStoreUnavailable is a transient store failure. Retryable by
	// the enclosing activity's retry policy.
	ErrStoreUnavailable = errors.New("offload: store unavailable")

	// ErrCorruptPayload means the codec could not decode what the store
	// returned: data loss or a codec/version mismatch.
	ErrCorruptPayload = errors.New("offload: corrupt payload")

	// ErrDeserialization means the decoded payload does not fit the
	// requested type.
	ErrDeserialization = errors.New("offload: deserialization failed")

	// ErrInvalidReference means an encoded reference is not a
	// JSON-compatible value.
	ErrInvalidReference = errors.New("offload: invalid encoded reference")

	// ErrNotOffloaded means a reference holding only an in-memory value
	// was about to cross a durable boundary.
	ErrNotOffloaded = errors.New("offload: reference was never offloaded")
)

// nonRetryable lists the sentinels whose failures repeat identically on
// every attempt. Each maps to the ApplicationError type reported to
// Temporal.
var nonRetryable = []struct {
	err       error
	errorType string
}{
	{ErrUnboundEngine, "OffloadUnboundEngine"},
	{ErrCorruptPayload, "OffloadCorruptPayload"},
	{ErrDeserialization, "OffloadDeserialization"},
	{ErrInvalidReference, "OffloadInvalidReference"},
	{ErrNotOffloaded, "OffloadNotOffloaded"},
}

// IsRetryable reports whether err may succeed on another attempt.
// Store misses and transient store failures are retryable (the caller
// decides); codec, type and invariant failures are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	for _, entry := range nonRetryable {
		if errors.Is(err, entry.err) {
			return false
		}
	}
	return true
}

// asApplicationError converts non-retryable offload failures into
// non-retryable Temporal application errors so the activity retry
// policy does not burn attempts on them. Other errors pass through
// unchanged.
func asApplicationError(err error) error {
	if err == nil {
		return nil
	}
	var applicationError *temporal.ApplicationError
	if errors.As(err, &applicationError) {
		return err
	}
	for _, entry := range nonRetryable {
		if errors.Is(err, entry.err) {
			return temporal.NewNonRetryableApplicationError(err.Error(), entry.errorType, err)
		}
	}
	return err
}
