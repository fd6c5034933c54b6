// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package payloadstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	commonpb "go.temporal.io/api/common/v1"
	"google.golang.org/protobuf/proto"

	"github.com/bureau-foundation/offload/lib/offload"
)

// storeMetrics holds the Prometheus collectors of one instrumented
// store. Every series carries a constant "backend" label.
type storeMetrics struct {
	operations   *prometheus.CounterVec   // by operation and result
	latency      *prometheus.HistogramVec // by operation
	payloadBytes *prometheus.HistogramVec // by operation
}

func newStoreMetrics(backend string) *storeMetrics {
	labels := prometheus.Labels{"backend": backend}
	return &storeMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "offload",
			Subsystem:   "store",
			Name:        "operations_total",
			Help:        "Store and fetch operations by result",
			ConstLabels: labels,
		}, []string{"operation", "result"}),

		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "offload",
			Subsystem:   "store",
			Name:        "operation_duration_seconds",
			Help:        "Store and fetch latency in seconds",
			ConstLabels: labels,
			Buckets:     []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"operation"}),

		payloadBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "offload",
			Subsystem:   "store",
			Name:        "payload_bytes",
			Help:        "Size of successfully stored and fetched payloads",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1024, 4, 10), // 1 KiB .. 256 MiB
		}, []string{"operation"}),
	}
}

func (m *storeMetrics) register(registerer prometheus.Registerer) error {
	for _, collector := range []prometheus.Collector{m.operations, m.latency, m.payloadBytes} {
		if err := registerer.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

// Instrumented records metrics for every call to the wrapped store.
type Instrumented struct {
	inner   offload.Store
	metrics *storeMetrics
}

var _ offload.Store = (*Instrumented)(nil)

// NewInstrumented wraps inner. backend names the store in the
// "backend" label. Collectors are registered with registerer when it
// is not nil.
func NewInstrumented(inner offload.Store, backend string, registerer prometheus.Registerer) (*Instrumented, error) {
	metrics := newStoreMetrics(backend)
	if registerer != nil {
		if err := metrics.register(registerer); err != nil {
			return nil, fmt.Errorf("payloadstore: registering metrics for %s: %w", backend, err)
		}
	}
	return &Instrumented{inner: inner, metrics: metrics}, nil
}

// Store implements offload.Store.
func (i *Instrumented) Store(ctx context.Context, payload *commonpb.Payload) (any, error) {
	start := time.Now()
	ref, err := i.inner.Store(ctx, payload)
	i.observe("store", start, err, payload)
	return ref, err
}

// Fetch implements offload.Store.
func (i *Instrumented) Fetch(ctx context.Context, ref any) (*commonpb.Payload, error) {
	start := time.Now()
	payload, err := i.inner.Fetch(ctx, ref)
	i.observe("fetch", start, err, payload)
	return payload, err
}

func (i *Instrumented) observe(operation string, start time.Time, err error, payload *commonpb.Payload) {
	i.metrics.latency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	i.metrics.operations.WithLabelValues(operation, resultLabel(err)).Inc()
	if err == nil && payload != nil {
		i.metrics.payloadBytes.WithLabelValues(operation).Observe(float64(proto.Size(payload)))
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, offload.ErrNotFound):
		return "not_found"
	case errors.Is(err, offload.ErrInvalidReference):
		return "invalid_reference"
	case errors.Is(err, offload.ErrCorruptPayload):
		return "corrupt"
	case errors.Is(err, offload.ErrStoreUnavailable):
		return "unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
