// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer serves /metrics from a Prometheus gatherer and a
// trivial /healthz. Serve(ctx) blocks until the context is cancelled
// and active scrapes drain.
type MetricsServer struct {
	address  string
	handler  http.Handler
	logger   *slog.Logger
	shutdown time.Duration

	// ready is closed after the listener is bound.
	ready chan struct{}

	// addr is the resolved listen address, valid after ready is closed.
	addr net.Addr
}

// MetricsServerConfig configures a MetricsServer.
type MetricsServerConfig struct {
	// Address is the TCP listen address (e.g., "127.0.0.1:9464",
	// ":0"). Required.
	Address string

	// Gatherer is scraped on every /metrics request. Required.
	Gatherer prometheus.Gatherer

	// ShutdownTimeout bounds the wait for in-flight scrapes during
	// graceful shutdown. Defaults to 5 seconds if zero.
	ShutdownTimeout time.Duration

	// Logger is the structured logger. Required.
	Logger *slog.Logger
}

// NewMetricsServer creates a server that will listen on the configured
// address. Call Serve to start accepting connections.
func NewMetricsServer(config MetricsServerConfig) *MetricsServer {
	if config.Address == "" {
		panic("service.MetricsServer: Address is required")
	}
	if config.Gatherer == nil {
		panic("service.MetricsServer: Gatherer is required")
	}
	if config.Logger == nil {
		panic("service.MetricsServer: Logger is required")
	}

	timeout := config.ShutdownTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{
		ErrorLog: slog.NewLogLogger(config.Logger.Handler(), slog.LevelError),
	}))
	mux.HandleFunc("GET /healthz", func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
		fmt.Fprint(writer, "ok")
	})

	return &MetricsServer{
		address:  config.Address,
		handler:  mux,
		logger:   config.Logger,
		shutdown: timeout,
		ready:    make(chan struct{}),
	}
}

// Ready returns a channel that is closed once the server is bound.
func (s *MetricsServer) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the resolved listen address. Only valid after Ready()
// is closed.
func (s *MetricsServer) Addr() net.Addr {
	return s.addr
}

// Serve accepts scrapes until ctx is cancelled, then shuts down
// gracefully.
func (s *MetricsServer) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.address, err)
	}
	s.addr = listener.Addr()
	close(s.ready)

	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("metrics server listening", "address", s.addr.String())

	serveDone := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("metrics server shutting down")
	case err := <-serveDone:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	return nil
}
