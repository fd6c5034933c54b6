// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// offload-worker runs a Temporal worker with the offload interceptor
// installed and the sample report workflow registered.
//
// The payload store and codec chain come from the configuration file
// (--config or OFFLOAD_CONFIG). Activities and workflows on this
// worker can offload values to the store and pass only references
// through workflow history. Prometheus metrics for the store and the
// process are served on metrics.listen.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"

	"github.com/bureau-foundation/offload/lib/offload"
	"github.com/bureau-foundation/offload/lib/payloadcodec"
	"github.com/bureau-foundation/offload/lib/payloadstore"
	"github.com/bureau-foundation/offload/lib/sample"
	"github.com/bureau-foundation/offload/lib/service"
	"github.com/bureau-foundation/offload/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath    string
		publishDir    string
		showVersion   bool
		taskQueue     string
		metricsListen string
	)
	flagSet := pflag.NewFlagSet("offload-worker", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to offload.yaml (default: $OFFLOAD_CONFIG)")
	flagSet.StringVar(&publishDir, "publish-dir", "published", "directory the sample workflow publishes reports to")
	flagSet.StringVar(&taskQueue, "task-queue", "", "override temporal.task_queue")
	flagSet.StringVar(&metricsListen, "metrics-listen", "", "override metrics.listen (empty keeps the config value)")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Printf("offload-worker %s\n", version.Info())
		return nil
	}

	cfg, err := service.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if taskQueue != "" {
		cfg.Temporal.TaskQueue = taskQueue
	}
	if metricsListen != "" {
		cfg.Metrics.Listen = metricsListen
	}

	logger, err := service.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		version.NewCollector(),
	)

	store, storeCloser, err := payloadstore.Open(ctx, cfg.Store, logger, registry)
	if err != nil {
		return fmt.Errorf("opening payload store: %w", err)
	}
	defer storeCloser.Close()

	codec, codecCloser, err := payloadcodec.Build(cfg.Codec)
	if err != nil {
		return fmt.Errorf("building payload codec: %w", err)
	}
	defer codecCloser.Close()

	offloadInterceptor, err := offload.NewInterceptor(service.InterceptorOptions(cfg, store, codec, logger))
	if err != nil {
		return err
	}

	temporalClient, err := service.Dial(cfg.Temporal, logger)
	if err != nil {
		return err
	}
	defer temporalClient.Close()

	temporalWorker := worker.New(temporalClient, cfg.Temporal.TaskQueue, worker.Options{
		Interceptors: []interceptor.WorkerInterceptor{offloadInterceptor},
	})
	sample.Register(temporalWorker, &sample.Activities{
		Directory: publishDir,
		Logger:    logger.With("component", "sample"),
	})

	metricsDone := make(chan error, 1)
	if cfg.Metrics.Listen != "" {
		metricsServer := service.NewMetricsServer(service.MetricsServerConfig{
			Address:  cfg.Metrics.Listen,
			Gatherer: registry,
			Logger:   logger,
		})
		go func() {
			metricsDone <- metricsServer.Serve(ctx)
			close(metricsDone)
		}()
	} else {
		close(metricsDone)
	}

	if err := temporalWorker.Start(); err != nil {
		return fmt.Errorf("starting worker: %w", err)
	}
	logger.Info("offload worker running",
		"version", version.Info(),
		"task_queue", cfg.Temporal.TaskQueue,
		"store", cfg.Store.Kind,
		"compression", cfg.Codec.Compression,
		"encrypted", cfg.Codec.EncryptionKeyFile != "",
	)

	select {
	case <-ctx.Done():
	case err := <-metricsDone:
		if err != nil {
			logger.Error("metrics server failed", "error", err)
			stop()
		}
		<-ctx.Done()
	}

	logger.Info("stopping offload worker")
	temporalWorker.Stop()
	if err := <-metricsDone; err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
	return nil
}
