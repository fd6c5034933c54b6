// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// offload-start starts the sample report workflow and prints its
// summary.
//
// With --append, each "Heading: body" value is offloaded to the
// configured payload store from this process and signalled to the
// workflow as a reference, then the workflow is told to publish. The
// store must be shared with the worker (file on a shared volume,
// sqlite on the same host, or nats); a memory store is rejected.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"go.temporal.io/sdk/client"

	"github.com/bureau-foundation/offload/lib/config"
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
		configPath   string
		workflowID   string
		title        string
		sections     int
		sectionBytes int
		appends      []string
		showVersion  bool
	)
	flagSet := pflag.NewFlagSet("offload-start", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to offload.yaml (default: $OFFLOAD_CONFIG)")
	flagSet.StringVar(&workflowID, "workflow-id", "", "workflow ID (default: report-<title slug>)")
	flagSet.StringVar(&title, "title", "Offload Sample Report", "report title")
	flagSet.IntVar(&sections, "sections", 16, "number of generated sections")
	flagSet.IntVar(&sectionBytes, "section-bytes", 256*1024, "approximate body size of each generated section")
	flagSet.StringArrayVar(&appends, "append", nil, `section to append by signal, as "Heading: body" (repeatable)`)
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Printf("offload-start %s\n", version.Info())
		return nil
	}

	appended, err := parseSections(appends)
	if err != nil {
		return err
	}

	cfg, err := service.LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger, err := service.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	temporalClient, err := service.Dial(cfg.Temporal, logger)
	if err != nil {
		return err
	}
	defer temporalClient.Close()

	if workflowID == "" {
		workflowID = "report-" + strings.ToLower(strings.Join(strings.Fields(title), "-"))
	}
	request := sample.GenerateRequest{
		Title:        title,
		Sections:     sections,
		SectionBytes: sectionBytes,
		AwaitSignals: len(appended) > 0,
	}
	workflowRun, err := temporalClient.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: cfg.Temporal.TaskQueue,
	}, sample.WorkflowName, request)
	if err != nil {
		return fmt.Errorf("starting workflow: %w", err)
	}
	logger.Info("workflow started", "workflow_id", workflowRun.GetID(), "run_id", workflowRun.GetRunID())

	if len(appended) > 0 {
		if err := signalSections(ctx, cfg, logger, temporalClient, workflowRun, appended); err != nil {
			return err
		}
	}

	var summary sample.Summary
	if err := workflowRun.Get(ctx, &summary); err != nil {
		return fmt.Errorf("workflow %s: %w", workflowRun.GetID(), err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(summary)
}

// signalSections offloads each section through a client-side engine,
// signals the references, reads the summary query and finally signals
// publish.
func signalSections(ctx context.Context, cfg *config.Config, logger *slog.Logger, temporalClient client.Client, run client.WorkflowRun, sections []sample.Section) error {
	if cfg.Store.Kind == config.StoreMemory {
		return fmt.Errorf("--append needs a payload store shared with the worker; store.kind is %q", cfg.Store.Kind)
	}
	cfg.Store.Instrument = false
	store, storeCloser, err := payloadstore.Open(ctx, cfg.Store, logger, nil)
	if err != nil {
		return fmt.Errorf("opening payload store: %w", err)
	}
	defer storeCloser.Close()

	codec, codecCloser, err := payloadcodec.Build(cfg.Codec)
	if err != nil {
		return fmt.Errorf("building payload codec: %w", err)
	}
	defer codecCloser.Close()

	engine, err := offload.NewEngine(offload.EngineOptions{Store: store, Codec: codec, Logger: logger})
	if err != nil {
		return err
	}
	ctx = offload.WithEngine(ctx, engine)

	for _, section := range sections {
		ref, err := offload.Offload(ctx, section)
		if err != nil {
			return fmt.Errorf("offloading section %q: %w", section.Heading, err)
		}
		if err := temporalClient.SignalWorkflow(ctx, run.GetID(), run.GetRunID(), sample.SignalAppendSection, ref); err != nil {
			return fmt.Errorf("signalling section %q: %w", section.Heading, err)
		}
		logger.Info("section signalled", "heading", section.Heading, "ref", string(ref.Encoded()))
	}

	encoded, err := temporalClient.QueryWorkflow(ctx, run.GetID(), run.GetRunID(), sample.QuerySummary)
	if err != nil {
		return fmt.Errorf("querying summary: %w", err)
	}
	var summary sample.Summary
	if err := encoded.Get(&summary); err != nil {
		return fmt.Errorf("decoding summary: %w", err)
	}
	logger.Info("summary before publish", "sections", summary.Sections, "bytes", summary.Bytes)

	if err := temporalClient.SignalWorkflow(ctx, run.GetID(), run.GetRunID(), sample.SignalPublish, nil); err != nil {
		return fmt.Errorf("signalling publish: %w", err)
	}
	return nil
}

func parseSections(values []string) ([]sample.Section, error) {
	sections := make([]sample.Section, 0, len(values))
	for _, value := range values {
		heading, body, found := strings.Cut(value, ":")
		heading = strings.TrimSpace(heading)
		if !found || heading == "" {
			return nil, fmt.Errorf("--append %q: want \"Heading: body\"", value)
		}
		sections = append(sections, sample.Section{Heading: heading, Body: strings.TrimSpace(body)})
	}
	return sections, nil
}
