// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sample

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/bureau-foundation/offload/lib/offload"
)

const (
	// WorkflowName is the registered name of [ReportWorkflow].
	WorkflowName = "ReportWorkflow"

	// SignalAppendSection carries an *offload.Reference[Section].
	SignalAppendSection = "append-section"

	// SignalPublish ends the wait for appended sections.
	SignalPublish = "publish"

	// QuerySummary returns the current [Summary].
	QuerySummary = "summary"
)

// Registry is the part of a worker (or test environment) Register needs.
type Registry interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
	RegisterActivity(a interface{})
}

// Register adds the workflow and activities to a worker.
func Register(registry Registry, activities *Activities) {
	registry.RegisterWorkflowWithOptions(ReportWorkflow, workflow.RegisterOptions{Name: WorkflowName})
	registry.RegisterActivity(activities)
}

// ReportWorkflow generates a report, summarizes it without loading it
// into the workflow, optionally collects appended sections, then
// publishes everything.
func ReportWorkflow(ctx workflow.Context, request GenerateRequest) (Summary, error) {
	logger := workflow.GetLogger(ctx)
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumAttempts: 3,
		},
	})

	var summary Summary
	if err := workflow.SetQueryHandler(ctx, QuerySummary, func() (Summary, error) {
		return summary, nil
	}); err != nil {
		return Summary{}, fmt.Errorf("registering summary query: %w", err)
	}

	var activities *Activities
	var report *offload.Reference[Report]
	if err := workflow.ExecuteActivity(ctx, activities.GenerateReport, request).Get(ctx, &report); err != nil {
		return Summary{}, fmt.Errorf("generating report: %w", err)
	}

	summary, err := offload.ExtractWorkflow(ctx, report, summarizeReport)
	if err != nil {
		return Summary{}, fmt.Errorf("summarizing report: %w", err)
	}
	logger.Info("report summarized", "sections", summary.Sections, "bytes", summary.Bytes)

	var appendix []*offload.Reference[Section]
	if request.AwaitSignals {
		appendChannel := workflow.GetSignalChannel(ctx, SignalAppendSection)
		publishChannel := workflow.GetSignalChannel(ctx, SignalPublish)
		published := false
		var appendErr error

		selector := workflow.NewSelector(ctx)
		selector.AddReceive(appendChannel, func(channel workflow.ReceiveChannel, more bool) {
			var section *offload.Reference[Section]
			channel.Receive(ctx, &section)
			if section == nil {
				logger.Warn("ignoring empty section signal")
				return
			}
			added, err := offload.ExtractWorkflow(ctx, section, summarizeAppended)
			if err != nil {
				appendErr = fmt.Errorf("summarizing appended section: %w", err)
				return
			}
			summary = summary.add(added)
			appendix = append(appendix, section)
			logger.Info("section appended", "sections", summary.Sections)
		})
		selector.AddReceive(publishChannel, func(channel workflow.ReceiveChannel, more bool) {
			channel.Receive(ctx, nil)
			published = true
		})

		for !published && appendErr == nil {
			selector.Select(ctx)
		}
		if appendErr != nil {
			return summary, appendErr
		}
	}

	var path string
	publish := PublishRequest{Report: report, Appendix: appendix}
	if err := workflow.ExecuteActivity(ctx, activities.Publish, publish).Get(ctx, &path); err != nil {
		return summary, fmt.Errorf("publishing report: %w", err)
	}
	summary.Published = path
	return summary, nil
}
