// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sample

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/worker"

	"github.com/bureau-foundation/offload/lib/offload"
	"github.com/bureau-foundation/offload/lib/payloadstore"
)

type harness struct {
	env        *testsuite.TestWorkflowEnvironment
	store      *payloadstore.Memory
	directory  string
	clientSide context.Context
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := payloadstore.NewMemory()
	offloadInterceptor, err := offload.NewInterceptor(offload.Options{Store: store})
	if err != nil {
		t.Fatalf("NewInterceptor: %v", err)
	}
	clientEngine, err := offload.NewEngine(offload.EngineOptions{Store: store})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.SetWorkerOptions(worker.Options{Interceptors: []interceptor.WorkerInterceptor{offloadInterceptor}})
	directory := t.TempDir()
	Register(env, &Activities{Directory: directory})

	return &harness{
		env:        env,
		store:      store,
		directory:  directory,
		clientSide: offload.WithEngine(context.Background(), clientEngine),
	}
}

func (h *harness) result(t *testing.T) Summary {
	t.Helper()
	if !h.env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := h.env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow: %v", err)
	}
	var summary Summary
	if err := h.env.GetWorkflowResult(&summary); err != nil {
		t.Fatalf("GetWorkflowResult: %v", err)
	}
	return summary
}

func TestReportWorkflow_PublishesWithoutSignals(t *testing.T) {
	h := newHarness(t)
	h.env.ExecuteWorkflow(WorkflowName, GenerateRequest{
		Title:        "Quarterly Findings",
		Sections:     8,
		SectionBytes: 512 * 1024,
	})
	summary := h.result(t)

	if summary.Sections != 8 || summary.Title != "Quarterly Findings" {
		t.Errorf("summary = %+v", summary)
	}
	if summary.Bytes < 8*512*1024 {
		t.Errorf("summary counted %d bytes, want at least %d", summary.Bytes, 8*512*1024)
	}
	if h.store.Len() != 1 {
		t.Errorf("store holds %d payloads, want 1", h.store.Len())
	}

	content, err := os.ReadFile(summary.Published)
	if err != nil {
		t.Fatalf("reading published report: %v", err)
	}
	if !strings.HasPrefix(string(content), "# Quarterly Findings\n") {
		t.Errorf("published report starts %q", string(content[:40]))
	}
	if !strings.HasSuffix(summary.Published, "quarterly-findings.md") {
		t.Errorf("published to %s", summary.Published)
	}
}

func TestReportWorkflow_AppendsSignalledSections(t *testing.T) {
	h := newHarness(t)

	appended, err := offload.Offload(h.clientSide, Section{Heading: "Addendum", Body: "three more words"})
	if err != nil {
		t.Fatalf("Offload: %v", err)
	}

	var queried Summary
	h.env.RegisterDelayedCallback(func() {
		h.env.SignalWorkflow(SignalAppendSection, appended)
	}, time.Minute)
	h.env.RegisterDelayedCallback(func() {
		encoded, err := h.env.QueryWorkflow(QuerySummary)
		if err != nil {
			t.Errorf("QueryWorkflow: %v", err)
			return
		}
		if err := encoded.Get(&queried); err != nil {
			t.Errorf("decoding query result: %v", err)
		}
		h.env.SignalWorkflow(SignalPublish, nil)
	}, 2*time.Minute)

	h.env.ExecuteWorkflow(WorkflowName, GenerateRequest{
		Title:        "Field Notes",
		Sections:     2,
		SectionBytes: 1024,
		AwaitSignals: true,
	})
	summary := h.result(t)

	if queried.Sections != 3 {
		t.Errorf("queried summary has %d sections, want 3", queried.Sections)
	}
	if summary.Sections != 3 || summary.Published == "" {
		t.Errorf("summary = %+v", summary)
	}
	content, err := os.ReadFile(summary.Published)
	if err != nil {
		t.Fatalf("reading published report: %v", err)
	}
	if !strings.Contains(string(content), "## Addendum\n\nthree more words\n") {
		t.Errorf("appended section missing from published report:\n%s", content)
	}
}

func TestReportWorkflow_RejectsSectionWithoutHeading(t *testing.T) {
	h := newHarness(t)

	appended, err := offload.Offload(h.clientSide, Section{Body: "orphan"})
	if err != nil {
		t.Fatalf("Offload: %v", err)
	}
	h.env.RegisterDelayedCallback(func() {
		h.env.SignalWorkflow(SignalAppendSection, appended)
	}, time.Minute)

	h.env.ExecuteWorkflow(WorkflowName, GenerateRequest{Title: "t", Sections: 1, SectionBytes: 16, AwaitSignals: true})

	if !h.env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	err = h.env.GetWorkflowError()
	if err == nil || !strings.Contains(err.Error(), "appended section has no heading") {
		t.Errorf("expected heading error, got %v", err)
	}
}

func TestGenerateReport_RejectsEmpty(t *testing.T) {
	activities := &Activities{}
	if _, err := activities.GenerateReport(context.Background(), GenerateRequest{Title: "x"}); err == nil {
		t.Error("expected error for a report with no sections")
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	request := GenerateRequest{Title: "same", Sections: 3, SectionBytes: 100}
	first, second := generate(request), generate(request)
	if render(first, nil) != render(second, nil) {
		t.Error("generate produced different reports for the same request")
	}
	for _, section := range first.Sections {
		if len(section.Body) < 100 {
			t.Errorf("section %q body is %d bytes, want at least 100", section.Heading, len(section.Body))
		}
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Quarterly Findings", "quarterly-findings"},
		{"  --  ", "report"},
		{"Q3/2026 Report!", "q3-2026-report"},
	}
	for _, test := range tests {
		if got := slug(test.title); got != test.want {
			t.Errorf("slug(%q) = %q, want %q", test.title, got, test.want)
		}
	}
}
