// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sample

import (
	"context"
	"fmt"
	"strings"
)

// Report is the large value the workflow never holds directly.
type Report struct {
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

// Section is one heading and its body.
type Section struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// GenerateRequest describes the report to generate.
type GenerateRequest struct {
	Title string `json:"title"`

	// Sections is the number of generated sections.
	Sections int `json:"sections"`

	// SectionBytes is the approximate body size of each section.
	SectionBytes int `json:"section_bytes"`

	// AwaitSignals keeps the workflow open for appended sections until
	// a publish signal arrives.
	AwaitSignals bool `json:"await_signals"`
}

// Summary is what the workflow keeps in history.
type Summary struct {
	Title     string `json:"title"`
	Sections  int    `json:"sections"`
	Bytes     int    `json:"bytes"`
	Words     int    `json:"words"`
	Published string `json:"published,omitempty"`
}

func (s Summary) add(other Summary) Summary {
	s.Sections += other.Sections
	s.Bytes += other.Bytes
	s.Words += other.Words
	return s
}

func summarizeSection(section Section) Summary {
	return Summary{
		Sections: 1,
		Bytes:    len(section.Heading) + len(section.Body),
		Words:    len(strings.Fields(section.Body)),
	}
}

// summarizeReport is the extract transform for a whole report.
func summarizeReport(_ context.Context, report Report) (Summary, error) {
	summary := Summary{Title: report.Title}
	for _, section := range report.Sections {
		summary = summary.add(summarizeSection(section))
	}
	return summary, nil
}

// summarizeAppended is the extract transform for a signalled section.
func summarizeAppended(_ context.Context, section Section) (Summary, error) {
	if section.Heading == "" {
		return Summary{}, fmt.Errorf("appended section has no heading")
	}
	return summarizeSection(section), nil
}

// generate builds deterministic filler text so repeated runs offload
// identical payloads.
func generate(request GenerateRequest) Report {
	report := Report{Title: request.Title, Sections: make([]Section, request.Sections)}
	for i := range report.Sections {
		var body strings.Builder
		body.Grow(request.SectionBytes)
		for word := 0; body.Len() < request.SectionBytes; word++ {
			fmt.Fprintf(&body, "finding-%d.%d ", i+1, word)
		}
		report.Sections[i] = Section{
			Heading: fmt.Sprintf("Section %d", i+1),
			Body:    body.String(),
		}
	}
	return report
}

// render formats a report and its appended sections as markdown.
func render(report Report, appendix []Section) string {
	var out strings.Builder
	fmt.Fprintf(&out, "# %s\n", report.Title)
	for _, section := range append(append([]Section(nil), report.Sections...), appendix...) {
		fmt.Fprintf(&out, "\n## %s\n\n%s\n", section.Heading, strings.TrimSpace(section.Body))
	}
	return out.String()
}
