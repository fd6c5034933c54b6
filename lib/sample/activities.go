// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sample

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bureau-foundation/offload/lib/offload"
)

// PublishRequest names every reference that makes up the final report.
type PublishRequest struct {
	Report   *offload.Reference[Report]    `json:"report"`
	Appendix []*offload.Reference[Section] `json:"appendix,omitempty"`
}

// Activities are the sample's activities. Register a pointer with the
// worker; the offload interceptor binds the engine they use.
type Activities struct {
	// Directory receives published reports.
	Directory string

	Logger *slog.Logger
}

func (a *Activities) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.Logger
}

// GenerateReport builds the report and offloads it.
func (a *Activities) GenerateReport(ctx context.Context, request GenerateRequest) (*offload.Reference[Report], error) {
	if request.Sections <= 0 {
		return nil, fmt.Errorf("report needs at least one section, got %d", request.Sections)
	}
	report := generate(request)
	ref, err := offload.Offload(ctx, report)
	if err != nil {
		return nil, fmt.Errorf("offloading report %q: %w", request.Title, err)
	}
	a.logger().Info("report generated",
		"title", request.Title,
		"sections", len(report.Sections),
		"ref", string(ref.Encoded()),
	)
	return ref, nil
}

// Publish fetches the report and its appendix and writes the rendered
// markdown under Directory, returning the file path.
func (a *Activities) Publish(ctx context.Context, request PublishRequest) (string, error) {
	if request.Report == nil {
		return "", fmt.Errorf("publish request has no report")
	}
	report, err := request.Report.Fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("fetching report: %w", err)
	}
	appendix := make([]Section, 0, len(request.Appendix))
	for i, ref := range request.Appendix {
		section, err := ref.Fetch(ctx)
		if err != nil {
			return "", fmt.Errorf("fetching appended section %d: %w", i, err)
		}
		appendix = append(appendix, section)
	}

	if err := os.MkdirAll(a.Directory, 0o755); err != nil {
		return "", fmt.Errorf("creating publish directory: %w", err)
	}
	path := filepath.Join(a.Directory, slug(report.Title)+".md")
	temporary := path + ".tmp"
	if err := os.WriteFile(temporary, []byte(render(report, appendix)), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", temporary, err)
	}
	if err := os.Rename(temporary, path); err != nil {
		os.Remove(temporary)
		return "", fmt.Errorf("renaming into %s: %w", path, err)
	}

	a.logger().Info("report published", "path", path, "appended", len(appendix))
	return path, nil
}

func slug(title string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, title)
	mapped = strings.Trim(mapped, "-")
	if mapped == "" {
		return "report"
	}
	return mapped
}
