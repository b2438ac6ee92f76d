/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/waigani/diffparser"

	"github.com/javimosch/mr-pilot/llm"
)

// Input is one change to review.
type Input struct {
	// Source labels where the change came from, e.g. "gitlab:group/proj!42".
	Source      string
	Title       string
	Description string
	Diff        string
}

// Options tunes the engine.
type Options struct {
	// MaxFindings caps the number of findings in a report. 0 means the
	// default of 50.
	MaxFindings int
	// MaxDiffBytes truncates oversized diffs before prompting. 0 means
	// the default of 500000.
	MaxDiffBytes int
	// Guidelines are project-specific review instructions included in the
	// prompt, typically loaded from the repo's .mr-pilot.yaml.
	Guidelines []string
	// MaxTokens for the completion. 0 means the provider default.
	MaxTokens int64
}

// Engine runs reviews against an LLM client.
type Engine struct {
	client llm.Client
	opts   Options
}

// NewEngine creates a review engine.
func NewEngine(client llm.Client, opts Options) *Engine {
	if opts.MaxFindings <= 0 {
		opts.MaxFindings = 50
	}
	if opts.MaxDiffBytes <= 0 {
		opts.MaxDiffBytes = 500000
	}
	return &Engine{client: client, opts: opts}
}

// Review runs the full pipeline for one change.
func (e *Engine) Review(ctx context.Context, in Input) (*Report, error) {
	log := clog.FromContext(ctx)
	started := time.Now()

	diff := strings.TrimSpace(in.Diff)
	if diff == "" {
		return &Report{
			Source:   in.Source,
			Model:    e.client.Model(),
			Findings: []Finding{},
			Duration: time.Since(started).Round(time.Millisecond).String(),
		}, nil
	}

	truncated := false
	if len(diff) > e.opts.MaxDiffBytes {
		diff = diff[:e.opts.MaxDiffBytes]
		truncated = true
		log.With("max_bytes", e.opts.MaxDiffBytes).Warn("Diff truncated before review")
	}

	changed := changedFiles(diff)
	log.With("source", in.Source).
		With("files", len(changed)).
		With("diff_bytes", len(diff)).
		Info("Starting review")

	req := llm.Request{
		System:    systemPrompt,
		User:      buildUserPrompt(Input{Source: in.Source, Title: in.Title, Description: in.Description, Diff: diff}, e.opts.Guidelines, e.opts.MaxFindings),
		MaxTokens: e.opts.MaxTokens,
	}
	resp, err := e.client.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("completing review: %w", err)
	}

	findings, err := parseFindings(resp.Content)
	if err != nil {
		// One repair round-trip: tell the model what was wrong with its
		// JSON and ask it to fix it.
		log.With("error", err.Error()).Warn("Invalid findings JSON, attempting repair pass")
		repairResp, repairErr := e.client.Complete(ctx, llm.Request{
			System:    systemPrompt,
			User:      repairPrompt(err, resp.Content),
			MaxTokens: e.opts.MaxTokens,
		})
		if repairErr != nil {
			return nil, fmt.Errorf("repair pass: %w (original parse error: %w)", repairErr, err)
		}
		if findings, err = parseFindings(repairResp.Content); err != nil {
			return nil, fmt.Errorf("response still invalid after repair pass: %w", err)
		}
	}

	if len(findings) > e.opts.MaxFindings {
		findings = findings[:e.opts.MaxFindings]
	}

	return &Report{
		Source:       in.Source,
		Model:        e.client.Model(),
		ChangedFiles: changed,
		Summary:      ComputeSummary(findings),
		Findings:     findings,
		Truncated:    truncated,
		Duration:     time.Since(started).Round(time.Millisecond).String(),
	}, nil
}

// changedFiles lists the paths touched by the diff. A diff the parser
// cannot make sense of yields an empty list rather than failing the
// review; the model sees the raw text either way.
func changedFiles(diff string) []string {
	parsed, err := diffparser.Parse(diff)
	if err != nil {
		return nil
	}
	files := make([]string, 0, len(parsed.Files))
	for _, f := range parsed.Files {
		switch {
		case f.NewName != "" && f.NewName != "/dev/null":
			files = append(files, f.NewName)
		case f.OrigName != "":
			files = append(files, f.OrigName)
		}
	}
	return files
}
