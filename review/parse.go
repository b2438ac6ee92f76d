/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package review

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSON pulls JSON content out of a model response that may wrap it
// in markdown code fences. It looks for a ```json block first and falls
// back to stripping bare fences.
func extractJSON(responseText string) string {
	lines := strings.Split(responseText, "\n")
	var buf bytes.Buffer
	inBlock := false
	found := false

	for _, line := range lines {
		if !inBlock && strings.TrimSpace(line) == "```json" {
			inBlock = true
			found = true
			continue
		}
		if inBlock && strings.TrimSpace(line) == "```" {
			break
		}
		if inBlock {
			if buf.Len() > 0 {
				buf.WriteString("\n")
			}
			buf.WriteString(line)
		}
	}

	if found {
		return strings.TrimSpace(buf.String())
	}

	// No ```json block: trim whatever fencing is present. These do nothing
	// if the markers aren't there.
	text := strings.TrimSpace(responseText)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// rawFinding is the JSON shape the model is asked to produce.
type rawFinding struct {
	Severity   string  `json:"severity"`
	Category   string  `json:"category"`
	Title      string  `json:"title"`
	Message    string  `json:"message"`
	Suggestion string  `json:"suggestion"`
	Confidence float64 `json:"confidence"`
	Path       string  `json:"path"`
	StartLine  int     `json:"startLine"`
	EndLine    int     `json:"endLine"`
}

// parseFindings decodes the model response into findings.
func parseFindings(content string) ([]Finding, error) {
	var raw []rawFinding
	if err := json.Unmarshal([]byte(extractJSON(content)), &raw); err != nil {
		return nil, fmt.Errorf("response is not a valid JSON array of findings: %w", err)
	}

	findings := make([]Finding, 0, len(raw))
	for _, r := range raw {
		f := Finding{
			Severity:   normalizeSeverity(r.Severity),
			Category:   Category(r.Category),
			Title:      r.Title,
			Message:    r.Message,
			Suggestion: r.Suggestion,
			Confidence: r.Confidence,
			Path:       r.Path,
			StartLine:  r.StartLine,
			EndLine:    r.EndLine,
		}
		f.ID = findingID(f)
		findings = append(findings, f)
	}
	return findings, nil
}

func normalizeSeverity(s string) Severity {
	switch Severity(strings.ToLower(s)) {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return Severity(strings.ToLower(s))
	default:
		return SeverityLow
	}
}
