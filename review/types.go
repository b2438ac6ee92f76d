/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package review

import (
	"crypto/sha256"
	"fmt"
)

// Severity of a finding.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank returns a numeric rank for sorting; higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Category of a finding.
type Category string

const (
	CategoryBug             Category = "bug"
	CategorySecurity        Category = "security"
	CategoryPerformance     Category = "performance"
	CategoryStyle           Category = "style"
	CategoryMaintainability Category = "maintainability"
	CategoryTesting         Category = "testing"
)

// Finding is a single review finding.
type Finding struct {
	ID         string   `json:"id"`
	Severity   Severity `json:"severity"`
	Category   Category `json:"category"`
	Title      string   `json:"title"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
	Confidence float64  `json:"confidence"`
	Path       string   `json:"path"`
	StartLine  int      `json:"startLine"`
	EndLine    int      `json:"endLine"`
}

// Summary aggregates finding counts by severity.
type Summary struct {
	Low             int      `json:"low"`
	Medium          int      `json:"medium"`
	High            int      `json:"high"`
	HighestSeverity Severity `json:"highestSeverity,omitempty"`
}

// Report is the structured result of one review.
type Report struct {
	Source       string    `json:"source"`
	Model        string    `json:"model"`
	ChangedFiles []string  `json:"changedFiles"`
	Summary      Summary   `json:"summary"`
	Findings     []Finding `json:"findings"`
	Truncated    bool      `json:"truncated,omitempty"`
	Duration     string    `json:"duration"`
}

// ComputeSummary tallies findings by severity.
func ComputeSummary(findings []Finding) Summary {
	var s Summary
	for _, f := range findings {
		switch f.Severity {
		case SeverityLow:
			s.Low++
		case SeverityMedium:
			s.Medium++
		case SeverityHigh:
			s.High++
		}
		if f.Severity.Rank() > s.HighestSeverity.Rank() {
			s.HighestSeverity = f.Severity
		}
	}
	return s
}

// findingID derives a stable identifier so the same finding keeps the same
// id across runs.
func findingID(f Finding) string {
	h := sha256.Sum256(fmt.Appendf(nil, "%s:%s:%d", f.Path, f.Title, f.StartLine))
	return fmt.Sprintf("%x", h[:8])
}
