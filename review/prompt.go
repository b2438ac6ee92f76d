/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package review

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a senior code reviewer for merge requests.
Review the provided diff and report concrete, actionable findings.

Respond with ONLY a JSON array of finding objects, no prose. Each finding:
{
  "severity": "low" | "medium" | "high",
  "category": "bug" | "security" | "performance" | "style" | "maintainability" | "testing",
  "title": "short summary",
  "message": "what is wrong and why it matters",
  "suggestion": "how to fix it",
  "confidence": 0.0-1.0,
  "path": "file path from the diff",
  "startLine": first affected line in the new file,
  "endLine": last affected line in the new file
}

Only report findings you are confident about. An empty array is a valid
response for a clean diff.`

// buildUserPrompt assembles the review request: change metadata, repo
// guidelines, then the diff itself.
func buildUserPrompt(in Input, guidelines []string, maxFindings int) string {
	var sb strings.Builder

	if in.Title != "" {
		fmt.Fprintf(&sb, "Change title: %s\n", in.Title)
	}
	if in.Description != "" {
		fmt.Fprintf(&sb, "Change description:\n%s\n", in.Description)
	}
	if maxFindings > 0 {
		fmt.Fprintf(&sb, "Report at most %d findings, most severe first.\n", maxFindings)
	}
	if len(guidelines) > 0 {
		sb.WriteString("\nProject review guidelines:\n")
		for _, g := range guidelines {
			fmt.Fprintf(&sb, "- %s\n", g)
		}
	}

	sb.WriteString("\nDiff to review:\n```diff\n")
	sb.WriteString(in.Diff)
	sb.WriteString("\n```\n")
	return sb.String()
}

func repairPrompt(parseErr error, previous string) string {
	return fmt.Sprintf(
		"Your previous response was not a valid JSON array of findings. The error was: %s\n\nFix it and respond with ONLY the corrected JSON array.\n\nYour previous response was:\n%s",
		parseErr, previous)
}
