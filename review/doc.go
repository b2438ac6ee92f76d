/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package review turns a unified diff into structured findings.
//
// The pipeline is deliberately thin: parse the diff to learn which files
// changed, build a prompt, send it to the configured LLM client, and
// extract a JSON array of findings from the response (tolerating fenced
// code blocks, with one repair round-trip when the model returns invalid
// JSON).
package review
