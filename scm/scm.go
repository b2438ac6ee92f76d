/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package scm

import "context"

// ChangeRef identifies one merge/pull request.
type ChangeRef struct {
	// Project is the forge's project path: "owner/repo" on GitHub, the
	// full namespace path (or numeric id) on GitLab.
	Project string
	// Number is the PR number or MR IID.
	Number int
}

// Change is a fetched merge/pull request, ready for review.
type Change struct {
	// Source labels the change for reports, e.g. "github:owner/repo#7".
	Source      string `json:"source"`
	Title       string `json:"title"`
	Description string `json:"description"`
	// Diff is the unified diff of the whole change.
	Diff string `json:"diff"`
}

// Forge is the capability the review tools depend on.
type Forge interface {
	FetchChange(ctx context.Context, ref ChangeRef) (*Change, error)
	PostComment(ctx context.Context, ref ChangeRef, body string) error
}
