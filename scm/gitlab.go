/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package scm

import (
	"context"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// GitLab reviews merge requests via the GitLab REST API.
type GitLab struct {
	client *gitlab.Client
}

// NewGitLab creates a GitLab forge. baseURL is the instance URL
// (e.g. https://gitlab.example.com); empty means gitlab.com.
func NewGitLab(token, baseURL string) (*GitLab, error) {
	opts := []gitlab.ClientOptionFunc{}
	if baseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(baseURL))
	}
	client, err := gitlab.NewClient(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}
	return &GitLab{client: client}, nil
}

// NewGitLabFromClient wraps an existing client; used by tests.
func NewGitLabFromClient(client *gitlab.Client) *GitLab {
	return &GitLab{client: client}
}

// FetchChange fetches the MR metadata and stitches its per-file diffs into
// one unified diff.
func (g *GitLab) FetchChange(ctx context.Context, ref ChangeRef) (*Change, error) {
	mr, _, err := g.client.MergeRequests.GetMergeRequest(ref.Project, ref.Number, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetching MR %s!%d: %w", ref.Project, ref.Number, err)
	}

	var sb strings.Builder
	opt := &gitlab.ListMergeRequestDiffsOptions{
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}
	for {
		diffs, resp, err := g.client.MergeRequests.ListMergeRequestDiffs(ref.Project, ref.Number, opt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("fetching MR diffs %s!%d: %w", ref.Project, ref.Number, err)
		}
		for _, d := range diffs {
			writeFileDiff(&sb, d)
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}

	clog.FromContext(ctx).With("mr", fmt.Sprintf("%s!%d", ref.Project, ref.Number)).
		With("diff_bytes", sb.Len()).Info("Fetched merge request")

	return &Change{
		Source:      fmt.Sprintf("gitlab:%s!%d", ref.Project, ref.Number),
		Title:       mr.Title,
		Description: mr.Description,
		Diff:        sb.String(),
	}, nil
}

// writeFileDiff reconstructs the unified-diff header GitLab strips from its
// per-file diff payloads.
func writeFileDiff(sb *strings.Builder, d *gitlab.MergeRequestDiff) {
	oldPath, newPath := d.OldPath, d.NewPath
	fmt.Fprintf(sb, "diff --git a/%s b/%s\n", oldPath, newPath)
	switch {
	case d.NewFile:
		fmt.Fprintf(sb, "--- /dev/null\n+++ b/%s\n", newPath)
	case d.DeletedFile:
		fmt.Fprintf(sb, "--- a/%s\n+++ /dev/null\n", oldPath)
	default:
		fmt.Fprintf(sb, "--- a/%s\n+++ b/%s\n", oldPath, newPath)
	}
	sb.WriteString(d.Diff)
	if !strings.HasSuffix(d.Diff, "\n") {
		sb.WriteString("\n")
	}
}

// PostComment posts the review as an MR note.
func (g *GitLab) PostComment(ctx context.Context, ref ChangeRef, body string) error {
	_, _, err := g.client.Notes.CreateMergeRequestNote(ref.Project, ref.Number, &gitlab.CreateMergeRequestNoteOptions{
		Body: gitlab.Ptr(body),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("posting note on %s!%d: %w", ref.Project, ref.Number, err)
	}
	return nil
}
