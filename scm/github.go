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
	"github.com/google/go-github/v84/github"
	"golang.org/x/oauth2"
)

// GitHub reviews pull requests via the GitHub REST API.
type GitHub struct {
	client *github.Client
}

// NewGitHub creates a GitHub forge authenticated with a personal access
// token.
func NewGitHub(ctx context.Context, token string) *GitHub {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &GitHub{client: github.NewClient(oauth2.NewClient(ctx, ts))}
}

// NewGitHubFromClient wraps an existing client; used by tests and by
// callers with their own transport.
func NewGitHubFromClient(client *github.Client) *GitHub {
	return &GitHub{client: client}
}

func splitProject(project string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(project, "/")
	if !ok || owner == "" || repo == "" {
		return "", "", fmt.Errorf("project %q is not owner/repo", project)
	}
	return owner, repo, nil
}

// FetchChange fetches the PR metadata and its raw diff.
func (g *GitHub) FetchChange(ctx context.Context, ref ChangeRef) (*Change, error) {
	owner, repo, err := splitProject(ref.Project)
	if err != nil {
		return nil, err
	}

	pr, _, err := g.client.PullRequests.Get(ctx, owner, repo, ref.Number)
	if err != nil {
		return nil, fmt.Errorf("fetching PR %s#%d: %w", ref.Project, ref.Number, err)
	}
	diff, _, err := g.client.PullRequests.GetRaw(ctx, owner, repo, ref.Number, github.RawOptions{Type: github.Diff})
	if err != nil {
		return nil, fmt.Errorf("fetching PR diff %s#%d: %w", ref.Project, ref.Number, err)
	}

	clog.FromContext(ctx).With("pr", fmt.Sprintf("%s#%d", ref.Project, ref.Number)).
		With("diff_bytes", len(diff)).Info("Fetched pull request")

	return &Change{
		Source:      fmt.Sprintf("github:%s#%d", ref.Project, ref.Number),
		Title:       pr.GetTitle(),
		Description: pr.GetBody(),
		Diff:        diff,
	}, nil
}

// PostComment posts a review comment on the PR conversation.
func (g *GitHub) PostComment(ctx context.Context, ref ChangeRef, body string) error {
	owner, repo, err := splitProject(ref.Project)
	if err != nil {
		return err
	}
	_, _, err = g.client.Issues.CreateComment(ctx, owner, repo, ref.Number, &github.IssueComment{
		Body: github.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("posting comment on %s#%d: %w", ref.Project, ref.Number, err)
	}
	return nil
}
