/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package localdiff

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/chainguard-dev/clog"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/javimosch/mr-pilot/scm"
)

// Range computes the unified diff between two revisions of the repository at
// path. head defaults to HEAD when empty. The title and description are taken
// from the head commit message, mirroring what the forge clients return.
func Range(ctx context.Context, path, base, head string) (*scm.Change, error) {
	if base == "" {
		return nil, fmt.Errorf("base revision cannot be empty")
	}
	if head == "" {
		head = "HEAD"
	}

	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening repo at %s: %w", path, err)
	}

	baseCommit, err := resolveCommit(repo, base)
	if err != nil {
		return nil, err
	}
	headCommit, err := resolveCommit(repo, head)
	if err != nil {
		return nil, err
	}

	patch, err := baseCommit.PatchContext(ctx, headCommit)
	if err != nil {
		return nil, fmt.Errorf("diffing %s..%s: %w", base, head, err)
	}
	diff := patch.String()

	title, description := splitMessage(headCommit.Message)

	clog.FromContext(ctx).With("base", baseCommit.Hash.String()).
		With("head", headCommit.Hash.String()).
		With("diff_bytes", len(diff)).Info("Computed local diff")

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &scm.Change{
		Source:      fmt.Sprintf("local:%s@%s..%s", filepath.Base(abs), short(baseCommit.Hash), short(headCommit.Hash)),
		Title:       title,
		Description: description,
		Diff:        diff,
	}, nil
}

func resolveCommit(repo *git.Repository, rev string) (*object.Commit, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("resolving revision %q: %w", rev, err)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("getting commit %s: %w", hash, err)
	}
	return commit, nil
}

func splitMessage(message string) (title, description string) {
	title, description, _ = strings.Cut(message, "\n")
	return strings.TrimSpace(title), strings.TrimSpace(description)
}

func short(h plumbing.Hash) string {
	return h.String()[:7]
}
