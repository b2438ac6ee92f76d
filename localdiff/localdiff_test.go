/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package localdiff

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// initTestRepo creates a repository with two commits touching main.go and
// returns the repo dir plus both commit hashes.
func initTestRepo(t *testing.T) (dir string, first, second plumbing.Hash) {
	t.Helper()
	dir = t.TempDir()

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}

	commit := func(content, message string) plumbing.Hash {
		if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte(content), 0o644); err != nil {
			t.Fatalf("writing file: %v", err)
		}
		if _, err := wt.Add("main.go"); err != nil {
			t.Fatalf("Add: %v", err)
		}
		hash, err := wt.Commit(message, &git.CommitOptions{
			Author: &object.Signature{
				Name:  "tester",
				Email: "tester@example.com",
				When:  time.Now(),
			},
		})
		if err != nil {
			t.Fatalf("Commit: %v", err)
		}
		return hash
	}

	first = commit("package main\n", "Initial commit")
	second = commit("package main\n\nfunc main() {}\n", "Add main\n\nEntry point stub.")
	return dir, first, second
}

func TestRangeProducesUnifiedDiff(t *testing.T) {
	dir, first, second := initTestRepo(t)

	change, err := Range(t.Context(), dir, first.String(), second.String())
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}

	if change.Title != "Add main" {
		t.Errorf("title = %q", change.Title)
	}
	if change.Description != "Entry point stub." {
		t.Errorf("description = %q", change.Description)
	}
	for _, want := range []string{"main.go", "+func main() {}"} {
		if !strings.Contains(change.Diff, want) {
			t.Errorf("diff missing %q:\n%s", want, change.Diff)
		}
	}
	if !strings.HasPrefix(change.Source, "local:") || !strings.Contains(change.Source, first.String()[:7]) {
		t.Errorf("source = %q", change.Source)
	}
}

func TestRangeDefaultsHeadToHEAD(t *testing.T) {
	dir, first, _ := initTestRepo(t)

	change, err := Range(t.Context(), dir, first.String(), "")
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	if !strings.Contains(change.Diff, "+func main() {}") {
		t.Errorf("diff missing second commit change:\n%s", change.Diff)
	}
}

func TestRangeRejectsUnknownRevision(t *testing.T) {
	dir, _, _ := initTestRepo(t)

	if _, err := Range(t.Context(), dir, "no-such-branch", ""); err == nil {
		t.Error("Range() error = nil, want resolve failure")
	}
	if _, err := Range(t.Context(), dir, "", ""); err == nil {
		t.Error("Range() error = nil, want empty base error")
	}
}
