/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package scm

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGitLabTestForge(t *testing.T, handler http.Handler) *GitLab {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	forge, err := NewGitLab("test-token", srv.URL)
	require.NoError(t, err)
	return forge
}

func TestGitLabFetchChange(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/merge_requests/42/diffs"):
			json.NewEncoder(w).Encode([]map[string]any{
				{
					"old_path": "app/review.rb",
					"new_path": "app/review.rb",
					"diff":     "@@ -1 +1 @@\n-foo\n+bar\n",
				},
				{
					"old_path": "app/new.rb",
					"new_path": "app/new.rb",
					"new_file": true,
					"diff":     "@@ -0,0 +1 @@\n+hello\n",
				},
			})
		case strings.HasSuffix(r.URL.Path, "/merge_requests/42"):
			json.NewEncoder(w).Encode(map[string]any{
				"iid":         42,
				"title":       "Add hello",
				"description": "Adds a file.",
			})
		default:
			http.NotFound(w, r)
		}
	})
	forge := newGitLabTestForge(t, handler)

	change, err := forge.FetchChange(t.Context(), ChangeRef{Project: "group/proj", Number: 42})
	require.NoError(t, err)

	assert.Equal(t, "gitlab:group/proj!42", change.Source)
	assert.Equal(t, "Add hello", change.Title)
	assert.Equal(t, "Adds a file.", change.Description)
	for _, want := range []string{
		"diff --git a/app/review.rb b/app/review.rb",
		"--- a/app/review.rb",
		"--- /dev/null\n+++ b/app/new.rb",
		"+bar",
		"+hello",
	} {
		assert.Contains(t, change.Diff, want)
	}
}

func TestGitLabPostComment(t *testing.T) {
	var posted string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/merge_requests/42/notes") {
			var n struct {
				Body string `json:"body"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&n))
			posted = n.Body
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			io.WriteString(w, `{"id":1}`)
			return
		}
		http.NotFound(w, r)
	})
	forge := newGitLabTestForge(t, handler)

	err := forge.PostComment(t.Context(), ChangeRef{Project: "group/proj", Number: 42}, "review body")
	require.NoError(t, err)
	assert.Equal(t, "review body", posted)
}
