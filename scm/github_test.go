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
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-github/v84/github"
)

const ghDiff = `diff --git a/main.go b/main.go
--- a/main.go
+++ b/main.go
@@ -1 +1 @@
-old
+new
`

func newGitHubTestForge(t *testing.T, handler http.Handler) *GitHub {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := github.NewClient(nil)
	base, err := url.Parse(srv.URL + "/")
	if err != nil {
		t.Fatalf("parsing test server URL: %v", err)
	}
	client.BaseURL = base
	return NewGitHubFromClient(client)
}

func TestGitHubFetchChange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/widgets/pulls/7", func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.Header.Get("Accept"), "diff") {
			w.Header().Set("Content-Type", "application/vnd.github.v3.diff")
			io.WriteString(w, ghDiff)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"number": 7,
			"title":  "Replace old with new",
			"body":   "Routine swap.",
		})
	})
	forge := newGitHubTestForge(t, mux)

	change, err := forge.FetchChange(t.Context(), ChangeRef{Project: "acme/widgets", Number: 7})
	if err != nil {
		t.Fatalf("FetchChange() error = %v", err)
	}
	if change.Source != "github:acme/widgets#7" {
		t.Errorf("source = %q", change.Source)
	}
	if change.Title != "Replace old with new" || change.Description != "Routine swap." {
		t.Errorf("metadata = %q / %q", change.Title, change.Description)
	}
	if change.Diff != ghDiff {
		t.Errorf("diff = %q, want the raw diff verbatim", change.Diff)
	}
}

func TestGitHubPostComment(t *testing.T) {
	var posted string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/acme/widgets/issues/7/comments", func(w http.ResponseWriter, r *http.Request) {
		var c struct {
			Body string `json:"body"`
		}
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			t.Errorf("decoding comment: %v", err)
		}
		posted = c.Body
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":1}`)
	})
	forge := newGitHubTestForge(t, mux)

	if err := forge.PostComment(t.Context(), ChangeRef{Project: "acme/widgets", Number: 7}, "## Review\nlooks fine"); err != nil {
		t.Fatalf("PostComment() error = %v", err)
	}
	if posted != "## Review\nlooks fine" {
		t.Errorf("posted body = %q", posted)
	}
}

func TestGitHubRejectsBadProject(t *testing.T) {
	forge := NewGitHubFromClient(github.NewClient(nil))
	if _, err := forge.FetchChange(t.Context(), ChangeRef{Project: "notaslug", Number: 1}); err == nil {
		t.Error("FetchChange() error = nil, want bad project error")
	}
}
