/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/javimosch/mr-pilot/dispatch"
	"github.com/javimosch/mr-pilot/output"
	"github.com/javimosch/mr-pilot/review"
	"github.com/javimosch/mr-pilot/scm"
)

// Deps carries the backends the tools operate on. A nil forge means that
// forge is not configured; tools targeting it fail with a clear error.
type Deps struct {
	GitLab scm.Forge
	GitHub scm.Forge
	Engine *review.Engine
}

type reviewParams struct {
	Project string `json:"project" jsonschema:"required" jsonschema_description:"Project path, e.g. owner/repo"`
	Number  int    `json:"number" jsonschema:"required" jsonschema_description:"MR IID or PR number"`
	Post    bool   `json:"post,omitempty" jsonschema_description:"Post the review as a comment on the change"`
}

type fetchDiffParams struct {
	Forge   string `json:"forge" jsonschema:"required,enum=gitlab,enum=github"`
	Project string `json:"project" jsonschema:"required"`
	Number  int    `json:"number" jsonschema:"required"`
}

type postCommentParams struct {
	Forge   string `json:"forge" jsonschema:"required,enum=gitlab,enum=github"`
	Project string `json:"project" jsonschema:"required"`
	Number  int    `json:"number" jsonschema:"required"`
	Body    string `json:"body" jsonschema:"required"`
}

// Register adds the review tool set to the dispatcher.
func Register(d *dispatch.Dispatcher, deps Deps) {
	d.RegisterTool(dispatch.Tool{
		Name:        "review_merge_request",
		Description: "Review a GitLab merge request and return structured findings.",
		InputSchema: dispatch.SchemaFor[reviewParams](),
		Handler:     deps.reviewHandler("gitlab"),
	})
	d.RegisterTool(dispatch.Tool{
		Name:        "review_pull_request",
		Description: "Review a GitHub pull request and return structured findings.",
		InputSchema: dispatch.SchemaFor[reviewParams](),
		Handler:     deps.reviewHandler("github"),
	})
	d.RegisterTool(dispatch.Tool{
		Name:        "fetch_diff",
		Description: "Fetch the metadata and unified diff of a merge or pull request.",
		InputSchema: dispatch.SchemaFor[fetchDiffParams](),
		Handler:     deps.handleFetchDiff,
	})
	d.RegisterTool(dispatch.Tool{
		Name:        "post_review_comment",
		Description: "Post a comment on a merge or pull request.",
		InputSchema: dispatch.SchemaFor[postCommentParams](),
		Handler:     deps.handlePostComment,
	})
}

func (d Deps) forge(name string) (scm.Forge, error) {
	switch name {
	case "gitlab":
		if d.GitLab == nil {
			return nil, fmt.Errorf("gitlab is not configured (set GITLAB_TOKEN)")
		}
		return d.GitLab, nil
	case "github":
		if d.GitHub == nil {
			return nil, fmt.Errorf("github is not configured (set GITHUB_TOKEN)")
		}
		return d.GitHub, nil
	default:
		return nil, fmt.Errorf("unknown forge %q", name)
	}
}

func (d Deps) reviewHandler(forgeName string) dispatch.Handler {
	return func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
		var params reviewParams
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
		forge, err := d.forge(forgeName)
		if err != nil {
			return nil, err
		}
		if d.Engine == nil {
			return nil, fmt.Errorf("review engine is not configured (set an LLM API key)")
		}

		ref := scm.ChangeRef{Project: params.Project, Number: params.Number}
		change, err := forge.FetchChange(ctx, ref)
		if err != nil {
			return nil, err
		}
		report, err := d.Engine.Review(ctx, review.Input{
			Source:      change.Source,
			Title:       change.Title,
			Description: change.Description,
			Diff:        change.Diff,
		})
		if err != nil {
			return nil, err
		}

		if params.Post {
			body, err := output.Markdown(report)
			if err != nil {
				return nil, err
			}
			if err := forge.PostComment(ctx, ref, body); err != nil {
				return nil, fmt.Errorf("posting review: %w", err)
			}
		}
		return json.Marshal(report)
	}
}

func (d Deps) handleFetchDiff(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var params fetchDiffParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	forge, err := d.forge(params.Forge)
	if err != nil {
		return nil, err
	}
	change, err := forge.FetchChange(ctx, scm.ChangeRef{Project: params.Project, Number: params.Number})
	if err != nil {
		return nil, err
	}
	return json.Marshal(change)
}

func (d Deps) handlePostComment(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var params postCommentParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if params.Body == "" {
		return nil, fmt.Errorf("body cannot be empty")
	}
	forge, err := d.forge(params.Forge)
	if err != nil {
		return nil, err
	}
	if err := forge.PostComment(ctx, scm.ChangeRef{Project: params.Project, Number: params.Number}, params.Body); err != nil {
		return nil, err
	}
	return json.RawMessage(`{"posted":true}`), nil
}
