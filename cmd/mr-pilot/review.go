/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"

	"github.com/javimosch/mr-pilot/llm"
	"github.com/javimosch/mr-pilot/localdiff"
	"github.com/javimosch/mr-pilot/output"
	"github.com/javimosch/mr-pilot/review"
	"github.com/javimosch/mr-pilot/scm"
)

func newReviewCommand() *cobra.Command {
	var (
		forgeName string
		project   string
		number    int
		local     bool
		repoPath  string
		baseRev   string
		headRev   string
		format    string
		post      bool
	)

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review one merge request, pull request or local commit range",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			client, err := llm.New(llm.Config{
				Model:           cfg.LLMModel,
				AnthropicAPIKey: cfg.AnthropicAPIKey,
				OpenAIAPIKey:    cfg.OpenAIAPIKey,
				OpenAIBaseURL:   cfg.OpenAIBaseURL,
			})
			if err != nil {
				return err
			}

			var (
				change *scm.Change
				forge  scm.Forge
				ref    scm.ChangeRef
			)
			switch {
			case local:
				if baseRev == "" {
					return errors.New("--local requires --base")
				}
				change, err = localdiff.Range(ctx, repoPath, baseRev, headRev)
			case forgeName == "gitlab":
				if cfg.GitLabToken == "" {
					return errors.New("reviewing a merge request requires GITLAB_TOKEN")
				}
				forge, err = scm.NewGitLab(cfg.GitLabToken, cfg.GitLabBaseURL)
				if err != nil {
					return err
				}
				ref = scm.ChangeRef{Project: project, Number: number}
				change, err = forge.FetchChange(ctx, ref)
			case forgeName == "github":
				if cfg.GitHubToken == "" {
					return errors.New("reviewing a pull request requires GITHUB_TOKEN")
				}
				forge = scm.NewGitHub(ctx, cfg.GitHubToken)
				ref = scm.ChangeRef{Project: project, Number: number}
				change, err = forge.FetchChange(ctx, ref)
			default:
				return fmt.Errorf("unknown forge %q (want gitlab or github)", forgeName)
			}
			if err != nil {
				return err
			}

			// Per-repo guidelines apply to local reviews, where the
			// config file is at hand.
			opts := review.Options{}
			if local {
				repoCfg, err := review.LoadRepoConfig(filepath.Join(repoPath, review.RepoConfigFile))
				if err != nil {
					return err
				}
				opts.Guidelines = repoCfg.Guidelines
				opts.MaxFindings = repoCfg.MaxFindings
			}

			engine := review.NewEngine(client, opts)
			report, err := engine.Review(ctx, review.Input{
				Source:      change.Source,
				Title:       change.Title,
				Description: change.Description,
				Diff:        change.Diff,
			})
			if err != nil {
				return err
			}

			if err := output.Render(os.Stdout, output.Format(format), report); err != nil {
				return err
			}

			if post {
				if forge == nil {
					return errors.New("--post needs a forge-backed review")
				}
				body, err := output.Markdown(report)
				if err != nil {
					return err
				}
				if err := forge.PostComment(ctx, ref, body); err != nil {
					return err
				}
				clog.FromContext(ctx).With("source", change.Source).Info("Posted review comment")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&forgeName, "forge", "gitlab", "forge to review against (gitlab or github)")
	cmd.Flags().StringVar(&project, "project", "", "project path, e.g. group/proj or owner/repo")
	cmd.Flags().IntVar(&number, "number", 0, "MR IID or PR number")
	cmd.Flags().BoolVar(&local, "local", false, "review a local commit range instead of a forge change")
	cmd.Flags().StringVar(&repoPath, "repo", ".", "local repository path (with --local)")
	cmd.Flags().StringVar(&baseRev, "base", "", "base revision (with --local)")
	cmd.Flags().StringVar(&headRev, "head", "", "head revision, defaults to HEAD (with --local)")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, markdown or json")
	cmd.Flags().BoolVar(&post, "post", false, "post the review as a comment on the change")
	return cmd
}
