/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package main is the mr-pilot binary: an LLM review tool for GitLab merge
// requests and GitHub pull requests, runnable standalone, as a dispatcher
// front-end, or as a slave worker behind a dispatcher.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chainguard-dev/clog"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/javimosch/mr-pilot/llm"
	"github.com/javimosch/mr-pilot/review"
	"github.com/javimosch/mr-pilot/scm"
	"github.com/javimosch/mr-pilot/tools"
)

type config struct {
	Port int `env:"PORT,default=8080"`

	MasterEnabled    bool     `env:"MASTER_ENABLED,default=false"`
	MasterSlaveCodes []string `env:"MASTER_SLAVE_CODES"`

	SlaveEnabled bool   `env:"SLAVE_ENABLED,default=false"`
	SlaveCode    string `env:"SLAVE_CODE"`
	MasterWSURL  string `env:"MASTER_WS_URL"`

	GitLabToken   string `env:"GITLAB_TOKEN"`
	GitLabBaseURL string `env:"GITLAB_BASE_URL"`
	GitHubToken   string `env:"GITHUB_TOKEN"`

	LLMModel        string `env:"LLM_MODEL,default=claude-sonnet-4-5"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `env:"OPENAI_BASE_URL"`
}

func loadConfig(ctx context.Context) (config, error) {
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return config{}, fmt.Errorf("processing config: %w", err)
	}
	return cfg, nil
}

// buildDeps assembles the tool backends from whatever credentials are
// configured. Missing credentials leave the corresponding backend nil;
// tools that need it fail with a clear error at call time.
func buildDeps(ctx context.Context, cfg config) (tools.Deps, error) {
	deps := tools.Deps{}

	if cfg.GitLabToken != "" {
		forge, err := scm.NewGitLab(cfg.GitLabToken, cfg.GitLabBaseURL)
		if err != nil {
			return tools.Deps{}, err
		}
		deps.GitLab = forge
	}
	if cfg.GitHubToken != "" {
		deps.GitHub = scm.NewGitHub(ctx, cfg.GitHubToken)
	}

	client, err := llm.New(llm.Config{
		Model:           cfg.LLMModel,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		OpenAIBaseURL:   cfg.OpenAIBaseURL,
	})
	if err != nil {
		clog.FromContext(ctx).With("error", err.Error()).
			Warn("No usable LLM client; review tools disabled")
	} else {
		deps.Engine = review.NewEngine(client, review.Options{})
	}
	return deps, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := &cobra.Command{
		Use:           "mr-pilot",
		Short:         "LLM code review for merge requests and pull requests",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand(), newReviewCommand(), newVersionCommand())

	if err := root.ExecuteContext(ctx); err != nil {
		clog.FatalContextf(ctx, "%v", err)
	}
}
