/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package llm

import (
	"context"
	"fmt"
	"strings"
)

// Request is a single chat completion.
type Request struct {
	System    string
	User      string
	MaxTokens int64
}

// Response is the completion text plus token accounting.
type Response struct {
	Content      string
	InputTokens  int64
	OutputTokens int64
}

// Client is the chat-completion capability the review engine depends on.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Model() string
}

// Config selects and credentials a provider.
type Config struct {
	// Model determines the provider: claude-* models use Anthropic,
	// anything else uses the OpenAI-compatible client.
	Model string

	AnthropicAPIKey string
	OpenAIAPIKey    string
	// OpenAIBaseURL points the OpenAI-compatible client at a custom
	// endpoint (self-hosted or proxy). Empty means the public API.
	OpenAIBaseURL string

	Retry RetryConfig
}

// New creates a client for the configured model.
func New(cfg Config) (Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model must be set")
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.BaseBackoff == 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	if strings.HasPrefix(strings.ToLower(cfg.Model), "claude-") {
		return newAnthropicClient(cfg)
	}
	return newOpenAIClient(cfg)
}
