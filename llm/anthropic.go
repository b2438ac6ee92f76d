/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/chainguard-dev/clog"
)

type anthropicClient struct {
	client anthropic.Client
	model  string
	retry  RetryConfig
}

func newAnthropicClient(cfg Config) (*anthropicClient, error) {
	if cfg.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for model %q", cfg.Model)
	}
	retry := cfg.Retry
	retry.Retryable = isRetryableAnthropicError
	return &anthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey)),
		model:  cfg.Model,
		retry:  retry,
	}, nil
}

func (c *anthropicClient) Model() string { return c.model }

func (c *anthropicClient) Complete(ctx context.Context, req Request) (Response, error) {
	log := clog.FromContext(ctx)

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{{
			Role: anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{
				anthropic.NewTextBlock(req.User),
			},
		}},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := RetryWithBackoff(ctx, c.retry, "anthropic completion",
		func() (*anthropic.Message, error) {
			return c.client.Messages.New(ctx, params)
		})
	if err != nil {
		return Response{}, fmt.Errorf("anthropic completion: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	log.With("model", c.model).
		With("input_tokens", msg.Usage.InputTokens).
		With("output_tokens", msg.Usage.OutputTokens).
		Info("Completion finished")

	return Response{
		Content:      sb.String(),
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}, nil
}

// isRetryableAnthropicError accepts rate limit, overloaded, and transient
// server errors.
func isRetryableAnthropicError(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 503, 504, 529:
			return true
		}
	}
	return false
}
