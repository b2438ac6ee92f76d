/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/chainguard-dev/clog"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type openAIClient struct {
	client openai.Client
	model  string
	retry  RetryConfig
}

func newOpenAIClient(cfg Config) (*openAIClient, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required for model %q", cfg.Model)
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.OpenAIAPIKey)}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAIBaseURL))
	}
	retry := cfg.Retry
	retry.Retryable = isRetryableOpenAIError
	return &openAIClient{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		retry:  retry,
	}, nil
}

func (c *openAIClient) Model() string { return c.model }

func (c *openAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	log := clog.FromContext(ctx)

	messages := []openai.ChatCompletionMessageParamUnion{}
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.User))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(req.MaxTokens)
	}

	completion, err := RetryWithBackoff(ctx, c.retry, "openai completion",
		func() (*openai.ChatCompletion, error) {
			return c.client.Chat.Completions.New(ctx, params)
		})
	if err != nil {
		return Response{}, fmt.Errorf("openai completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return Response{}, fmt.Errorf("openai completion returned no choices")
	}

	log.With("model", c.model).
		With("input_tokens", completion.Usage.PromptTokens).
		With("output_tokens", completion.Usage.CompletionTokens).
		Info("Completion finished")

	return Response{
		Content:      completion.Choices[0].Message.Content,
		InputTokens:  completion.Usage.PromptTokens,
		OutputTokens: completion.Usage.CompletionTokens,
	}, nil
}

// isRetryableOpenAIError accepts rate limit and transient server errors.
func isRetryableOpenAIError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
	}
	return false
}
