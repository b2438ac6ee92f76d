/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package llm provides chat-completion clients for the review engine.
//
// Providers are selected by model prefix: claude-* models use Anthropic's
// SDK, everything else goes through the OpenAI-compatible client (which
// also covers self-hosted endpoints via a custom base URL). Transient
// rate-limit and overload errors are retried with exponential backoff.
package llm
