/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package llm

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/chainguard-dev/clog"
)

// RetryConfig configures retry behavior for provider API calls, which is
// mostly about riding out rate limits and transient server errors.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts after the first
	// try. 0 disables retrying entirely.
	MaxRetries int
	// BaseBackoff is the initial backoff duration; each retry doubles it.
	BaseBackoff time.Duration
	// MaxBackoff caps the exponential growth.
	MaxBackoff time.Duration
	// MaxJitter is the maximum random jitter added to each backoff.
	MaxJitter time.Duration
	// Retryable classifies which errors are worth retrying. A nil
	// classifier retries everything.
	Retryable func(error) bool
}

// DefaultRetryConfig returns a retry configuration tuned for quota-style
// rate limits, which need longer recovery windows than typical transient
// errors.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  5,
		BaseBackoff: 1 * time.Second,
		MaxBackoff:  60 * time.Second,
		MaxJitter:   500 * time.Millisecond,
	}
}

// pause returns how long to sleep before the retry following attempt
// (0-based), jitter included.
func (c RetryConfig) pause(attempt int) time.Duration {
	d := min(c.BaseBackoff<<attempt, c.MaxBackoff)
	if c.MaxJitter > 0 {
		// Jitter desynchronizes retry storms across instances.
		d += rand.N(c.MaxJitter)
	}
	return d
}

func (c RetryConfig) retryable(err error) bool {
	return c.Retryable == nil || c.Retryable(err)
}

// RetryWithBackoff executes fn until it succeeds, returns an error the
// config classifies as permanent, or exhausts the retry budget.
func RetryWithBackoff[T any](ctx context.Context, cfg RetryConfig, operation string, fn func() (T, error)) (T, error) {
	log := clog.FromContext(ctx).With("operation", operation)

	attempt := 0
	for {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		if !cfg.retryable(err) {
			return result, err
		}
		if attempt >= cfg.MaxRetries {
			return result, fmt.Errorf("%s failed after %d retries: %w", operation, cfg.MaxRetries, err)
		}

		wait := cfg.pause(attempt)
		attempt++
		log.With("attempt", attempt).
			With("max_retries", cfg.MaxRetries).
			With("backoff", wait).
			With("error", err.Error()).
			Warn("Provider error, retrying")

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(wait):
		}
	}
}
