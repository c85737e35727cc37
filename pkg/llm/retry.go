// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	lerrors "github.com/kraklabs/lattice/internal/errors"
)

// RetryConfig governs ChatWithRetry's back-off when a provider reports a
// rate limit. The summarizer, link finder, and drift detector each used to
// define their own near-identical copy of this type and its retry loop;
// it now lives once, here, since it's a property of talking to an LLM
// provider, not of any one caller's domain logic.
type RetryConfig struct {
	MaxRetries int
	MaxBackoff time.Duration
}

// DefaultRetryConfig matches the back-off the donor's summarizer and drift
// detector converged on independently: five attempts (the first call plus
// four retries), capped at a minute.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 4, MaxBackoff: 60 * time.Second}
}

// computeBackoff returns an exponential delay for the given zero-indexed
// retry attempt, capped at cfg.MaxBackoff, plus a random jitter of up to
// a fifth of the capped delay.
func computeBackoff(cfg RetryConfig, attempt int) time.Duration {
	seconds := math.Pow(2, float64(attempt))*2 + 5
	d := time.Duration(seconds * float64(time.Second))
	if d > cfg.MaxBackoff {
		d = cfg.MaxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(d)/5 + 1))
	return d + jitter
}

// ChatWithRetry calls provider.Chat, retrying on a rate-limit response with
// exponential back-off up to cfg.MaxRetries times. Any other error returns
// immediately — retrying a malformed request or an unreachable host is
// never productive. Callers that want a degraded-but-non-fatal outcome on
// permanent failure (an empty summary, a skipped drift pair) inspect the
// returned error themselves; ChatWithRetry only owns the rate-limit loop.
func ChatWithRetry(ctx context.Context, provider Provider, req ChatRequest, cfg RetryConfig, logger *slog.Logger) (*ChatResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		resp, err := provider.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !lerrors.IsRateLimit(err) {
			return nil, err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		backoff := computeBackoff(cfg, attempt)
		if logger != nil {
			logger.Warn("llm.retry.backoff",
				"provider", provider.Name(),
				"attempt", attempt+1,
				"max_retries", cfg.MaxRetries,
				"backoff", backoff,
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, lastErr
}
