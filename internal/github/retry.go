// Copyright 2025 SirSeer, LLC
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	harvesterrors "github.com/sirseerhq/sirseer-harvest/internal/errors"
	"github.com/sirseerhq/sirseer-harvest/internal/giterror"
	"github.com/sirseerhq/sirseer-harvest/internal/query"
)

// RetryConfig configures the retry behavior for API calls
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts
	MaxRetries int
	// InitialBackoff is the initial backoff duration
	InitialBackoff time.Duration
	// MaxBackoff is the maximum backoff duration
	MaxBackoff time.Duration
	// BackoffMultiplier is the multiplier for exponential backoff
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryTransport wraps a Transport with automatic retry logic for rate limits,
// gateway failures and transient network errors using exponential backoff.
// GraphQL queries are read-only, so repeating one is always safe.
type RetryTransport struct {
	next      Transport
	config    *RetryConfig
	inspector giterror.Inspector
	logger    *slog.Logger
}

// NewRetryTransport creates a new RetryTransport with the given configuration.
// A nil config selects DefaultRetryConfig and a nil logger slog.Default.
func NewRetryTransport(next Transport, config *RetryConfig, logger *slog.Logger) *RetryTransport {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryTransport{
		next:      next,
		config:    config,
		inspector: giterror.NewErrorChainInspector(giterror.NewInspector()),
		logger:    logger,
	}
}

// Execute implements Transport with retry logic.
func (r *RetryTransport) Execute(ctx context.Context, req query.Request) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		resp, err := r.next.Execute(ctx, req)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		// Don't retry on non-retryable errors
		if !r.inspector.IsRetryable(err) {
			return nil, err
		}

		// Don't retry if context is cancelled
		if ctx.Err() != nil {
			return nil, err
		}

		if attempt == r.config.MaxRetries {
			break
		}

		backoff := r.calculateBackoff(attempt, err)

		r.logger.Warn("Retrying request",
			"operation", req.OperationName,
			"request", req.Context.String(),
			"attempt", attempt+1,
			"max_retries", r.config.MaxRetries,
			"backoff", backoff,
			"rate_limited", r.inspector.IsRateLimitError(err),
			"error", err)

		// Wait with context cancellation support
		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w while waiting to retry %s: %w", ctx.Err(), req.OperationName, lastErr)
		}
	}

	return nil, fmt.Errorf("failed after %d retries: %w", r.config.MaxRetries, lastErr)
}

// calculateBackoff calculates the backoff duration for the given attempt. A
// server-provided Retry-After wins when it is longer, up to MaxBackoff.
func (r *RetryTransport) calculateBackoff(attempt int, err error) time.Duration {
	// Calculate exponential backoff
	backoff := float64(r.config.InitialBackoff) * math.Pow(r.config.BackoffMultiplier, float64(attempt))

	// Apply max backoff limit
	if backoff > float64(r.config.MaxBackoff) {
		backoff = float64(r.config.MaxBackoff)
	}

	// Add jitter (±10%) to prevent thundering herd
	jitter := backoff * 0.1 * (2*rand.Float64() - 1)
	backoff += jitter

	var te *harvesterrors.TransportError
	if errors.As(err, &te) && te.RetryAfter > 0 {
		backoff = math.Max(backoff, float64(te.RetryAfter))
		if backoff > float64(r.config.MaxBackoff) {
			backoff = float64(r.config.MaxBackoff)
		}
	}

	return time.Duration(backoff)
}
