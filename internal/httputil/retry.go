// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across stages.
package httputil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"
)

// RetryBaseDelay controls the base duration for exponential backoff.
// Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

const defaultMaxRetries = 5

// RetryPolicy bounds how long a single request is retried.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt (default 5).
	MaxRetries int

	// MaxElapsed bounds the total time spent including backoff waits.
	// Zero means no wall-clock bound beyond MaxRetries.
	MaxElapsed time.Duration

	// Logger receives one line per retry; nil uses slog.Default().
	Logger *slog.Logger
}

// retryableStatus reports whether a response status is transient.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// DoWithRetry executes an HTTP request and retries transient failures with
// exponential backoff: connection errors, HTTP 429, 502, 503 and 504. The
// delay starts at RetryBaseDelay and doubles each attempt.
//
// On each retryable response the body is drained and closed before
// sleeping. If the context is cancelled during a backoff wait the function
// returns ctx.Err(). After exhausting retries, or when the next wait would
// exceed MaxElapsed, the last retryable response is returned so the caller
// can inspect it; a persistent connection error is returned wrapped.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, policy RetryPolicy) (*http.Response, error) {
	maxRetries := policy.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	log := policy.Logger
	if log == nil {
		log = slog.Default()
	}
	start := time.Now()

	for attempt := 0; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		} else if !retryableStatus(resp.StatusCode) {
			return resp, nil
		}

		backoff := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
		exhausted := attempt >= maxRetries ||
			(policy.MaxElapsed > 0 && time.Since(start)+backoff > policy.MaxElapsed)
		if exhausted {
			if err != nil {
				return nil, fmt.Errorf("after %d attempts: %w", attempt+1, err)
			}
			return resp, nil
		}

		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			log.Debug("transient HTTP status, retrying", "url", req.URL.String(),
				"status", resp.StatusCode, "backoff", backoff, "attempt", attempt+1)
		} else {
			log.Debug("connection failed, retrying", "url", req.URL.String(),
				"error", err, "backoff", backoff, "attempt", attempt+1)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}
