package client

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultMaxRetries is the number of retries after the initial attempt.
const DefaultMaxRetries = 3

// BaseDelay is the wait before the first retry; each further retry doubles it.
const BaseDelay = 1 * time.Second

// Prometheus metrics for retry operations.
var (
	drataRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "drata_retries_total",
		Help: "Total number of retry attempts after HTTP 429",
	})

	drataRetryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "drata_retry_backoff_seconds",
		Help:    "Backoff duration before a retry",
		Buckets: []float64{0.5, 1, 2, 4, 8, 16, 32},
	})

	drataRetryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "drata_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted",
	})
)

// Backoff returns the wait before retry attempt+1: 2^attempt * BaseDelay.
func Backoff(attempt int) time.Duration {
	return BaseDelay << attempt
}

// RequestWithRetry performs r and retries it while the API answers 429,
// waiting Backoff(attempt) between attempts. Any other error is returned
// immediately. When retries are exhausted the last 429 error is returned.
func (c *Client) RequestWithRetry(ctx context.Context, r Request, maxRetries int) (any, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}

	for attempt := 0; ; attempt++ {
		resp, err := c.Do(ctx, r)
		if err == nil {
			if attempt > 0 {
				c.logger.Info().
					Str("endpoint", r.Path).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return resp, nil
		}

		if !IsRateLimited(err) {
			return nil, err
		}

		if attempt >= maxRetries {
			drataRetryExhaustedTotal.Inc()
			c.logger.Warn().
				Str("endpoint", r.Path).
				Int("max_retries", maxRetries).
				Msg("Retry attempts exhausted")
			return nil, err
		}

		backoff := Backoff(attempt)
		drataRetriesTotal.Inc()
		drataRetryBackoffSeconds.Observe(backoff.Seconds())

		c.logger.Debug().
			Str("endpoint", r.Path).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Rate limited - retrying request after backoff")

		if err := c.sleep(ctx, backoff); err != nil {
			c.logger.Warn().
				Str("endpoint", r.Path).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return nil, err
		}
	}
}

// Retrying performs r with the configured MaxRetries.
func (c *Client) Retrying(ctx context.Context, r Request) (any, error) {
	return c.RequestWithRetry(ctx, r, c.config.MaxRetries)
}

// WithRetry returns a Requester that retries every request up to maxRetries times.
func (c *Client) WithRetry(maxRetries int) Requester {
	return RequesterFunc(func(ctx context.Context, r Request) (any, error) {
		return c.RequestWithRetry(ctx, r, maxRetries)
	})
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
	case <-timer.C:
		return nil
	}
}
