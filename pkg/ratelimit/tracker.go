package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for rate limit tracking.
var (
	drataRateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "drata_rate_limit_remaining",
		Help: "Requests remaining in the current Drata rate limit window",
	})

	drataRateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "drata_rate_limit_waits_total",
		Help: "Total number of requests delayed until the rate limit window reset",
	})

	drataRateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "drata_rate_limit_throttles_total",
		Help: "Total number of requests sent while the rate limit window was nearly spent",
	})
)

// Config holds the client-side gate configuration.
type Config struct {
	// RequestsPerSecond caps the outgoing request rate. 0 disables the local limiter.
	RequestsPerSecond float64

	// Burst is the limiter bucket size (defaults to 1 when a rate is set).
	Burst int

	// MaxResetWait bounds how long a request waits for an exhausted window to reset.
	// 0 disables the wait: the request goes out and the retry engine handles the 429.
	MaxResetWait time.Duration

	// Sleep waits for a window reset. Defaults to a timer honouring ctx.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultConfig returns a gate that only reacts to server headers.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 0,
		Burst:             1,
		MaxResetWait:      0,
	}
}

// Tracker monitors Drata rate limit headers and gates requests.
// It is safe for concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	state   *RateLimitState
	limiter *rate.Limiter
	config  Config
	logger  zerolog.Logger
}

// NewTracker creates a new rate limit tracker.
func NewTracker(cfg Config, logger zerolog.Logger) *Tracker {
	if cfg.Sleep == nil {
		cfg.Sleep = sleepTimer
	}
	t := &Tracker{
		config: cfg,
		logger: logger,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return t
}

// GetState returns a copy of the current state. Without observed headers it
// reports a healthy window.
func (t *Tracker) GetState() RateLimitState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.state == nil {
		return RateLimitState{
			Remaining:  RemainingThresholdHealthy * 2,
			ResetAt:    time.Now(),
			LastUpdate: time.Now(),
			IsHealthy:  true,
		}
	}
	return *t.state
}

// UpdateFromHeaders parses the rate limit headers of a response.
// Responses without X-RateLimit-Remaining leave the state untouched.
func (t *Tracker) UpdateFromHeaders(headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	now := time.Now()
	state := &RateLimitState{
		Remaining:  remain,
		ResetAt:    now,
		LastUpdate: now,
	}

	if limitStr := headers.Get(HeaderLimit); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderLimit, err)
		}
		state.Limit = limit
	}

	resetStr := headers.Get(HeaderReset)
	if resetStr == "" {
		resetStr = headers.Get(HeaderRetryAfter)
	}
	if resetStr != "" {
		reset, err := strconv.ParseInt(resetStr, 10, 64)
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderReset, err)
		}
		state.ResetAt = resetTime(now, reset)
	}
	state.UpdateHealth()

	t.mu.Lock()
	t.state = state
	t.mu.Unlock()

	drataRateLimitRemaining.Set(float64(remain))

	switch {
	case state.IsExhausted():
		t.logger.Warn().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Drata rate limit exhausted - requests will wait for reset")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("remaining", remain).
			Msg("Drata rate limit nearly exhausted")
	default:
		t.logger.Debug().
			Int("remaining", remain).
			Bool("is_healthy", state.IsHealthy).
			Msg("Drata rate limit state updated")
	}

	return nil
}

// Wait blocks until a request may be sent. It honours the local limiter and
// waits for an exhausted window to reset when the reset is within MaxResetWait.
// With MaxResetWait 0 an exhausted window never delays a request.
func (t *Tracker) Wait(ctx context.Context) error {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	state := t.GetState()
	if state.NeedsThrottling() {
		drataRateLimitThrottlesTotal.Inc()
	}
	if !state.IsExhausted() || t.config.MaxResetWait <= 0 {
		return nil
	}

	wait := state.TimeUntilReset()
	if wait > t.config.MaxResetWait {
		t.logger.Warn().
			Dur("reset_in", wait).
			Msg("Rate limit reset too far away - sending request without waiting")
		return nil
	}

	drataRateLimitWaitsTotal.Inc()
	t.logger.Warn().Dur("wait", wait).Msg("Waiting for rate limit window reset")

	return t.config.Sleep(ctx, wait)
}

func sleepTimer(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
