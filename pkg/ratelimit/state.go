// Package ratelimit tracks the Drata API rate-limit headers and gates outgoing
// requests so a client slows down before the server starts answering 429.
package ratelimit

import (
	"time"
)

// Response headers carrying rate limit state.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// Thresholds for gating decisions, in requests remaining in the current window.
const (
	// RemainingThresholdWarning marks the window as nearly spent; requests are logged and counted as throttled.
	RemainingThresholdWarning = 10

	// RemainingThresholdHealthy indicates normal operation.
	RemainingThresholdHealthy = 50
)

// epochCutoff separates reset headers sent as unix seconds from ones sent as
// seconds-until-reset.
const epochCutoff = 1_000_000_000

// RateLimitState is the last rate limit window reported by the API.
type RateLimitState struct {
	// Limit is the window size from X-RateLimit-Limit (0 when not reported).
	Limit int `json:"limit"`

	// Remaining is the number of requests left in the window.
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when the headers were last observed.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= RemainingThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// IsExhausted returns true when no requests remain and the window has not reset yet.
func (s *RateLimitState) IsExhausted() bool {
	return s.Remaining <= 0 && time.Now().Before(s.ResetAt)
}

// NeedsThrottling returns true when the window is close to exhausted.
func (s *RateLimitState) NeedsThrottling() bool {
	return s.Remaining < RemainingThresholdWarning && !s.IsExhausted()
}

// TimeUntilReset returns the duration until the window resets, or 0 if it already has.
func (s *RateLimitState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates IsHealthy from Remaining.
func (s *RateLimitState) UpdateHealth() {
	s.IsHealthy = s.Remaining >= RemainingThresholdHealthy
}

// resetTime interprets a reset header value relative to now.
func resetTime(now time.Time, value int64) time.Time {
	if value >= epochCutoff {
		return time.Unix(value, 0)
	}
	return now.Add(time.Duration(value) * time.Second)
}
