package ratelimit

import (
	"testing"
	"time"
)

func TestRateLimitState_IsExhausted(t *testing.T) {
	tests := []struct {
		name     string
		state    RateLimitState
		expected bool
	}{
		{
			name:     "remaining and future reset",
			state:    RateLimitState{Remaining: 5, ResetAt: time.Now().Add(time.Minute)},
			expected: false,
		},
		{
			name:     "zero remaining and future reset",
			state:    RateLimitState{Remaining: 0, ResetAt: time.Now().Add(time.Minute)},
			expected: true,
		},
		{
			name:     "zero remaining but window reset",
			state:    RateLimitState{Remaining: 0, ResetAt: time.Now().Add(-time.Second)},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsExhausted(); got != tt.expected {
				t.Errorf("IsExhausted() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRateLimitState_NeedsThrottling(t *testing.T) {
	s := RateLimitState{Remaining: RemainingThresholdWarning - 1, ResetAt: time.Now().Add(time.Minute)}
	if !s.NeedsThrottling() {
		t.Error("expected throttling below warning threshold")
	}

	s.Remaining = RemainingThresholdWarning
	if s.NeedsThrottling() {
		t.Error("expected no throttling at warning threshold")
	}
}

func TestRateLimitState_UpdateHealth(t *testing.T) {
	s := RateLimitState{Remaining: RemainingThresholdHealthy}
	s.UpdateHealth()
	if !s.IsHealthy {
		t.Error("expected healthy at threshold")
	}

	s.Remaining = RemainingThresholdHealthy - 1
	s.UpdateHealth()
	if s.IsHealthy {
		t.Error("expected unhealthy below threshold")
	}
}

func TestRateLimitState_TimeUntilReset(t *testing.T) {
	s := RateLimitState{ResetAt: time.Now().Add(-time.Minute)}
	if got := s.TimeUntilReset(); got != 0 {
		t.Errorf("TimeUntilReset() = %v, want 0", got)
	}

	s.ResetAt = time.Now().Add(time.Minute)
	if got := s.TimeUntilReset(); got <= 50*time.Second {
		t.Errorf("TimeUntilReset() = %v, want about 1m", got)
	}
}

func TestResetTime(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	if got := resetTime(now, 30); !got.Equal(now.Add(30 * time.Second)) {
		t.Errorf("relative reset = %v, want now+30s", got)
	}
	if got := resetTime(now, 1_700_000_060); !got.Equal(time.Unix(1_700_000_060, 0)) {
		t.Errorf("epoch reset = %v, want unix 1700000060", got)
	}
}
