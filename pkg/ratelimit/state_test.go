package ratelimit

import (
	"testing"
	"time"
)

func TestCooldownState_Active(t *testing.T) {
	tests := []struct {
		name     string
		until    time.Time
		expected bool
	}{
		{name: "zero state", until: time.Time{}, expected: false},
		{name: "expired", until: time.Now().Add(-time.Second), expected: false},
		{name: "active", until: time.Now().Add(time.Minute), expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &CooldownState{ClientID: "1", Until: tt.until}
			if got := state.Active(); got != tt.expected {
				t.Errorf("Active() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCooldownState_Remaining(t *testing.T) {
	expired := &CooldownState{Until: time.Now().Add(-time.Minute)}
	if got := expired.Remaining(); got != 0 {
		t.Errorf("Remaining() = %v, want 0", got)
	}

	active := &CooldownState{Until: time.Now().Add(30 * time.Second)}
	if got := active.Remaining(); got <= 25*time.Second || got > 30*time.Second {
		t.Errorf("Remaining() = %v, want about 30s", got)
	}
}

func TestClampCooldown(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected time.Duration
	}{
		{0, DefaultCooldown},
		{-time.Second, DefaultCooldown},
		{3 * time.Second, 3 * time.Second},
		{10 * time.Minute, MaxCooldown},
	}

	for _, tt := range tests {
		if got := clampCooldown(tt.input); got != tt.expected {
			t.Errorf("clampCooldown(%v) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestCooldownKey(t *testing.T) {
	if got := cooldownKey("12345"); got != "crawler:rate_limit:cooldown:12345" {
		t.Errorf("cooldownKey() = %q", got)
	}
}
