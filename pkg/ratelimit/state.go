// Package ratelimit paces seller API requests per credential and shares
// throttling cooldowns between crawler processes through Redis.
//
// Each client ID gets its own token bucket. When the API answers 429 the
// client records a cooldown for that client ID; every request made with the
// same credential, from any process sharing the Redis instance, waits for the
// cooldown to expire before it is sent.
package ratelimit

import (
	"time"
)

// RedisKeyCooldownPrefix prefixes the per-client cooldown key. The key's TTL
// is the remaining cooldown.
const RedisKeyCooldownPrefix = "crawler:rate_limit:cooldown:"

// Defaults for request pacing.
const (
	// DefaultRequestsPerSecond is the sustained request rate per credential.
	DefaultRequestsPerSecond = 5.0

	// DefaultBurst is the number of requests allowed back to back.
	DefaultBurst = 5

	// DefaultCooldown applies after a 429 without a usable Retry-After header.
	DefaultCooldown = 10 * time.Second

	// MaxCooldown caps a cooldown taken from Retry-After.
	MaxCooldown = 2 * time.Minute
)

// CooldownState describes the throttling state of one credential.
type CooldownState struct {
	// ClientID is the credential the state belongs to.
	ClientID string `json:"client_id"`

	// Until is when requests may resume. Zero when no cooldown is active.
	Until time.Time `json:"until"`
}

// Active returns true while the cooldown has not expired.
func (s *CooldownState) Active() bool {
	return time.Now().Before(s.Until)
}

// Remaining returns the time left on the cooldown, or 0 if it has expired.
func (s *CooldownState) Remaining() time.Duration {
	d := time.Until(s.Until)
	if d < 0 {
		return 0
	}
	return d
}

func cooldownKey(clientID string) string {
	return RedisKeyCooldownPrefix + clientID
}

func clampCooldown(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return DefaultCooldown
	case d > MaxCooldown:
		return MaxCooldown
	default:
		return d
	}
}
