package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for rate limit tracking.
var (
	cooldownsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seller_api_cooldowns_total",
		Help: "Total number of cooldowns recorded after throttling responses",
	}, []string{"client_id"})

	cooldownWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "seller_api_cooldown_wait_seconds",
		Help:    "Time requests spent waiting for an active cooldown",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
	})

	limiterWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "seller_api_limiter_wait_seconds",
		Help:    "Time requests spent waiting for a pacing token",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)

// Tracker paces requests per credential.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger

	limit rate.Limit
	burst int

	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	cooldowns map[string]time.Time
}

// NewTracker creates a tracker allowing requestsPerSecond per client ID.
// redisClient may be nil, in which case cooldowns stay local to this process.
func NewTracker(redisClient *redis.Client, requestsPerSecond float64, burst int, logger zerolog.Logger) *Tracker {
	if requestsPerSecond <= 0 {
		requestsPerSecond = DefaultRequestsPerSecond
	}
	if burst <= 0 {
		burst = DefaultBurst
	}

	return &Tracker{
		redis:     redisClient,
		logger:    logger,
		limit:     rate.Limit(requestsPerSecond),
		burst:     burst,
		limiters:  make(map[string]*rate.Limiter),
		cooldowns: make(map[string]time.Time),
	}
}

func (t *Tracker) limiter(clientID string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.limiters[clientID]
	if !ok {
		l = rate.NewLimiter(t.limit, t.burst)
		t.limiters[clientID] = l
	}
	return l
}

// GetState returns the cooldown state of clientID.
func (t *Tracker) GetState(ctx context.Context, clientID string) (*CooldownState, error) {
	state := &CooldownState{ClientID: clientID}

	t.mu.Lock()
	state.Until = t.cooldowns[clientID]
	t.mu.Unlock()

	if t.redis == nil {
		return state, nil
	}

	ttl, err := t.redis.PTTL(ctx, cooldownKey(clientID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get cooldown ttl: %w", err)
	}
	// Negative TTL means the key is missing or has no expiry.
	if ttl > 0 {
		if until := time.Now().Add(ttl); until.After(state.Until) {
			state.Until = until
		}
	}

	return state, nil
}

// Cooldown pauses clientID for d (clamped to [DefaultCooldown, MaxCooldown]
// when d is not positive or too large). A longer active cooldown is kept.
func (t *Tracker) Cooldown(ctx context.Context, clientID string, d time.Duration) error {
	d = clampCooldown(d)
	until := time.Now().Add(d)

	t.mu.Lock()
	if until.After(t.cooldowns[clientID]) {
		t.cooldowns[clientID] = until
	}
	t.mu.Unlock()

	cooldownsTotal.WithLabelValues(clientID).Inc()
	t.logger.Warn().
		Str("client_id", clientID).
		Dur("cooldown", d).
		Msg("Seller API throttled, cooling down credential")

	if t.redis == nil {
		return nil
	}

	key := cooldownKey(clientID)
	ttl, err := t.redis.PTTL(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("get cooldown ttl: %w", err)
	}
	if ttl >= d {
		return nil
	}
	if err := t.redis.Set(ctx, key, until.UnixMilli(), d).Err(); err != nil {
		return fmt.Errorf("store cooldown in redis: %w", err)
	}

	return nil
}

// Wait blocks until a request with clientID may be sent: first until any
// cooldown has expired, then for a pacing token. It returns early with the
// context error if ctx is done.
func (t *Tracker) Wait(ctx context.Context, clientID string) error {
	state, err := t.GetState(ctx, clientID)
	if err != nil {
		// Redis trouble must not stop the crawl; fall back to local pacing.
		t.logger.Warn().Err(err).Str("client_id", clientID).Msg("Cooldown lookup failed")
		state = &CooldownState{ClientID: clientID}
	}

	if state.Active() {
		wait := state.Remaining()
		t.logger.Debug().
			Str("client_id", clientID).
			Dur("wait", wait).
			Msg("Waiting for cooldown")

		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		cooldownWaitSeconds.Observe(wait.Seconds())
	}

	start := time.Now()
	if err := t.limiter(clientID).Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limiter: %w", err)
	}
	limiterWaitSeconds.Observe(time.Since(start).Seconds())

	return nil
}
