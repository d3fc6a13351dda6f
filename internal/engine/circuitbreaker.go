package engine

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Circuit breaker states
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half-open"
)

const (
	defaultFailureThreshold = 5
	defaultCooldown         = 30 * time.Second

	// probeTTL releases a half-open probe slot whose outcome was never
	// recorded, e.g. because the caller's context ended mid-call.
	probeTTL = 10 * time.Second
)

// CircuitBreaker tracks the health of each time source instance in Redis so
// every replica of the recorder shares the same view.
// State transitions: closed → open → half-open → closed
//
// - Closed: calls go through, failures are counted.
// - Open: the instance is skipped until the cooldown has elapsed.
// - Half-Open: one probe call is let through at a time, gated by a Redis
//   SETNX key. Success → closed, failure → open.
type CircuitBreaker struct {
	redisClient      *redis.Client
	logger           *slog.Logger
	failureThreshold int
	cooldownPeriod   time.Duration
	now              func() time.Time
}

// CircuitBreakerState is the breaker view of one instance, as reported by the
// health endpoint.
type CircuitBreakerState struct {
	Instance     string `json:"instance"`
	State        string `json:"state"`
	Failures     int    `json:"failures"`
	LastFailedAt string `json:"last_failed_at,omitempty"`
}

func NewCircuitBreaker(redisClient *redis.Client, logger *slog.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		redisClient:      redisClient,
		logger:           logger,
		failureThreshold: defaultFailureThreshold,
		cooldownPeriod:   defaultCooldown,
		now:              time.Now,
	}
}

// WithThreshold sets how many consecutive failures open the circuit.
func (cb *CircuitBreaker) WithThreshold(n int) *CircuitBreaker {
	cb.failureThreshold = n
	return cb
}

// WithCooldown sets how long an open circuit waits before a half-open probe.
func (cb *CircuitBreaker) WithCooldown(d time.Duration) *CircuitBreaker {
	cb.cooldownPeriod = d
	return cb
}

func cbKey(instance string) string {
	return "cb:timesource:" + instance
}

func probeKey(instance string) string {
	return "cb:timesource:probe:" + instance
}

func (cb *CircuitBreaker) cooledDown(lastFailedAt int64) bool {
	return cb.now().Unix()-lastFailedAt >= int64(cb.cooldownPeriod.Seconds())
}

// AllowRequest reports whether a call to this instance may proceed, along with
// the state the decision was made in. Redis errors fail open.
func (cb *CircuitBreaker) AllowRequest(ctx context.Context, instance string) (string, bool) {
	key := cbKey(instance)

	data, err := cb.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		cb.logger.Error("circuit breaker lookup failed", "instance", instance, "error", err)
		return StateClosed, true
	}
	if len(data) == 0 {
		return StateClosed, true
	}

	switch data["state"] {
	case StateOpen:
		lastFailedAt, _ := strconv.ParseInt(data["last_failed_at"], 10, 64)
		if !cb.cooledDown(lastFailedAt) {
			return StateOpen, false
		}
		if !cb.claimProbe(ctx, instance) {
			return StateHalfOpen, false
		}
		cb.redisClient.HSet(ctx, key, "state", StateHalfOpen)
		cb.logger.Info("circuit breaker half-open", "instance", instance)
		return StateHalfOpen, true

	case StateHalfOpen:
		return StateHalfOpen, cb.claimProbe(ctx, instance)

	default:
		return StateClosed, true
	}
}

// claimProbe takes the single half-open probe slot for instance. Only one
// caller wins until the outcome is recorded or probeTTL passes.
func (cb *CircuitBreaker) claimProbe(ctx context.Context, instance string) bool {
	ok, err := cb.redisClient.SetNX(ctx, probeKey(instance), cb.now().Unix(), probeTTL).Result()
	if err != nil {
		cb.logger.Error("circuit breaker probe claim failed", "instance", instance, "error", err)
		return true
	}
	return ok
}

func (cb *CircuitBreaker) releaseProbe(ctx context.Context, instance string) {
	cb.redisClient.Del(ctx, probeKey(instance))
}

// RecordSuccess closes the circuit and clears the failure count.
func (cb *CircuitBreaker) RecordSuccess(ctx context.Context, instance string) {
	key := cbKey(instance)
	defer cb.releaseProbe(ctx, instance)

	prev, _ := cb.redisClient.HGet(ctx, key, "state").Result()

	if err := cb.redisClient.HSet(ctx, key, "state", StateClosed, "failures", 0).Err(); err != nil {
		cb.logger.Error("failed to record circuit breaker success", "instance", instance, "error", err)
		return
	}

	if prev == StateHalfOpen || prev == StateOpen {
		cb.logger.Info("circuit breaker closed (recovered)", "instance", instance)
	}
}

// RecordFailure counts a failed call and opens the circuit once the threshold
// is reached, or immediately when the failed call was a half-open probe.
func (cb *CircuitBreaker) RecordFailure(ctx context.Context, instance string) {
	key := cbKey(instance)
	defer cb.releaseProbe(ctx, instance)

	failures, err := cb.redisClient.HIncrBy(ctx, key, "failures", 1).Result()
	if err != nil {
		cb.logger.Error("failed to record circuit breaker failure", "instance", instance, "error", err)
		return
	}

	cb.redisClient.HSet(ctx, key, "last_failed_at", cb.now().Unix())

	state, _ := cb.redisClient.HGet(ctx, key, "state").Result()

	switch {
	case state == StateHalfOpen:
		cb.redisClient.HSet(ctx, key, "state", StateOpen)
		cb.logger.Warn("circuit breaker re-opened (half-open probe failed)", "instance", instance)
	case state != StateOpen && failures >= int64(cb.failureThreshold):
		cb.redisClient.HSet(ctx, key, "state", StateOpen)
		cb.logger.Warn("circuit breaker opened",
			"instance", instance,
			"failures", failures,
			"threshold", cb.failureThreshold,
		)
	case state == "":
		cb.redisClient.HSet(ctx, key, "state", StateClosed)
	}
}

// GetState returns the breaker state for an instance without changing it. An
// open circuit whose cooldown has elapsed is reported as half-open.
func (cb *CircuitBreaker) GetState(ctx context.Context, instance string) CircuitBreakerState {
	result := CircuitBreakerState{Instance: instance, State: StateClosed}

	data, err := cb.redisClient.HGetAll(ctx, cbKey(instance)).Result()
	if err != nil || len(data) == 0 {
		return result
	}

	result.Failures, _ = strconv.Atoi(data["failures"])
	if s := data["state"]; s != "" {
		result.State = s
	}

	lastFailed, _ := strconv.ParseInt(data["last_failed_at"], 10, 64)
	if result.State == StateOpen && cb.cooledDown(lastFailed) {
		result.State = StateHalfOpen
	}
	if lastFailed > 0 {
		result.LastFailedAt = time.Unix(lastFailed, 0).UTC().Format(time.RFC3339)
	}

	return result
}
