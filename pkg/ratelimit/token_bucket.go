package ratelimit

import "time"

// tokenBucket refills each key's bucket continuously at
// RequestsPerMinute/WindowSize tokens per millisecond, capped at BurstLimit.
// A request consumes one token if available.
type tokenBucket struct {
	cfg Config
}

func (tb *tokenBucket) initEntry(e *entry, now time.Time) {
	e.tokens = float64(tb.cfg.BurstLimit)
	e.windowStart = now
}

func (tb *tokenBucket) allow(e *entry, now time.Time) Decision {
	refillPerMs := float64(tb.cfg.RequestsPerMinute) / float64(tb.cfg.WindowSize.Milliseconds())
	elapsedMs := float64(now.Sub(e.windowStart).Milliseconds())

	e.tokens += elapsedMs * refillPerMs
	if e.tokens > float64(tb.cfg.BurstLimit) {
		e.tokens = float64(tb.cfg.BurstLimit)
	}
	e.windowStart = now

	if e.tokens >= 1 {
		e.tokens--
		return Decision{Allowed: true, Remaining: int(e.tokens)}
	}

	// Time until one full token accumulates.
	retryAfter := time.Duration(float64(tb.cfg.WindowSize) / float64(tb.cfg.RequestsPerMinute))
	return Decision{Allowed: false, RetryAfter: retryAfter}
}
