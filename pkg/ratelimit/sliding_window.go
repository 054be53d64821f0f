package ratelimit

import "time"

// slidingWindow counts requests in a per-key window anchored at the key's
// first request; the window resets once fully elapsed.
type slidingWindow struct {
	cfg Config
}

func (sw *slidingWindow) initEntry(e *entry, now time.Time) {
	e.windowStart = now
}

func (sw *slidingWindow) allow(e *entry, now time.Time) Decision {
	if now.Sub(e.windowStart) >= sw.cfg.WindowSize {
		e.windowStart = now
		e.count = 0
	}

	if e.count < sw.cfg.RequestsPerMinute {
		e.count++
		return Decision{Allowed: true, Remaining: sw.cfg.RequestsPerMinute - e.count}
	}

	retryAfter := e.windowStart.Add(sw.cfg.WindowSize).Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return Decision{Allowed: false, RetryAfter: retryAfter}
}
