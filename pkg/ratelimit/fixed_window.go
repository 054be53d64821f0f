package ratelimit

import "time"

// fixedWindow counts requests in windows aligned to multiples of WindowSize
// since the epoch. Simpler than a per-key anchor but allows bursts across a
// window boundary.
type fixedWindow struct {
	cfg Config
}

func (fw *fixedWindow) initEntry(e *entry, now time.Time) {
	e.windowStart = fw.windowFor(now)
}

func (fw *fixedWindow) allow(e *entry, now time.Time) Decision {
	window := fw.windowFor(now)
	if !window.Equal(e.windowStart) {
		e.windowStart = window
		e.count = 0
	}

	if e.count < fw.cfg.RequestsPerMinute {
		e.count++
		return Decision{Allowed: true, Remaining: fw.cfg.RequestsPerMinute - e.count}
	}

	retryAfter := window.Add(fw.cfg.WindowSize).Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return Decision{Allowed: false, RetryAfter: retryAfter}
}

// windowFor returns the epoch-aligned window start containing t
func (fw *fixedWindow) windowFor(t time.Time) time.Time {
	size := fw.cfg.WindowSize.Nanoseconds()
	return time.Unix(0, (t.UnixNano()/size)*size)
}
