// Package ratelimit admits or rejects requests per key under a configured
// ceiling, using one of three interchangeable algorithms. Entries are swept
// in the background so memory stays bounded regardless of key cardinality.
package ratelimit

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fariz/warden/pkg/errkit"
)

// Supported algorithms
const (
	AlgorithmTokenBucket   = "token_bucket"
	AlgorithmSlidingWindow = "sliding_window"
	AlgorithmFixedWindow   = "fixed_window"
)

// Config controls limiter behavior
type Config struct {
	Algorithm         string        `json:"algorithm" mapstructure:"algorithm"`
	RequestsPerMinute int           `json:"requests_per_minute" mapstructure:"requests_per_minute"`
	BurstLimit        int           `json:"burst_limit" mapstructure:"burst_limit"`
	WindowSize        time.Duration `json:"window_size" mapstructure:"window_size"`
}

// DefaultConfig returns a sliding-window limiter at 60 rpm over one minute
func DefaultConfig() Config {
	return Config{
		Algorithm:         AlgorithmSlidingWindow,
		RequestsPerMinute: 60,
		BurstLimit:        10,
		WindowSize:        time.Minute,
	}
}

// Decision is the outcome of an admission check
type Decision struct {
	Allowed    bool          `json:"allowed"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Remaining  int           `json:"remaining"`
}

// entry holds per-key limiter state
type entry struct {
	count       int
	tokens      float64
	windowStart time.Time
	lastRequest time.Time
}

// algorithm decides admission for one entry at one instant
type algorithm interface {
	allow(e *entry, now time.Time) Decision
	initEntry(e *entry, now time.Time)
}

// Limiter tracks per-key request counters under a single selected algorithm
type Limiter struct {
	cfg     Config
	algo    algorithm
	mu      sync.Mutex
	entries map[string]*entry
	stop    chan struct{}
	stopped bool
}

// New creates a limiter and starts its background sweep. Invalid
// configuration is rejected as a configuration error.
func New(cfg Config) (*Limiter, error) {
	if cfg.RequestsPerMinute <= 0 {
		return nil, errkit.New(errkit.KindConfiguration, "requests per minute must be positive")
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = time.Minute
	}
	if cfg.BurstLimit <= 0 {
		cfg.BurstLimit = cfg.RequestsPerMinute
	}

	var algo algorithm
	switch cfg.Algorithm {
	case AlgorithmTokenBucket:
		algo = &tokenBucket{cfg: cfg}
	case AlgorithmSlidingWindow, "":
		algo = &slidingWindow{cfg: cfg}
	case AlgorithmFixedWindow:
		algo = &fixedWindow{cfg: cfg}
	default:
		return nil, errkit.Newf(errkit.KindConfiguration, "unknown rate limit algorithm: %s", cfg.Algorithm)
	}

	l := &Limiter{
		cfg:     cfg,
		algo:    algo,
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
	}

	go l.sweepLoop()

	log.Info().
		Str("algorithm", cfg.Algorithm).
		Int("requests_per_minute", cfg.RequestsPerMinute).
		Dur("window", cfg.WindowSize).
		Msg("Rate limiter started")

	return l, nil
}

// Allow checks whether a request for the given key is admitted now
func (l *Limiter) Allow(key string) Decision {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.algo.initEntry(e, now)
		l.entries[key] = e
	}
	e.lastRequest = now

	return l.algo.allow(e, now)
}

// Consume admits the request or returns a rate-limit error carrying the
// retry-after hint
func (l *Limiter) Consume(key string) error {
	decision := l.Allow(key)
	if decision.Allowed {
		return nil
	}
	return errkit.Newf(errkit.KindRateLimit, "rate limit exceeded for %s", key).
		WithRetryAfter(decision.RetryAfter).
		WithContext("retry_after_seconds", ceilSeconds(decision.RetryAfter))
}

// Len returns the number of tracked keys
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Stop halts the background sweep
func (l *Limiter) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.stopped {
		l.stopped = true
		close(l.stop)
	}
}

// sweepLoop periodically drops entries idle longer than one window
func (l *Limiter) sweepLoop() {
	interval := l.cfg.WindowSize / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep(time.Now())
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, e := range l.entries {
		if now.Sub(e.lastRequest) > l.cfg.WindowSize {
			delete(l.entries, key)
			removed++
		}
	}
	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("Swept idle rate limit entries")
	}
}

// ceilSeconds converts a duration to whole seconds, rounding up
func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}
