package retry

import "time"

// Tracker decides whether another attempt of an operation is permitted.
//
// The first Try is the initial attempt; a tracker with maxRetries N therefore
// permits N+1 attempts in total, and never one that starts after the time limit.
type Tracker struct {
	maxRetries int
	timeLimit  time.Duration
	interval   Interval
	now        func() time.Time

	attempts int
	started  time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates a tracker. The clock starts on creation.
func NewTracker(maxRetries int, timeLimit time.Duration, interval Interval, opts ...Option) *Tracker {
	t := &Tracker{
		maxRetries: maxRetries,
		timeLimit:  timeLimit,
		interval:   interval,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.started = t.now()
	return t
}

// Try reports whether another attempt is permitted and, if so, counts it.
func (t *Tracker) Try() bool {
	if !t.permitted() {
		return false
	}
	t.attempts++
	return true
}

// CanRetry reports, after a failed attempt, whether a further attempt is permitted.
// It does not count an attempt.
func (t *Tracker) CanRetry() bool {
	return t.permitted()
}

func (t *Tracker) permitted() bool {
	return t.attempts <= t.maxRetries && t.Elapsed() < t.timeLimit
}

// Sleep returns how long to wait before the next attempt. It never extends past
// the time limit.
func (t *Tracker) Sleep() time.Duration {
	d := t.interval.DelayFor(t.attempts)
	if remaining := t.timeLimit - t.Elapsed(); d > remaining {
		if remaining < 0 {
			return 0
		}
		return remaining
	}
	return d
}

// ShouldLogWarning throttles retry diagnostics: the first few failures are
// reported, then only every tenth.
func (t *Tracker) ShouldLogWarning() bool {
	return t.attempts <= 3 || t.attempts%10 == 0
}

// Attempts returns how many attempts have been counted.
func (t *Tracker) Attempts() int {
	return t.attempts
}

// Elapsed returns the time since the tracker was created.
func (t *Tracker) Elapsed() time.Duration {
	return t.now().Sub(t.started)
}

// Reset restarts the attempt count and the clock.
func (t *Tracker) Reset() {
	t.attempts = 0
	t.started = t.now()
}
