// Package retry provides bounded backoff control for flaky operations.
//
// A Tracker is created per retryable operation and discarded right after it.
// It bounds both the number of attempts and the wall-clock time spent.
package retry

import "time"

// Step is one stage of an escalating backoff schedule. A Count of zero on the
// last step repeats it forever.
type Step struct {
	Delay time.Duration
	Count int
}

// Interval is an escalating backoff schedule.
type Interval struct {
	steps []Step
}

// NewInterval creates a schedule from steps, in order.
func NewInterval(steps ...Step) Interval {
	return Interval{steps: append([]Step(nil), steps...)}
}

// DefaultInterval retries quickly for the first attempts, then settles at one second.
func DefaultInterval() Interval {
	return NewInterval(
		Step{Delay: 100 * time.Millisecond, Count: 10},
		Step{Delay: time.Second},
	)
}

// FixedInterval waits the same delay between every attempt.
func FixedInterval(d time.Duration) Interval {
	return NewInterval(Step{Delay: d})
}

// DelayFor returns the delay after the given 1-based attempt.
func (i Interval) DelayFor(attempt int) time.Duration {
	if len(i.steps) == 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	remaining := attempt
	for idx, s := range i.steps {
		last := idx == len(i.steps)-1
		if last || s.Count <= 0 || remaining <= s.Count {
			return s.Delay
		}
		remaining -= s.Count
	}
	return i.steps[len(i.steps)-1].Delay
}
