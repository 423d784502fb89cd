package retry

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestTrackerAttemptBound(t *testing.T) {
	clock := newFakeClock()
	tracker := NewTracker(3, time.Minute, DefaultInterval(), WithClock(clock.Now))

	successes := 0
	for tracker.Try() {
		successes++
		if successes > 10 {
			t.Fatal("tracker never stopped")
		}
		clock.Advance(tracker.Sleep())
	}

	if successes != 4 {
		t.Errorf("Try() succeeded %d times, want 4", successes)
	}
	if tracker.CanRetry() {
		t.Error("CanRetry() should be false once exhausted")
	}
	if tracker.Elapsed() > time.Minute {
		t.Errorf("elapsed %v exceeds the time limit", tracker.Elapsed())
	}
}

func TestTrackerTimeBound(t *testing.T) {
	clock := newFakeClock()
	tracker := NewTracker(1000, 5*time.Second, FixedInterval(2*time.Second), WithClock(clock.Now))

	attempts := 0
	for tracker.Try() {
		attempts++
		clock.Advance(tracker.Sleep())
	}

	if attempts != 3 {
		t.Errorf("attempts = %d, want 3 (t=0s, 2s, 4s)", attempts)
	}
	if tracker.Elapsed() > 5*time.Second {
		t.Errorf("elapsed %v exceeds the time limit", tracker.Elapsed())
	}
}

func TestTrackerCanRetryDoesNotCount(t *testing.T) {
	tracker := NewTracker(1, time.Minute, DefaultInterval())
	if !tracker.Try() {
		t.Fatal("first Try() should succeed")
	}
	for i := 0; i < 5; i++ {
		if !tracker.CanRetry() {
			t.Fatal("CanRetry() should stay true")
		}
	}
	if tracker.Attempts() != 1 {
		t.Errorf("Attempts() = %d, want 1", tracker.Attempts())
	}
}

func TestTrackerSleepCappedByRemainingTime(t *testing.T) {
	clock := newFakeClock()
	tracker := NewTracker(10, 3*time.Second, FixedInterval(10*time.Second), WithClock(clock.Now))
	tracker.Try()
	clock.Advance(2 * time.Second)
	if got := tracker.Sleep(); got != time.Second {
		t.Errorf("Sleep() = %v, want 1s", got)
	}
	clock.Advance(5 * time.Second)
	if got := tracker.Sleep(); got != 0 {
		t.Errorf("Sleep() past the limit = %v, want 0", got)
	}
}

func TestTrackerShouldLogWarning(t *testing.T) {
	tracker := NewTracker(100, time.Hour, FixedInterval(0))
	var logged []int
	for i := 1; i <= 30; i++ {
		tracker.Try()
		if tracker.ShouldLogWarning() {
			logged = append(logged, i)
		}
	}
	want := []int{1, 2, 3, 10, 20, 30}
	if len(logged) != len(want) {
		t.Fatalf("logged on attempts %v, want %v", logged, want)
	}
	for i := range want {
		if logged[i] != want[i] {
			t.Errorf("logged on attempts %v, want %v", logged, want)
			break
		}
	}
}

func TestTrackerReset(t *testing.T) {
	tracker := NewTracker(0, time.Minute, DefaultInterval())
	if !tracker.Try() || tracker.Try() {
		t.Fatal("maxRetries 0 permits exactly one attempt")
	}
	tracker.Reset()
	if !tracker.Try() {
		t.Error("Try() after Reset() should succeed")
	}
}

func TestIntervalDelayFor(t *testing.T) {
	interval := NewInterval(
		Step{Delay: 10 * time.Millisecond, Count: 2},
		Step{Delay: 50 * time.Millisecond, Count: 1},
		Step{Delay: time.Second},
	)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 10 * time.Millisecond},
		{attempt: 1, want: 10 * time.Millisecond},
		{attempt: 2, want: 10 * time.Millisecond},
		{attempt: 3, want: 50 * time.Millisecond},
		{attempt: 4, want: time.Second},
		{attempt: 400, want: time.Second},
	}
	for _, tt := range tests {
		if got := interval.DelayFor(tt.attempt); got != tt.want {
			t.Errorf("DelayFor(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}

	if got := (Interval{}).DelayFor(3); got != 0 {
		t.Errorf("empty interval DelayFor = %v", got)
	}
}
