package feed

import (
	"testing"
	"time"

	"github.com/feedhook/lemmy-rssbot/app/database"
)

func newTestBackoff() *Backoff {
	return NewBackoff(5*time.Minute, 24*time.Hour, 1.5, 2.0)
}

func TestIsDueFirstPoll(t *testing.T) {
	b := newTestBackoff()
	now := time.Now().UTC()

	if !b.IsDue(nil, now) {
		t.Error("Feed with no state should be due")
	}
	if !b.IsDue(database.NewPollState("f1", time.Hour), now) {
		t.Error("Feed that has never been polled should be due")
	}
}

func TestIsDueElapsedInterval(t *testing.T) {
	b := newTestBackoff()
	now := time.Now().UTC()

	lastPoll := now.Add(-2 * time.Hour)
	state := &database.PollState{FeedID: "f1", Interval: time.Hour, LastPollAt: &lastPoll}
	if !b.IsDue(state, now) {
		t.Error("Feed polled 2h ago with 1h interval should be due")
	}

	lastPoll = now.Add(-30 * time.Minute)
	if b.IsDue(state, now) {
		t.Error("Feed polled 30m ago with 1h interval should not be due")
	}
}

func TestNewItemsShrinksTowardMin(t *testing.T) {
	b := newTestBackoff()
	now := time.Now().UTC()

	state := database.NewPollState("f1", 8*time.Hour)
	state.NoChangeCount = 7

	interval := b.RecordOutcome(state, OutcomeNewItems, now)
	if interval != 4*time.Hour {
		t.Errorf("Expected interval halved to 4h, got %v", interval)
	}
	if state.NoChangeCount != 0 {
		t.Errorf("NewItems should reset the no-change counter, got %d", state.NoChangeCount)
	}

	// Repeated bursts converge to the floor and never cross it.
	for i := 0; i < 20; i++ {
		interval = b.RecordOutcome(state, OutcomeNewItems, now)
	}
	if interval != 5*time.Minute {
		t.Errorf("Expected convergence to MIN_INTERVAL, got %v", interval)
	}
}

func TestNoChangeGrowsTowardMax(t *testing.T) {
	b := newTestBackoff()
	now := time.Now().UTC()

	state := database.NewPollState("f1", time.Hour)

	first := b.RecordOutcome(state, OutcomeNoChange, now)
	if first <= time.Hour {
		t.Errorf("Quiet feed's interval should grow, got %v", first)
	}

	second := b.RecordOutcome(state, OutcomeNoChange, now)
	if float64(second)/float64(first) <= float64(first)/float64(time.Hour) {
		t.Errorf("Growth should accelerate with the quiet streak: 1h -> %v -> %v", first, second)
	}

	var interval time.Duration
	for i := 0; i < 20; i++ {
		interval = b.RecordOutcome(state, OutcomeNoChange, now)
	}
	if interval != 24*time.Hour {
		t.Errorf("Expected convergence to MAX_INTERVAL, got %v", interval)
	}
}

func TestNotModifiedBehavesLikeNoChange(t *testing.T) {
	b := newTestBackoff()
	now := time.Now().UTC()

	state := database.NewPollState("f1", time.Hour)
	interval := b.RecordOutcome(state, OutcomeNotModified, now)

	if interval <= time.Hour {
		t.Errorf("NotModified should grow the interval, got %v", interval)
	}
	if state.NoChangeCount != 1 {
		t.Errorf("NotModified should count as a quiet cycle, got %d", state.NoChangeCount)
	}
	if state.LastSuccessAt == nil {
		t.Error("NotModified is a successful round trip")
	}
}

func TestFetchErrorLeavesIntervalUnchanged(t *testing.T) {
	b := newTestBackoff()
	now := time.Now().UTC()

	state := database.NewPollState("f1", time.Hour)
	state.NoChangeCount = 3

	interval := b.RecordOutcome(state, OutcomeFetchError, now)
	if interval != time.Hour {
		t.Errorf("FetchError must not change the interval, got %v", interval)
	}
	if state.NoChangeCount != 3 {
		t.Errorf("FetchError must not touch the no-change counter, got %d", state.NoChangeCount)
	}
	if state.ErrorCount != 1 {
		t.Errorf("Expected error counter 1, got %d", state.ErrorCount)
	}
	if state.Jitter < 0 || state.Jitter > time.Hour/10 {
		t.Errorf("Error jitter should stay within 10%% of the interval, got %v", state.Jitter)
	}

	// Still due again once the unchanged interval (plus jitter) elapses.
	if !b.IsDue(state, now.Add(time.Hour+state.Jitter)) {
		t.Error("Feed should be due after the unchanged interval elapses")
	}
}

func TestIntervalStaysWithinBoundsForAnySequence(t *testing.T) {
	b := newTestBackoff()
	now := time.Now().UTC()

	outcomes := []Outcome{
		OutcomeNoChange, OutcomeNoChange, OutcomeNewItems, OutcomeFetchError,
		OutcomeNotModified, OutcomeNewItems, OutcomeNewItems, OutcomeNoChange,
		OutcomeFetchError, OutcomeNoChange, OutcomeNoChange, OutcomeNoChange,
		OutcomeNewItems,
	}

	state := database.NewPollState("f1", 0) // first poll initializes the interval
	for i, outcome := range outcomes {
		interval := b.RecordOutcome(state, outcome, now)
		if interval < 5*time.Minute || interval > 24*time.Hour {
			t.Fatalf("Interval out of bounds after outcome %d (%s): %v", i, outcome, interval)
		}
	}
}

func TestInitialIntervalWithinBounds(t *testing.T) {
	b := newTestBackoff()

	initial := b.InitialInterval()
	if initial < 5*time.Minute || initial > 24*time.Hour {
		t.Errorf("Initial interval out of bounds: %v", initial)
	}
	// Geometric midpoint of 5m..24h is around 2h.
	if initial < time.Hour || initial > 4*time.Hour {
		t.Errorf("Initial interval should sit mid-range, got %v", initial)
	}
}
