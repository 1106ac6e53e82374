package feed

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/feedhook/lemmy-rssbot/app/database"
)

const (
	DefaultMinInterval = 5 * time.Minute
	DefaultMaxInterval = 24 * time.Hour
	DefaultGrowth      = 1.5
	DefaultShrink      = 2.0
)

type Outcome int

const (
	OutcomeNewItems Outcome = iota
	OutcomeNoChange
	OutcomeNotModified
	OutcomeFetchError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNewItems:
		return "new_items"
	case OutcomeNoChange:
		return "no_change"
	case OutcomeNotModified:
		return "not_modified"
	case OutcomeFetchError:
		return "fetch_error"
	default:
		return "unknown"
	}
}

// Backoff adjusts each feed's polling interval from observed outcomes.
// New items halve the interval toward the minimum; quiet cycles grow it
// toward the maximum, faster the longer the feed has been quiet. Fetch
// errors leave the interval alone so transient network trouble is never
// mistaken for a quiet feed. The interval never leaves [min, max].
type Backoff struct {
	min    time.Duration
	max    time.Duration
	growth float64
	shrink float64

	mu   sync.Mutex
	rand *rand.Rand
}

func NewBackoff(min, max time.Duration, growth, shrink float64) *Backoff {
	if min <= 0 {
		min = DefaultMinInterval
	}
	if max <= min {
		max = DefaultMaxInterval
	}
	if growth <= 1 {
		growth = DefaultGrowth
	}
	if shrink <= 1 {
		shrink = DefaultShrink
	}

	return &Backoff{
		min:    min,
		max:    max,
		growth: growth,
		shrink: shrink,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// InitialInterval is the starting interval for a feed's first poll:
// the geometric midpoint of the bounds, so the first few outcomes move
// it quickly toward either end.
func (b *Backoff) InitialInterval() time.Duration {
	mid := time.Duration(float64(b.min) * math.Sqrt(float64(b.max)/float64(b.min)))
	return b.clamp(mid)
}

// IsDue reports whether the feed should be polled now. A feed that has
// never been polled is always due.
func (b *Backoff) IsDue(state *database.PollState, now time.Time) bool {
	if state == nil || state.LastPollAt == nil {
		return true
	}
	return now.Sub(*state.LastPollAt) >= state.Interval+state.Jitter
}

// RecordOutcome folds a poll outcome into the state and returns the new
// interval. This is the only code path that changes the interval.
func (b *Backoff) RecordOutcome(state *database.PollState, outcome Outcome, now time.Time) time.Duration {
	if state.Interval == 0 {
		state.Interval = b.InitialInterval()
	}

	polled := now
	state.LastPollAt = &polled
	state.Jitter = 0

	switch outcome {
	case OutcomeNewItems:
		state.Interval = b.clamp(time.Duration(float64(state.Interval) / b.shrink))
		state.NoChangeCount = 0
		state.LastSuccessAt = &polled

	case OutcomeNoChange, OutcomeNotModified:
		state.NoChangeCount++
		// Growth accelerates with consecutive quiet cycles.
		factor := 1 + (b.growth-1)*float64(state.NoChangeCount)
		state.Interval = b.clamp(time.Duration(float64(state.Interval) * factor))
		state.LastSuccessAt = &polled

	case OutcomeFetchError:
		state.ErrorCount++
		// Jitter desynchronizes retries across feeds sharing a host.
		b.mu.Lock()
		state.Jitter = time.Duration(b.rand.Int63n(int64(state.Interval)/10 + 1))
		b.mu.Unlock()
	}

	return state.Interval
}

func (b *Backoff) clamp(interval time.Duration) time.Duration {
	if interval < b.min {
		return b.min
	}
	if interval > b.max {
		return b.max
	}
	return interval
}
