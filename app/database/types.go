package database

import (
	"time"
)

type Feed struct {
	ID            string // Database UUID
	FeedURL       string // RSS/Atom feed URL
	CommunityName string // Destination Lemmy community
	CommunityID   int64  // Resolved Lemmy community id
	BotAccount    string // Name of the account that posts this feed
	Enabled       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PollState is the scheduling memory for one feed. Interval is always
// kept within the configured bounds; only feed.Backoff mutates it.
type PollState struct {
	FeedID        string
	Interval      time.Duration
	Jitter        time.Duration // error-path jitter, added to the next due check
	LastPollAt    *time.Time
	LastSuccessAt *time.Time
	NoChangeCount int
	ErrorCount    int
}

func NewPollState(feedID string, interval time.Duration) *PollState {
	return &PollState{
		FeedID:   feedID,
		Interval: interval,
	}
}

// FetchValidators is the conditional-fetch memory for one feed.
// Supported is nil until the first full fetch; false records that the
// server returned no validators, so later cycles skip conditional headers.
type FetchValidators struct {
	FeedID       string
	ETag         string
	LastModified string
	Supported    *bool
}

type SeenArticle struct {
	FeedID      string
	IdentityKey string
	FirstSeenAt time.Time
}
