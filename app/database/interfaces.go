package database

import (
	"time"
)

type FeedRepository interface {
	Get(id string) (*Feed, error)
	GetByURL(feedURL string) (*Feed, error)
	ListAll() ([]Feed, error)
	ListEnabled() ([]Feed, error)
	GetFeedCount() (int, error)
	GetEnabledFeedCount() (int, error)

	// Upsert inserts a feed or, when the URL is already registered,
	// re-points it at the given community. Returns the database id.
	Upsert(feedURL, communityName string, communityID int64, botAccount string) (string, error)
	SetEnabled(id string, enabled bool) error
	Delete(id string) error
}

type StateRepository interface {
	GetState(feedID string) (*PollState, error)
	SaveState(state *PollState) error

	GetValidators(feedID string) (*FetchValidators, error)
	SaveValidators(validators *FetchValidators) error
}

type LedgerRepository interface {
	IsNew(feedID, identityKey string) (bool, error)
	MarkSeen(feedID, identityKey string, firstSeen time.Time) error
	Prune(before time.Time) (int64, error)
	GetSeenCount() (int, error)
}
