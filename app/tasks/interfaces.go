package tasks

import (
	"context"

	"github.com/feedhook/lemmy-rssbot/app/database"
	"github.com/feedhook/lemmy-rssbot/app/feed"
)

// TaskSchedulerInterface is consumed by the API layer to trigger
// out-of-band polls (e.g. right after a feed is registered).
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	EnqueuePoll(f database.Feed) error
}

type FetcherInterface interface {
	Run(ctx context.Context, url, etag, lastModified string) (*feed.FetchResult, error)
}

var _ FetcherInterface = (*feed.Fetcher)(nil)

// Poster publishes one accepted article. Implemented by lemmy.Client.
type Poster interface {
	CreatePost(ctx context.Context, communityID int64, title, link string) (int64, error)
}

// PosterRegistry maps a feed's bot account name to its Poster.
type PosterRegistry map[string]Poster
