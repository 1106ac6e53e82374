package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/feedhook/lemmy-rssbot/app/database"
	"github.com/feedhook/lemmy-rssbot/app/feed"
)

// PollFeedTask runs one poll cycle for one feed: conditional fetch,
// filter, dedup, post, then feed the outcome back into the backoff
// state. The scheduler guarantees at most one PollFeedTask per feed is
// in flight, so all state mutations here are single-writer.
type PollFeedTask struct {
	Task
	Feed       database.Feed
	fetcher    FetcherInterface
	filterer   *feed.Filterer
	backoff    *feed.Backoff
	stateRepo  database.StateRepository
	ledgerRepo database.LedgerRepository
	posters    PosterRegistry
	postWindow time.Duration
}

func NewPollFeedTask(f database.Feed, fetcher FetcherInterface, filterer *feed.Filterer,
	backoff *feed.Backoff, stateRepo database.StateRepository, ledgerRepo database.LedgerRepository,
	posters PosterRegistry, postWindow time.Duration) *PollFeedTask {
	return &PollFeedTask{
		Task:       NewTask(TaskTypePollFeed, f.ID),
		Feed:       f,
		fetcher:    fetcher,
		filterer:   filterer,
		backoff:    backoff,
		stateRepo:  stateRepo,
		ledgerRepo: ledgerRepo,
		posters:    posters,
		postWindow: postWindow,
	}
}

// Execute returns an error only for storage failures, which the
// scheduler retries. Fetch failures are an expected outcome and are
// folded into the backoff state instead.
func (t *PollFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	poster, ok := t.posters[t.Feed.BotAccount]
	if !ok {
		slog.Error("No account configured for feed, skipping",
			"feed", t.Feed.FeedURL, "account", t.Feed.BotAccount)
		return nil
	}

	state, err := t.stateRepo.GetState(t.Feed.ID)
	if err != nil {
		return fmt.Errorf("failed to load poll state: %w", err)
	}
	if state == nil {
		state = database.NewPollState(t.Feed.ID, t.backoff.InitialInterval())
	}

	validators, err := t.stateRepo.GetValidators(t.Feed.ID)
	if err != nil {
		return fmt.Errorf("failed to load fetch validators: %w", err)
	}
	if validators == nil {
		validators = &database.FetchValidators{FeedID: t.Feed.ID}
	}

	// Skip conditional headers once the server is known not to
	// support validators.
	etag, lastModified := "", ""
	if validators.Supported == nil || *validators.Supported {
		etag, lastModified = validators.ETag, validators.LastModified
	}

	result, err := t.fetcher.Run(ctx, t.Feed.FeedURL, etag, lastModified)
	now := time.Now().UTC()

	if err != nil {
		var fetchErr *feed.FetchError
		if errors.As(err, &fetchErr) && fetchErr.Kind == feed.ErrorPermanent {
			slog.Warn("Feed looks permanently broken, operator attention needed",
				"feed", t.Feed.FeedURL, "error", err)
		} else {
			slog.Info("Feed fetch failed", "feed", t.Feed.FeedURL, "error", err)
		}
		t.backoff.RecordOutcome(state, feed.OutcomeFetchError, now)
		return t.saveState(state)
	}

	if result.NotModified {
		// Validators stay untouched on a 304.
		t.backoff.RecordOutcome(state, feed.OutcomeNotModified, now)
		if err := t.saveState(state); err != nil {
			return err
		}
		slog.Debug("Feed not modified", "feed", t.Feed.FeedURL, "interval", state.Interval)
		return nil
	}

	// A successful parse replaces validators unconditionally, identical
	// values included. Servers without validators get the absent marker.
	supported := result.HasValidators
	validators.ETag = result.ETag
	validators.LastModified = result.LastModified
	validators.Supported = &supported
	if err := t.stateRepo.SaveValidators(validators); err != nil {
		return fmt.Errorf("failed to save fetch validators: %w", err)
	}

	accepted, err := t.processEntries(ctx, poster, result.Entries, now)
	if err != nil {
		return err
	}

	outcome := feed.OutcomeNoChange
	if accepted > 0 {
		outcome = feed.OutcomeNewItems
	}
	t.backoff.RecordOutcome(state, outcome, now)
	if err := t.saveState(state); err != nil {
		return err
	}

	slog.Info("Task completed",
		"type", "PollFeed",
		"feed", t.Feed.FeedURL,
		"duration", t.GetDuration(),
		"total", len(result.Entries),
		"new", accepted,
		"interval", state.Interval)

	return nil
}

// processEntries walks entries oldest first so posts land in
// publication order. Each accepted entry is marked seen before the post
// call: a crash or post failure costs one announcement, never a
// duplicate.
func (t *PollFeedTask) processEntries(ctx context.Context, poster Poster, entries []feed.Entry, now time.Time) (int, error) {
	cutoff := now.Add(-t.postWindow)
	accepted := 0

	for _, entry := range entries {
		if t.postWindow > 0 && entry.PublishedAt.Before(cutoff) {
			continue
		}

		key := entry.IdentityKey()
		isNew, err := t.ledgerRepo.IsNew(t.Feed.ID, key)
		if err != nil {
			return accepted, fmt.Errorf("failed to check ledger: %w", err)
		}
		if !isNew {
			continue
		}

		title := feed.TrimTitle(feed.NormalizeTitle(entry.Title), feed.MaxTitleBytes)

		if allowed, pattern := t.filterer.Run(title, t.Feed.CommunityName); !allowed {
			// Filtered entries are recorded as seen so they are not
			// re-evaluated every cycle, but they never produce a post.
			if err := t.ledgerRepo.MarkSeen(t.Feed.ID, key, now); err != nil {
				return accepted, fmt.Errorf("failed to mark filtered entry seen: %w", err)
			}
			slog.Debug("Entry rejected by filter",
				"feed", t.Feed.FeedURL, "title", title, "pattern", pattern)
			continue
		}

		if err := t.ledgerRepo.MarkSeen(t.Feed.ID, key, now); err != nil {
			return accepted, fmt.Errorf("failed to mark entry seen: %w", err)
		}
		accepted++

		postID, err := poster.CreatePost(ctx, t.Feed.CommunityID, title, entry.Link)
		if err != nil {
			// Already marked seen: the item is dropped rather than
			// risking a duplicate post on retry.
			slog.Error("Post failed, article will not be retried",
				"feed", t.Feed.FeedURL, "community", t.Feed.CommunityName,
				"title", title, "error", err)
			continue
		}

		slog.Info("Posted article",
			"feed", t.Feed.FeedURL, "community", t.Feed.CommunityName,
			"title", title, "post_id", postID)
	}

	return accepted, nil
}

func (t *PollFeedTask) saveState(state *database.PollState) error {
	if err := t.stateRepo.SaveState(state); err != nil {
		return fmt.Errorf("failed to save poll state: %w", err)
	}
	return nil
}
