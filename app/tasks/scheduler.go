package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/feedhook/lemmy-rssbot/app/cfg"
	"github.com/feedhook/lemmy-rssbot/app/database"
	"github.com/feedhook/lemmy-rssbot/app/feed"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// Scheduler wakes on a ticker, asks the backoff which feeds are due,
// and fans them out to a bounded worker pool. An in-flight set keyed by
// feed id guarantees the single-writer-per-feed invariant: no feed has
// two concurrent polls, regardless of worker count.
type Scheduler struct {
	feedRepo   database.FeedRepository
	stateRepo  database.StateRepository
	ledgerRepo database.LedgerRepository
	fetcher    FetcherInterface
	filterer   *feed.Filterer
	backoff    *feed.Backoff
	posters    PosterRegistry

	interval    time.Duration
	workerCount int
	postWindow  time.Duration
	retention   time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	taskQueue chan TaskInterface

	mu        sync.Mutex
	inFlight  map[string]struct{}
	lastPrune time.Time
}

func NewScheduler(feedRepo database.FeedRepository, stateRepo database.StateRepository,
	ledgerRepo database.LedgerRepository, fetcher FetcherInterface, filterer *feed.Filterer,
	backoff *feed.Backoff, posters PosterRegistry) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	c := cfg.Get()

	return &Scheduler{
		feedRepo:    feedRepo,
		stateRepo:   stateRepo,
		ledgerRepo:  ledgerRepo,
		fetcher:     fetcher,
		filterer:    filterer,
		backoff:     backoff,
		posters:     posters,
		interval:    time.Duration(c.SchedulerInterval) * time.Second,
		workerCount: c.WorkerCount,
		postWindow:  time.Duration(c.PostWindow) * time.Hour,
		retention:   time.Duration(c.RetentionDays) * 24 * time.Hour,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 300),
		inFlight:    make(map[string]struct{}),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueDueFeeds()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueDueFeeds()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// EnqueuePoll schedules an immediate poll for one feed, used by the API
// after registering a feed. A no-op when a poll is already in flight.
func (s *Scheduler) EnqueuePoll(f database.Feed) error {
	if !s.acquireFeed(f.ID) {
		return nil
	}

	task := NewPollFeedTask(f, s.fetcher, s.filterer, s.backoff,
		s.stateRepo, s.ledgerRepo, s.posters, s.postWindow)
	if err := s.EnqueueTask(task); err != nil {
		s.releaseFeed(f.ID)
		return err
	}
	return nil
}

func (s *Scheduler) enqueueDueFeeds() {
	now := time.Now().UTC()

	feeds, err := s.feedRepo.ListEnabled()
	if err != nil {
		slog.Error("Failed to list feeds", "error", err)
		return
	}

	due := 0
	for _, f := range feeds {
		state, err := s.stateRepo.GetState(f.ID)
		if err != nil {
			slog.Warn("Failed to get poll state, skipping feed", "feed", f.FeedURL, "error", err)
			continue
		}
		if !s.backoff.IsDue(state, now) {
			continue
		}
		if err := s.EnqueuePoll(f); err != nil {
			slog.Warn("Failed to enqueue poll", "feed", f.FeedURL, "error", err)
			continue
		}
		due++
	}

	if due > 0 {
		slog.Debug("Enqueued due feeds", "due", due, "total", len(feeds))
	}

	s.maybeEnqueuePrune(now)
}

func (s *Scheduler) maybeEnqueuePrune(now time.Time) {
	s.mu.Lock()
	shouldPrune := now.Sub(s.lastPrune) >= 24*time.Hour
	if shouldPrune {
		s.lastPrune = now
	}
	s.mu.Unlock()

	if !shouldPrune {
		return
	}

	if err := s.EnqueueTask(NewPruneLedgerTask(s.ledgerRepo, s.retention)); err != nil {
		slog.Warn("Failed to enqueue ledger prune", "error", err)
	}
}

func (s *Scheduler) acquireFeed(feedID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[feedID]; busy {
		return false
	}
	s.inFlight[feedID] = struct{}{}
	return true
}

func (s *Scheduler) releaseFeed(feedID string) {
	if feedID == "" {
		return
	}
	s.mu.Lock()
	delete(s.inFlight, feedID)
	s.mu.Unlock()
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		s.releaseFeed(task.GetFeedID())
		return
	}

	slog.Error("Worker task execution failed",
		"worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(),
		"retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries",
			"type", string(task.GetType()), "id", task.GetID(),
			"retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(),
			"last_error", err)
		s.releaseFeed(task.GetFeedID())
		return
	}

	// The feed stays held during the retry window so no second poll
	// sneaks in between attempts.
	task.IncrementRetryCount()
	retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
	if retryDelay > 30*time.Second {
		retryDelay = 30 * time.Second
	}

	slog.Warn("Task retry scheduled",
		"type", string(task.GetType()), "id", task.GetID(),
		"retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(),
		"delay", retryDelay.String())

	// Tracked by the WaitGroup so Stop cannot close the queue while a
	// retry is still waiting to re-enqueue.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		select {
		case <-time.After(retryDelay):
		case <-s.ctx.Done():
			s.releaseFeed(task.GetFeedID())
			return
		}

		if retryErr := s.EnqueueTask(task); retryErr != nil {
			slog.Error("Failed to re-enqueue task for retry",
				"type", string(task.GetType()), "id", task.GetID(),
				"retry_count", task.GetRetryCount(), "error", retryErr)
			s.releaseFeed(task.GetFeedID())
		}
	}()
}
