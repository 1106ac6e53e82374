package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feedhook/lemmy-rssbot/app/database"
	"github.com/feedhook/lemmy-rssbot/app/tasks"
)

func NewHandler(feedRepo database.FeedRepository, stateRepo database.StateRepository,
	ledgerRepo database.LedgerRepository, resolvers ResolverRegistry,
	scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		feedRepo:   feedRepo,
		stateRepo:  stateRepo,
		ledgerRepo: ledgerRepo,
		resolvers:  resolvers,
		scheduler:  scheduler,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
		health["feeds"] = feedCount
	}
	if enabledCount, err := h.feedRepo.GetEnabledFeedCount(); err == nil {
		health["enabled_feeds"] = enabledCount
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{}

	if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
		stats["feeds"] = feedCount
	}
	if enabledCount, err := h.feedRepo.GetEnabledFeedCount(); err == nil {
		stats["enabled_feeds"] = enabledCount
	}
	if seenCount, err := h.ledgerRepo.GetSeenCount(); err == nil {
		stats["seen_articles"] = seenCount
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APIListFeeds(c *gin.Context) {
	all, err := h.feedRepo.ListAll()
	if err != nil {
		slog.Error("Database error", "operation", "list_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	feeds := make([]map[string]interface{}, 0, len(all))

	for _, f := range all {
		feedInfo := map[string]interface{}{
			"id":          f.ID,
			"url":         f.FeedURL,
			"community":   f.CommunityName,
			"bot_account": f.BotAccount,
			"enabled":     f.Enabled,
		}

		if state, err := h.stateRepo.GetState(f.ID); err == nil && state != nil {
			feedInfo["interval"] = state.Interval.String()
			feedInfo["last_poll_at"] = state.LastPollAt
			feedInfo["last_success_at"] = state.LastSuccessAt
			feedInfo["error_count"] = state.ErrorCount
		}

		feeds = append(feeds, feedInfo)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"feeds": feeds,
		"total": len(feeds),
	})
}

type registerFeedRequest struct {
	FeedURL    string `json:"feed_url" binding:"required,url"`
	Community  string `json:"community" binding:"required"`
	BotAccount string `json:"bot_account" binding:"required"`
}

func (h *Handler) APIRegisterFeed(c *gin.Context) {
	var req registerFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resolver, ok := h.resolvers[req.BotAccount]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown bot account: " + req.BotAccount})
		return
	}

	communityID, err := resolver.GetCommunityID(c.Request.Context(), req.Community)
	if err != nil {
		slog.Error("Community lookup failed", "community", req.Community, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Failed to resolve community",
			"details": err.Error(),
		})
		return
	}

	id, err := h.feedRepo.Upsert(req.FeedURL, req.Community, communityID, req.BotAccount)
	if err != nil {
		slog.Error("Database error", "operation", "register_feed", "url", req.FeedURL, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	f, err := h.feedRepo.Get(id)
	if err != nil || f == nil {
		slog.Error("Database error", "operation", "get_feed", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	// First poll runs right away rather than on the next scheduler tick.
	if err := h.scheduler.EnqueuePoll(*f); err != nil {
		slog.Error("Error enqueueing poll task", "feed", f.FeedURL, "error", err)
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":           id,
		"url":          f.FeedURL,
		"community":    f.CommunityName,
		"community_id": f.CommunityID,
		"bot_account":  f.BotAccount,
	})
}

func (h *Handler) APIGetFeedDetails(c *gin.Context) {
	f, ok := h.lookupFeed(c)
	if !ok {
		return
	}

	details := map[string]interface{}{
		"id":           f.ID,
		"url":          f.FeedURL,
		"community":    f.CommunityName,
		"community_id": f.CommunityID,
		"bot_account":  f.BotAccount,
		"enabled":      f.Enabled,
		"created_at":   f.CreatedAt,
		"updated_at":   f.UpdatedAt,
	}

	if state, err := h.stateRepo.GetState(f.ID); err == nil && state != nil {
		details["poll_state"] = map[string]interface{}{
			"interval":        state.Interval.String(),
			"jitter":          state.Jitter.String(),
			"last_poll_at":    state.LastPollAt,
			"last_success_at": state.LastSuccessAt,
			"no_change_count": state.NoChangeCount,
			"error_count":     state.ErrorCount,
		}
	}

	if validators, err := h.stateRepo.GetValidators(f.ID); err == nil && validators != nil {
		details["validators"] = map[string]interface{}{
			"etag":          validators.ETag,
			"last_modified": validators.LastModified,
			"supported":     validators.Supported,
		}
	}

	c.JSON(http.StatusOK, details)
}

func (h *Handler) APIDeleteFeed(c *gin.Context) {
	f, ok := h.lookupFeed(c)
	if !ok {
		return
	}

	if err := h.feedRepo.Delete(f.ID); err != nil {
		slog.Error("Database error", "operation", "delete_feed", "id", f.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Feed deleted",
		"id":      f.ID,
	})
}

func (h *Handler) APIRefreshFeed(c *gin.Context) {
	f, ok := h.lookupFeed(c)
	if !ok {
		return
	}

	if err := h.scheduler.EnqueuePoll(*f); err != nil {
		slog.Error("Error enqueueing poll task", "feed", f.FeedURL, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue poll task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Poll task enqueued",
		"feed": gin.H{
			"id":  f.ID,
			"url": f.FeedURL,
		},
	})
}

func (h *Handler) lookupFeed(c *gin.Context) (*database.Feed, bool) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing feed id parameter"})
		return nil, false
	}

	f, err := h.feedRepo.Get(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil, false
	}

	if f == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return nil, false
	}

	return f, true
}
