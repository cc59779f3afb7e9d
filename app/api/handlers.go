package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/rss-feeds/app/cfg"
	"github.com/lysyi3m/rss-feeds/app/database"
	"github.com/lysyi3m/rss-feeds/app/feed"
	"github.com/lysyi3m/rss-feeds/app/tasks"
)

func NewHandler(configCache *feed.ConfigCache, feedRepo database.FeedRepository,
	postRepo database.PostRepository, registry tasks.WorkerRegistryInterface) *Handler {
	return &Handler{
		feedRepo:    feedRepo,
		postRepo:    postRepo,
		registry:    registry,
		configCache: configCache,
		generator:   feed.NewGenerator(cfg.GetVersion()),
	}
}

// GetFeedRSS re-serves a stored feed with every post collected so far.
func (h *Handler) GetFeedRSS(c *gin.Context) {
	address := c.Query("address")
	if address == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	stored, err := h.feedRepo.GetFeedByAddress(c.Request.Context(), address)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "address", address, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if stored == nil {
		c.Status(http.StatusNotFound)
		return
	}

	rss, err := h.generator.Run(*stored)
	if err != nil {
		slog.Error("RSS generation error", "address", address, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Posts", strconv.Itoa(len(stored.Posts)))
	c.Header("X-Last-Updated", stored.UpdatedAt.Format(time.RFC3339))

	c.String(http.StatusOK, rss)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"workers":   h.registry.Count(),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(c.Request.Context()); err == nil {
		health["feeds"] = feedCount
	}

	if h.configCache != nil {
		health["loaded_configurations"] = h.configCache.GetConfigCount()
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIDefineFeed(c *gin.Context) {
	var req defineFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	contentType, err := feed.ParseContentType(req.ContentType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sourceType := feed.SourceTypeREST
	if strings.TrimSpace(req.SourceType) != "" {
		if sourceType, err = feed.ParseSourceType(req.SourceType); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	// A feed is known either by its self link or by the address it is
	// polled from.
	existing, err := h.feedRepo.GetFeedByAddress(c.Request.Context(), req.Address)
	if err == nil && existing == nil {
		existing, err = h.feedRepo.GetFeedBySourceAddress(c.Request.Context(), req.Address)
	}
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "address", req.Address, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if existing != nil || h.registry.Exists(req.Address) {
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": "Feed already exists", "address": req.Address})
		return
	}

	_, err = h.registry.Define(tasks.Definition{
		Address:     req.Address,
		ContentType: contentType,
		SourceType:  sourceType,
		Username:    req.Username,
		Password:    req.Password,
	})
	switch {
	case errors.Is(err, tasks.ErrWorkerExists):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": "Feed already exists", "address": req.Address})
		return
	case errors.Is(err, tasks.ErrUnknownContentType), errors.Is(err, tasks.ErrUnknownSourceType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		slog.Error("Failed to define feed worker", "address", req.Address, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to define feed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"feed": gin.H{
			"address":      req.Address,
			"content_type": contentType,
			"source_type":  sourceType,
		},
	})
}

func (h *Handler) APIListFeeds(c *gin.Context) {
	feeds, err := h.feedRepo.GetAllFeeds(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "list_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	result := make([]feedResponse, 0, len(feeds))
	for _, f := range feeds {
		result = append(result, toFeedResponse(f))
	}

	c.JSON(http.StatusOK, gin.H{
		"feeds": result,
		"total": len(result),
	})
}

func (h *Handler) APIListWorkers(c *gin.Context) {
	workers := h.registry.Statuses()

	c.JSON(http.StatusOK, gin.H{
		"workers": workers,
		"total":   len(workers),
	})
}

func (h *Handler) APIRefreshFeed(c *gin.Context) {
	var req refreshFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	err := h.registry.ForceRefresh(c.Request.Context(), req.Address)
	switch {
	case errors.Is(err, tasks.ErrWorkerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed worker not found", "address": req.Address})
	case errors.Is(err, tasks.ErrWorkerRunning):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": "Feed worker is running", "address": req.Address})
	case errors.Is(err, tasks.ErrRefreshFailed):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": "Feed refresh failed", "address": req.Address})
	case err != nil:
		slog.Error("Failed to refresh feed", "address", req.Address, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refresh feed", "details": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Feed refreshed and worker restarted",
			"address": req.Address,
		})
	}
}

func (h *Handler) APIGetFeedPosts(c *gin.Context) {
	address := c.Query("address")
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing address parameter"})
		return
	}

	stored, err := h.feedRepo.GetFeedByAddress(c.Request.Context(), address)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "address", address, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if stored == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found", "address": address})
		return
	}

	posts, err := h.postRepo.GetPostsByFeedAddress(c.Request.Context(), stored.Address)
	if err != nil {
		slog.Error("Database error", "operation", "list_feed_posts", "address", address, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"feed":  toFeedResponse(*stored),
		"posts": toPostResponses(posts),
		"total": len(posts),
	})
}

func (h *Handler) APIListPosts(c *gin.Context) {
	posts, err := h.postRepo.GetAllPosts(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "list_posts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"posts": toPostResponses(posts),
		"total": len(posts),
	})
}

func (h *Handler) APILookupPost(c *gin.Context) {
	guid := c.Query("guid")
	if guid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing guid parameter"})
		return
	}

	post, err := h.postRepo.GetPostByGUID(c.Request.Context(), guid)
	if err != nil {
		slog.Error("Database error", "operation", "get_post", "guid", guid, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if post == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found", "guid": guid})
		return
	}

	c.JSON(http.StatusOK, toPostResponses([]feed.Post{*post})[0])
}

func toFeedResponse(f feed.Feed) feedResponse {
	return feedResponse{
		ID:            f.ID,
		Address:       f.Address,
		Title:         f.Title,
		Description:   f.Description,
		TTL:           f.TTL,
		LastBuildDate: f.LastBuildDate.Format(time.RFC3339),
		UpdatedAt:     f.UpdatedAt.Format(time.RFC3339),
	}
}

func toPostResponses(posts []feed.Post) []postResponse {
	result := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		result = append(result, postResponse{
			GUID:        p.GUID,
			FeedAddress: p.FeedAddress,
			Title:       p.Title,
			Link:        p.Link,
			Description: p.Description,
			PublishedAt: p.PublishedAt.Format(time.RFC3339),
		})
	}
	return result
}
