package api

import (
	"github.com/lysyi3m/rss-feeds/app/database"
	"github.com/lysyi3m/rss-feeds/app/feed"
	"github.com/lysyi3m/rss-feeds/app/tasks"
)

type Handler struct {
	feedRepo    database.FeedRepository
	postRepo    database.PostRepository
	registry    tasks.WorkerRegistryInterface
	configCache *feed.ConfigCache
	generator   *feed.Generator
}

type defineFeedRequest struct {
	Address     string `json:"address" binding:"required,url"`
	ContentType string `json:"content_type" binding:"required"`
	SourceType  string `json:"source_type"`
	Username    string `json:"username"`
	Password    string `json:"password"`
}

type refreshFeedRequest struct {
	Address string `json:"address" binding:"required"`
}

type feedResponse struct {
	ID            string `json:"id"`
	Address       string `json:"address"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	TTL           int    `json:"ttl"`
	LastBuildDate string `json:"last_build_date"`
	UpdatedAt     string `json:"updated_at"`
}

type postResponse struct {
	GUID        string `json:"guid"`
	FeedAddress string `json:"feed_address"`
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
	PublishedAt string `json:"published_at"`
}
