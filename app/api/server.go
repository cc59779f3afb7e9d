package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lysyi3m/rss-feeds/app/cfg"
)

// NewServer creates the HTTP engine with all routes configured.
func NewServer(handler *Handler, apiAccessKey string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(requestLogger("/health", "/metrics"), gin.Recovery(), allowCrossOrigin())

	setupRoutes(r, handler, apiAccessKey)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string) {
	r.GET("/feeds/rss", handler.GetFeedRSS)

	r.GET("/health", handler.GetHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if apiAccessKey != "" {
		api := r.Group("/api")
		api.Use(requireAPIKey(apiAccessKey))
		{
			api.POST("/feeds", handler.APIDefineFeed)
			api.GET("/feeds", handler.APIListFeeds)
			api.GET("/feeds/workers", handler.APIListWorkers)
			api.POST("/feeds/refresh", handler.APIRefreshFeed)
			api.GET("/feeds/posts", handler.APIGetFeedPosts)
			api.GET("/posts", handler.APIListPosts)
			api.GET("/posts/lookup", handler.APILookupPost)
		}
		slog.Info("API endpoints enabled with authentication")
	} else {
		slog.Info("API endpoints disabled (API_ACCESS_KEY not set)")
	}

	r.GET("/", func(c *gin.Context) {
		endpoints := map[string]string{
			"feed":    "/feeds/rss?address=<address>",
			"health":  "/health",
			"metrics": "/metrics",
		}

		if apiAccessKey != "" {
			endpoints["define"] = "/api/feeds (POST)"
			endpoints["feeds"] = "/api/feeds"
			endpoints["workers"] = "/api/feeds/workers"
			endpoints["refresh"] = "/api/feeds/refresh (POST)"
			endpoints["feed_posts"] = "/api/feeds/posts?address=<address>"
			endpoints["posts"] = "/api/posts"
			endpoints["post"] = "/api/posts/lookup?guid=<guid>"
		}

		c.JSON(http.StatusOK, gin.H{
			"service":     "RSS Feeds",
			"version":     cfg.GetVersion(),
			"description": "RSS feed poller with per-feed workers, backoff and deduplicating storage",
			"endpoints":   endpoints,
			"api_status": map[string]interface{}{
				"enabled":       apiAccessKey != "",
				"auth_required": apiAccessKey != "",
				"header":        apiKeyHeader,
			},
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}
