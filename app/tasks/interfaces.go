package tasks

import (
	"context"
	"errors"

	"github.com/lysyi3m/rss-feeds/app/feed"
)

var (
	ErrMissingCollector   = errors.New("worker has no collector assigned")
	ErrMissingExtractor   = errors.New("worker has no extractor assigned")
	ErrWorkerRunning      = errors.New("worker is running")
	ErrWorkerExists       = errors.New("worker already defined for address")
	ErrWorkerNotFound     = errors.New("no worker defined for address")
	ErrRefreshFailed      = errors.New("refresh failed")
	ErrUnknownContentType = errors.New("no extractor for content type")
	ErrUnknownSourceType  = errors.New("no collector for source type")
)

// FeedStore is the merge gateway a Worker hands extracted feeds to.
// database.FeedStore satisfies it.
type FeedStore interface {
	UpsertFeed(ctx context.Context, f *feed.Feed) ([]feed.Post, error)
}

// WorkerRegistryInterface is the control surface used by the HTTP layer.
type WorkerRegistryInterface interface {
	Define(def Definition) (*Worker, error)
	Exists(address string) bool
	Statuses() []WorkerStatus
	ForceRefresh(ctx context.Context, address string) error
	Count() int
	StopAll()
}
