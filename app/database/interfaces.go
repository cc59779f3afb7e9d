package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lysyi3m/rss-feeds/app/feed"
)

// ErrMissingAddress rejects feeds extracted without a self link.
var ErrMissingAddress = errors.New("feed has no address")

type FeedRepository interface {
	// UpsertFeed merges f into the stored feed with the same address, or
	// inserts it, and returns the posts that were actually added.
	UpsertFeed(ctx context.Context, f *feed.Feed) ([]feed.Post, error)

	GetFeedByAddress(ctx context.Context, address string) (*feed.Feed, error)
	// GetFeedBySourceAddress finds a feed by the address it is polled from,
	// which need not match its self link.
	GetFeedBySourceAddress(ctx context.Context, address string) (*feed.Feed, error)
	GetAllFeeds(ctx context.Context) ([]feed.Feed, error)
	GetFeedCount(ctx context.Context) (int, error)
}

type PostRepository interface {
	GetPostByGUID(ctx context.Context, guid string) (*feed.Post, error)
	GetAllPosts(ctx context.Context) ([]feed.Post, error)
	GetPostsByFeedAddress(ctx context.Context, address string) ([]feed.Post, error)
}

var (
	_ FeedRepository = (*FeedStore)(nil)
	_ PostRepository = (*PostStore)(nil)
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
