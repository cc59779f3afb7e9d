package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/rss-feeds/app/feed"
)

const feedColumns = `id, address, source_address, title, description, ttl, last_build_date, created_at, updated_at`

// FeedStore persists feeds and merges refreshed content into them.
type FeedStore struct {
	db  *DB
	now func() time.Time
}

func NewFeedStore(db *DB) *FeedStore {
	return &FeedStore{db: db, now: time.Now}
}

// UpsertFeed runs in a single transaction. A stored feed keeps its id and
// address; its title, description, ttl and last build date are overwritten
// and only posts with unseen guids are inserted. The source address is
// updated when the incoming feed carries one.
func (s *FeedStore) UpsertFeed(ctx context.Context, incoming *feed.Feed) (added []feed.Post, err error) {
	if incoming == nil || strings.TrimSpace(incoming.Address) == "" {
		return nil, ErrMissingAddress
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := s.now().UTC()

	stored, err := getFeedByAddress(ctx, tx, incoming.Address)
	if err != nil {
		return nil, err
	}

	if stored == nil {
		stored = &feed.Feed{
			ID:            uuid.NewString(),
			Address:       incoming.Address,
			SourceAddress: incoming.SourceAddress,
			Title:         incoming.Title,
			Description:   incoming.Description,
			TTL:           incoming.TTL,
			LastBuildDate: incoming.LastBuildDate,
			CreatedAt:     now,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO feeds (`+feedColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, stored.ID, stored.Address, stored.SourceAddress, stored.Title, stored.Description, stored.TTL,
			formatTime(stored.LastBuildDate), formatTime(now), formatTime(now))
		if err != nil {
			return nil, fmt.Errorf("failed to insert feed: %w", err)
		}
		slog.Info("Feed stored", "address", stored.Address, "id", stored.ID)
	}

	candidates := stored.Merge(incoming)

	_, err = tx.ExecContext(ctx, `
		UPDATE feeds
		SET source_address = ?, title = ?, description = ?, ttl = ?, last_build_date = ?, updated_at = ?
		WHERE id = ?
	`, stored.SourceAddress, stored.Title, stored.Description, stored.TTL, formatTime(stored.LastBuildDate), formatTime(now), stored.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update feed: %w", err)
	}

	for _, post := range candidates {
		post.ID = uuid.NewString()
		post.CreatedAt = now

		res, err := tx.ExecContext(ctx, `
			INSERT INTO posts (id, feed_id, guid, title, link, description, published_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(guid) DO NOTHING
		`, post.ID, stored.ID, post.GUID, post.Title, post.Link, post.Description,
			formatTime(post.PublishedAt), formatTime(now))
		if err != nil {
			return nil, fmt.Errorf("failed to insert post %s: %w", post.GUID, err)
		}

		if n, _ := res.RowsAffected(); n == 0 {
			slog.Warn("Post guid already stored under another feed, skipping", "feed", stored.Address, "guid", post.GUID)
			continue
		}
		added = append(added, post)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit feed upsert: %w", err)
	}

	return added, nil
}

// GetFeedByAddress returns the feed with its posts, or nil when absent.
func (s *FeedStore) GetFeedByAddress(ctx context.Context, address string) (*feed.Feed, error) {
	return getFeedByAddress(ctx, s.db, address)
}

// GetFeedBySourceAddress returns the feed polled from address with its
// posts, or nil when absent.
func (s *FeedStore) GetFeedBySourceAddress(ctx context.Context, address string) (*feed.Feed, error) {
	if address == "" {
		return nil, nil
	}
	return getFeedWhere(ctx, s.db, "source_address", address)
}

// GetAllFeeds returns stored feeds without their posts.
func (s *FeedStore) GetAllFeeds(ctx context.Context) ([]feed.Feed, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+feedColumns+` FROM feeds ORDER BY created_at, address`)
	if err != nil {
		return nil, fmt.Errorf("failed to get feeds: %w", err)
	}
	defer rows.Close()

	var feeds []feed.Feed
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, *f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}

func (s *FeedStore) GetFeedCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feeds").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

func getFeedByAddress(ctx context.Context, q queryer, address string) (*feed.Feed, error) {
	return getFeedWhere(ctx, q, "address", address)
}

// getFeedWhere loads the first feed whose column equals value. column is
// always one of the fixed names above.
func getFeedWhere(ctx context.Context, q queryer, column, value string) (*feed.Feed, error) {
	row := q.QueryRowContext(ctx, `SELECT `+feedColumns+` FROM feeds WHERE `+column+` = ? ORDER BY created_at LIMIT 1`, value)

	f, err := scanFeed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed by %s: %w", column, err)
	}

	posts, err := queryPosts(ctx, q, `WHERE p.feed_id = ?`, f.ID)
	if err != nil {
		return nil, err
	}
	f.Posts = posts

	return f, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFeed(row scanner) (*feed.Feed, error) {
	var f feed.Feed
	var lastBuild, createdAt, updatedAt string

	err := row.Scan(&f.ID, &f.Address, &f.SourceAddress, &f.Title, &f.Description, &f.TTL, &lastBuild, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan feed row: %w", err)
	}

	if f.LastBuildDate, err = parseTime(lastBuild); err != nil {
		return nil, err
	}
	if f.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if f.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &f, nil
}
