package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lysyi3m/rss-feeds/app/feed"
)

const postSelect = `
	SELECT p.id, p.feed_id, f.address, p.guid, p.title, p.link, p.description, p.published_at, p.created_at
	FROM posts p
	JOIN feeds f ON f.id = p.feed_id
`

// PostStore serves read access to stored posts. Posts are only written
// through FeedStore.UpsertFeed.
type PostStore struct {
	db *DB
}

func NewPostStore(db *DB) *PostStore {
	return &PostStore{db: db}
}

// GetPostByGUID returns nil when no post has that guid.
func (s *PostStore) GetPostByGUID(ctx context.Context, guid string) (*feed.Post, error) {
	row := s.db.QueryRowContext(ctx, postSelect+`WHERE p.guid = ?`, guid)

	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post by guid: %w", err)
	}
	return post, nil
}

func (s *PostStore) GetAllPosts(ctx context.Context) ([]feed.Post, error) {
	return queryPosts(ctx, s.db, "")
}

func (s *PostStore) GetPostsByFeedAddress(ctx context.Context, address string) ([]feed.Post, error) {
	return queryPosts(ctx, s.db, `WHERE f.address = ?`, address)
}

// queryPosts returns matching posts, newest first.
func queryPosts(ctx context.Context, q queryer, where string, args ...any) ([]feed.Post, error) {
	rows, err := q.QueryContext(ctx, postSelect+where+` ORDER BY p.published_at DESC, p.guid`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get posts: %w", err)
	}
	defer rows.Close()

	var posts []feed.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		posts = append(posts, *post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post rows: %w", err)
	}

	return posts, nil
}

func scanPost(row scanner) (*feed.Post, error) {
	var p feed.Post
	var publishedAt, createdAt string

	err := row.Scan(&p.ID, &p.FeedID, &p.FeedAddress, &p.GUID, &p.Title, &p.Link, &p.Description, &publishedAt, &createdAt)
	if err != nil {
		return nil, err
	}

	if p.PublishedAt, err = parseTime(publishedAt); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}

	return &p, nil
}
