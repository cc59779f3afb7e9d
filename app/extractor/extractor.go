package extractor

import (
	"errors"

	"github.com/lysyi3m/rss-feeds/app/feed"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported feed format")
	ErrEmptyContent      = errors.New("feed content is empty")
)

// Extractor turns raw feed content into a candidate Feed with its Posts.
type Extractor interface {
	Extract(content []byte) (*feed.Feed, error)
	ContentType() feed.ContentType
}
