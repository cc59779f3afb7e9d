package extractor

import (
	"fmt"

	"github.com/lysyi3m/rss-feeds/app/feed"
)

var _ Extractor = (*JSONExtractor)(nil)

// JSONExtractor is registered for JSON feeds but does not parse them yet.
type JSONExtractor struct{}

func NewJSONExtractor() *JSONExtractor {
	return &JSONExtractor{}
}

func (e *JSONExtractor) ContentType() feed.ContentType {
	return feed.ContentTypeJSON
}

func (e *JSONExtractor) Extract(content []byte) (*feed.Feed, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, feed.ContentTypeJSON)
}
