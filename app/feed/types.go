package feed

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultTitle       = "Title Could Not Be Found"
	DefaultDescription = "There is no Description in this Feed"
	DefaultTTL         = -1
)

// ContentType selects the extractor used for a feed.
type ContentType string

const (
	ContentTypeXML       ContentType = "Xml"
	ContentTypeJSON      ContentType = "Json"
	ContentTypePlain     ContentType = "Plain"
	ContentTypeUndefined ContentType = "Undefined"
)

// SourceType selects the collector used for a feed.
type SourceType string

const (
	SourceTypeREST      SourceType = "Rest"
	SourceTypeUndefined SourceType = "Undefined"
)

var (
	ErrUnknownContentType = fmt.Errorf("unknown content type")
	ErrUnknownSourceType  = fmt.Errorf("unknown source type")
)

func ParseContentType(s string) (ContentType, error) {
	for _, ct := range []ContentType{ContentTypeXML, ContentTypeJSON, ContentTypePlain, ContentTypeUndefined} {
		if strings.EqualFold(strings.TrimSpace(s), string(ct)) {
			return ct, nil
		}
	}
	return ContentTypeUndefined, fmt.Errorf("%w: '%s'", ErrUnknownContentType, s)
}

func ParseSourceType(s string) (SourceType, error) {
	for _, st := range []SourceType{SourceTypeREST, SourceTypeUndefined} {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, nil
		}
	}
	return SourceTypeUndefined, fmt.Errorf("%w: '%s'", ErrUnknownSourceType, s)
}

// Feed is a syndication source's metadata plus its posts. Address identifies
// the feed across refreshes and never changes once stored.
type Feed struct {
	ID            string // Database UUID, empty for candidate feeds
	Address       string
	SourceAddress string // Address the feed is polled from, empty until collected
	Title         string
	Description   string
	TTL           int
	LastBuildDate time.Time
	Posts         []Post
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Post is a single syndicated item. Posts are identified by GUID only.
type Post struct {
	ID          string // Database UUID, empty for candidate posts
	FeedID      string
	FeedAddress string
	GUID        string
	Title       string
	Link        string
	Description string
	PublishedAt time.Time
	CreatedAt   time.Time
}

// Equal reports whether two posts share a GUID. Other fields are ignored.
func (p Post) Equal(other Post) bool {
	return p.GUID == other.GUID
}

func (f *Feed) HasPost(post Post) bool {
	for _, existing := range f.Posts {
		if existing.Equal(post) {
			return true
		}
	}
	return false
}

// Merge copies the refreshable fields of incoming into f and appends the
// incoming posts f does not hold yet. The appended posts are returned in
// incoming order.
func (f *Feed) Merge(incoming *Feed) []Post {
	f.Title = incoming.Title
	f.Description = incoming.Description
	f.TTL = incoming.TTL
	f.LastBuildDate = incoming.LastBuildDate
	if incoming.SourceAddress != "" {
		f.SourceAddress = incoming.SourceAddress
	}

	var added []Post
	for _, post := range incoming.Posts {
		if f.HasPost(post) {
			continue
		}
		post.FeedID = f.ID
		post.FeedAddress = f.Address
		f.Posts = append(f.Posts, post)
		added = append(added, post)
	}
	return added
}

// Configuration types

type Config struct {
	Name        string      // Derived from filename (without .yml extension)
	Address     string      `yaml:"address"`
	ContentType ContentType `yaml:"content_type"`
	SourceType  SourceType  `yaml:"source_type"`
	Username    string      `yaml:"username"`
	Password    string      `yaml:"password"`
	Enabled     *bool       `yaml:"enabled"`
}

func (c *Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}
