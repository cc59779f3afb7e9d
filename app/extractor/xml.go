package extractor

import (
	"bytes"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mmcdole/gofeed/rss"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/lysyi3m/rss-feeds/app/feed"
)

var _ Extractor = (*XMLExtractor)(nil)

var encodingDeclaration = regexp.MustCompile(`\bencoding=["']([-\w.:]+)["']`)

// Feed attributes read from the channel, in reporting order.
var feedAttributes = []string{"title", "link", "description", "ttl", "last_build_date"}

// Every item must carry all of these to become a Post.
var postAttributes = []string{"title", "link", "description", "guid", "pubDate"}

// XMLExtractor reads RSS 2.0 documents.
type XMLExtractor struct {
	now func() time.Time
}

func NewXMLExtractor() *XMLExtractor {
	return &XMLExtractor{now: time.Now}
}

func (e *XMLExtractor) ContentType() feed.ContentType {
	return feed.ContentTypeXML
}

func (e *XMLExtractor) Extract(content []byte) (*feed.Feed, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, ErrEmptyContent
	}

	content, err := toUTF8(content)
	if err != nil {
		return nil, err
	}

	channel, err := (&rss.Parser{}).Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse XML feed: %w", err)
	}

	result := e.buildFeed(channel)
	result.Posts = e.buildPosts(channel, result)

	slog.Debug("Feed extracted", "address", result.Address, "items", len(channel.Items), "posts", len(result.Posts))

	return result, nil
}

// toUTF8 returns content as UTF-8 with its encoding declaration removed.
// Content that is not valid UTF-8 yet is decoded from the declared encoding
// first, which covers servers that omit the charset from Content-Type.
func toUTF8(content []byte) ([]byte, error) {
	loc := encodingDeclaration.FindSubmatchIndex(content)
	if loc == nil {
		return content, nil
	}

	if !utf8.Valid(content) {
		label := string(content[loc[2]:loc[3]])
		enc, err := htmlindex.Get(label)
		if err != nil {
			return nil, fmt.Errorf("unsupported XML encoding %q: %w", label, err)
		}
		decoded, err := enc.NewDecoder().Bytes(content)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s content: %w", label, err)
		}
		content = decoded
		if loc = encodingDeclaration.FindIndex(content); loc == nil {
			return content, nil
		}
	}

	return stripEncoding(content, loc[0], loc[1]), nil
}

func stripEncoding(content []byte, start, end int) []byte {
	stripped := make([]byte, 0, len(content)-(end-start))
	stripped = append(stripped, content[:start]...)
	return append(stripped, content[end:]...)
}

func (e *XMLExtractor) buildFeed(channel *rss.Feed) *feed.Feed {
	readings := map[string]string{
		"title":           channel.Title,
		"link":            atomLink(channel),
		"description":     channel.Description,
		"ttl":             strings.TrimSpace(channel.TTL),
		"last_build_date": channel.LastBuildDate,
	}
	for _, attr := range feedAttributes {
		if readings[attr] == "" {
			slog.Warn("Feed attribute does not exist in XML content", "attribute", attr)
		}
	}

	result := &feed.Feed{
		Address:     readings["link"],
		Title:       feed.DefaultTitle,
		Description: feed.DefaultDescription,
		TTL:         feed.DefaultTTL,
	}
	if readings["title"] != "" {
		result.Title = readings["title"]
	}
	if readings["description"] != "" {
		result.Description = readings["description"]
	}
	if readings["ttl"] != "" {
		ttl, err := strconv.Atoi(readings["ttl"])
		if err != nil {
			slog.Warn("Feed ttl is not an integer, using default", "ttl", readings["ttl"], "default", feed.DefaultTTL)
		} else {
			result.TTL = ttl
		}
	}

	lastBuild, err := ParseDate(readings["last_build_date"], e.now)
	if err != nil {
		slog.Warn("Feed last build date unparseable, using current time", "address", result.Address, "error", err)
		lastBuild = e.now()
	}
	result.LastBuildDate = lastBuild

	return result
}

func (e *XMLExtractor) buildPosts(channel *rss.Feed, owner *feed.Feed) []feed.Post {
	posts := make([]feed.Post, 0, len(channel.Items))
	for _, item := range channel.Items {
		if item == nil {
			continue
		}
		if post, ok := e.buildPost(item, owner); ok {
			posts = append(posts, post)
		}
	}
	return posts
}

func (e *XMLExtractor) buildPost(item *rss.Item, owner *feed.Feed) (feed.Post, bool) {
	var guid string
	if item.GUID != nil {
		guid = strings.TrimSpace(item.GUID.Value)
	}

	readings := map[string]string{
		"title":       item.Title,
		"link":        item.Link,
		"description": item.Description,
		"guid":        guid,
		"pubDate":     item.PubDate,
	}

	var missing []string
	for _, attr := range postAttributes {
		if readings[attr] == "" {
			missing = append(missing, attr)
		}
	}
	if len(missing) > 0 {
		slog.Warn("Not all post attributes are extracted, skipping item", "feed", owner.Address, "guid", guid, "missing", missing)
		return feed.Post{}, false
	}

	published, err := ParseDate(item.PubDate, e.now)
	if err != nil {
		slog.Warn("Post publication date unparseable, skipping item", "feed", owner.Address, "guid", guid, "error", err)
		return feed.Post{}, false
	}

	return feed.Post{
		FeedAddress: owner.Address,
		GUID:        guid,
		Title:       item.Title,
		Link:        item.Link,
		Description: item.Description,
		PublishedAt: published,
	}, true
}

// atomLink returns the href of the channel's first atom:link element.
func atomLink(channel *rss.Feed) string {
	for _, link := range channel.Extensions["atom"]["link"] {
		if href := strings.TrimSpace(link.Attrs["href"]); href != "" {
			return href
		}
	}
	return ""
}
