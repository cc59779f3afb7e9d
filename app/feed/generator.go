package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"strconv"
	"time"
)

const rssDateLayout = "Mon, 02 Jan 2006 15:04:05 -0700"

// Generator renders a stored feed back into an RSS 2.0 document that the
// XML extractor can read again.
type Generator struct {
	version string
}

func NewGenerator(version string) *Generator {
	return &Generator{version: version}
}

func (g *Generator) Run(f Feed) (string, error) {
	if f.Address == "" {
		return "", fmt.Errorf("cannot render feed without address")
	}

	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", f.Title, 4)
	g.writeElement(&buf, "link", f.Address, 4)
	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(f.Address)))
	g.writeElement(&buf, "description", f.Description, 4)

	if f.TTL >= 0 {
		g.writeElement(&buf, "ttl", strconv.Itoa(f.TTL), 4)
	}
	if !f.LastBuildDate.IsZero() {
		g.writeElement(&buf, "lastBuildDate", f.LastBuildDate.Format(rssDateLayout), 4)
	}
	g.writeElement(&buf, "generator", "RSS Feeds/"+g.version, 4)

	for _, post := range f.Posts {
		g.writeItem(&buf, post)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, post Post) {
	buf.WriteString("    <item>\n")

	buf.WriteString(fmt.Sprintf("      <guid isPermaLink=\"%t\">", g.isURL(post.GUID)))
	xml.EscapeText(buf, []byte(post.GUID))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", post.Title, 6)
	g.writeElement(buf, "link", post.Link, 6)
	g.writeElement(buf, "description", post.Description, 6)
	g.writeElement(buf, "pubDate", post.PublishedAt.In(time.UTC).Format(rssDateLayout), 6)

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func (g *Generator) isURL(s string) bool {
	return (len(s) > 7 && s[:7] == "http://") || (len(s) > 8 && s[:8] == "https://")
}
