package collector

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"
)

const DefaultRequestTimeout = 3 * time.Second

var _ Collector = (*RestCollector)(nil)

// RestCollector retrieves a feed with a single HTTP GET per fetch.
type RestCollector struct {
	address    string
	username   string
	password   string
	userAgent  string
	httpClient *http.Client
	connected  bool
}

type RestOption func(*RestCollector)

func WithBasicAuth(username, password string) RestOption {
	return func(c *RestCollector) {
		c.username = username
		c.password = password
	}
}

func WithUserAgent(userAgent string) RestOption {
	return func(c *RestCollector) {
		c.userAgent = userAgent
	}
}

func WithTimeout(timeout time.Duration) RestOption {
	return func(c *RestCollector) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

func NewRestCollector(address string, opts ...RestOption) *RestCollector {
	c := &RestCollector{
		address:    address,
		httpClient: &http.Client{Timeout: DefaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RestCollector) Address() string {
	return c.address
}

func (c *RestCollector) Connected() bool {
	return c.connected
}

// Open makes no network call; a REST source is usable as soon as it has an
// address.
func (c *RestCollector) Open() bool {
	if c.address == "" {
		slog.Warn("Server address is not set, connection cannot be made")
		c.connected = false
		return false
	}
	c.connected = true
	return true
}

func (c *RestCollector) Close() bool {
	c.connected = false
	return true
}

func (c *RestCollector) Fetch(ctx context.Context) []byte {
	data, err := c.get(ctx)
	if err != nil {
		slog.Warn("REST GET failed", "address", c.address, "error", err)
		return nil
	}
	if len(data) == 0 {
		slog.Info("REST GET returned no content", "address", c.address)
		return nil
	}

	slog.Info("REST GET succeeded", "address", c.address, "bytes", len(data))
	return data
}

func (c *RestCollector) get(ctx context.Context) ([]byte, error) {
	if c.address == "" {
		return nil, fmt.Errorf("address is not set")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.address, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return decodeBody(data, resp.Header.Get("Content-Type"))
}

// decodeBody converts a body to UTF-8 using the charset announced in the
// Content-Type header. Bodies without a charset are passed through.
func decodeBody(data []byte, contentType string) ([]byte, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return data, nil
	}

	charset := strings.ToLower(strings.TrimSpace(params["charset"]))
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return data, nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		slog.Debug("Unknown charset, using body as is", "charset", charset)
		return data, nil
	}

	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s body: %w", charset, err)
	}
	return decoded, nil
}
