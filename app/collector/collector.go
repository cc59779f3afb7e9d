package collector

import (
	"context"
	"log/slog"
)

// Collector fetches raw feed content over one transport.
type Collector interface {
	// Open prepares the connection and reports whether it is usable.
	Open() bool
	// Close releases the connection and reports whether that succeeded.
	Close() bool
	// Fetch returns the current feed content, or nil when nothing could be
	// retrieved. Transport errors never escape a collector.
	Fetch(ctx context.Context) []byte
	Connected() bool
	Address() string
}

// Use opens c, runs body and closes c again on every exit path, including a
// panic in body. Close is skipped when Open did not succeed.
func Use(c Collector, body func(c Collector)) {
	if c.Open() {
		slog.Debug("Connection set up", "address", c.Address())
	} else {
		slog.Warn("Failed to set up connection", "address", c.Address())
	}

	defer release(c)

	body(c)
}

// Collect runs a single scoped fetch and returns the content, nil when the
// connection was unavailable or the fetch came back empty.
func Collect(ctx context.Context, c Collector) []byte {
	var content []byte
	Use(c, func(c Collector) {
		if c.Connected() {
			content = c.Fetch(ctx)
		}
	})
	return content
}

func release(c Collector) {
	if !c.Connected() {
		return
	}
	if c.Close() {
		slog.Debug("Connection closed", "address", c.Address())
	} else {
		slog.Warn("Failed to close connection", "address", c.Address())
	}
}
