package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lysyi3m/rss-feeds/app/feed"
)

type fakeCollector struct {
	address   string
	connected atomic.Bool
	fetches   atomic.Int32
	// content returns the body of the n-th fetch, starting at 1.
	content func(n int) []byte
}

func (c *fakeCollector) Open() bool {
	c.connected.Store(c.address != "")
	return c.connected.Load()
}

func (c *fakeCollector) Close() bool {
	c.connected.Store(false)
	return true
}

func (c *fakeCollector) Fetch(ctx context.Context) []byte {
	n := int(c.fetches.Add(1))
	if c.content == nil {
		return nil
	}
	return c.content(n)
}

func (c *fakeCollector) Connected() bool { return c.connected.Load() }
func (c *fakeCollector) Address() string { return c.address }

func alwaysContent(n int) []byte { return []byte("<rss/>") }

func neverContent(n int) []byte { return nil }

type fakeExtractor struct{}

func (e *fakeExtractor) ContentType() feed.ContentType { return feed.ContentTypeXML }

func (e *fakeExtractor) Extract(content []byte) (*feed.Feed, error) {
	if string(content) == "bad" {
		return nil, errors.New("malformed")
	}
	return &feed.Feed{Address: "https://example.com/rss", Title: "Example"}, nil
}

type fakeStore struct {
	mu      sync.Mutex
	upserts []*feed.Feed
	err     error
}

func (s *fakeStore) UpsertFeed(ctx context.Context, f *feed.Feed) ([]feed.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.upserts = append(s.upserts, f)
	return f.Posts, nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.upserts)
}

// recordingSleeper returns immediately and remembers every requested wait.
type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleeper) sleep(d time.Duration, stop <-chan struct{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return true
}

func (s *recordingSleeper) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

// blockingSleeper announces each sleep and blocks until stop fires.
type blockingSleeper struct {
	sleeping chan struct{}
}

func newBlockingSleeper() *blockingSleeper {
	return &blockingSleeper{sleeping: make(chan struct{}, 16)}
}

func (s *blockingSleeper) sleep(d time.Duration, stop <-chan struct{}) bool {
	s.sleeping <- struct{}{}
	<-stop
	return false
}

func newTestWorker(c *fakeCollector, store *fakeStore, opts ...WorkerOption) *Worker {
	w := NewWorker(Definition{
		Address:     c.address,
		ContentType: feed.ContentTypeXML,
		SourceType:  feed.SourceTypeREST,
	}, store, opts...)
	w.AssignCollector(c)
	w.AssignExtractor(&fakeExtractor{})
	return w
}

func track(r *Registry, w *Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers = append(r.workers, w)
}

func joinWithin(w *Worker, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		w.Join()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
