package tasks

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lysyi3m/rss-feeds/app/collector"
	"github.com/lysyi3m/rss-feeds/app/extractor"
	"github.com/lysyi3m/rss-feeds/app/feed"
	"github.com/lysyi3m/rss-feeds/app/metrics"
)

const DefaultPollInterval = 30 * time.Second

// DefaultBackoff is the wait sequence after consecutive failed refreshes.
var DefaultBackoff = []time.Duration{2 * time.Minute, 5 * time.Minute, 8 * time.Minute}

type WorkerOption func(*Worker)

// WithPollInterval sets the wait after a successful refresh.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithBackoff sets the escalating waits after failures. The loop gives up
// once the sequence is exhausted.
func WithBackoff(steps []time.Duration) WorkerOption {
	return func(w *Worker) {
		w.backoff = append([]time.Duration(nil), steps...)
	}
}

// Worker polls one feed address. The loop fetches, extracts and stores the
// feed, then sleeps: the poll interval after success, the next backoff step
// after failure. A stop request ends the loop at the next iteration and
// interrupts a pending sleep, but never a fetch in flight.
type Worker struct {
	address     string
	contentType feed.ContentType
	sourceType  feed.SourceType

	collector collector.Collector
	extractor extractor.Extractor
	store     FeedStore

	pollInterval time.Duration
	backoff      []time.Duration

	// sleep waits for d and reports false when stop fired first.
	sleep func(d time.Duration, stop <-chan struct{}) bool

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}

	stopRequested atomic.Bool
	fallbackIndex atomic.Int32

	refreshMu sync.Mutex
	// forceMu spans a forced refresh from the running check to the restart.
	forceMu sync.Mutex
}

func NewWorker(def Definition, store FeedStore, opts ...WorkerOption) *Worker {
	w := &Worker{
		address:      def.Address,
		contentType:  def.ContentType,
		sourceType:   def.SourceType,
		store:        store,
		pollInterval: DefaultPollInterval,
		backoff:      append([]time.Duration(nil), DefaultBackoff...),
		sleep:        sleepUntilStopped,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Worker) Address() string {
	return w.address
}

func (w *Worker) ContentType() feed.ContentType {
	return w.contentType
}

func (w *Worker) SourceType() feed.SourceType {
	return w.sourceType
}

func (w *Worker) AssignCollector(c collector.Collector) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.collector = c
}

func (w *Worker) AssignExtractor(e extractor.Extractor) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.extractor = e
}

// Start launches the polling loop. A worker whose loop has ended may be
// started again.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkAssigned(); err != nil {
		return err
	}
	if w.running {
		return ErrWorkerRunning
	}

	w.running = true
	w.stopRequested.Store(false)
	w.fallbackIndex.Store(0)
	w.stopCh = make(chan struct{})
	w.done = make(chan struct{})

	metrics.WorkersActive.Inc()
	go w.run(w.stopCh, w.done)

	slog.Info("Worker started", "address", w.address, "content_type", w.contentType)
	return nil
}

// Stop requests the loop to end. It does not wait; use Join for that.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.stopRequested.CompareAndSwap(false, true) {
		return
	}
	if w.running {
		close(w.stopCh)
	}
	slog.Debug("Worker stop requested", "address", w.address)
}

// Join blocks until the current loop, if any, has ended.
func (w *Worker) Join() {
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (w *Worker) IsAlive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Worker) StopRequested() bool {
	return w.stopRequested.Load()
}

func (w *Worker) FallbackIndex() int {
	return int(w.fallbackIndex.Load())
}

// ForceRefresh runs one refresh inline on a worker that is not running and
// restarts its loop when the refresh succeeds. Concurrent calls are
// serialized: a caller that waited behind a successful one sees
// ErrWorkerRunning without fetching.
func (w *Worker) ForceRefresh(ctx context.Context) error {
	w.forceMu.Lock()
	defer w.forceMu.Unlock()

	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrWorkerRunning
	}
	err := w.checkAssigned()
	w.mu.Unlock()
	if err != nil {
		return err
	}

	if !w.refresh(ctx) {
		slog.Warn("Forced refresh failed", "address", w.address)
		return ErrRefreshFailed
	}

	slog.Info("Forced refresh succeeded, restarting worker", "address", w.address)
	return w.Start()
}

func (w *Worker) checkAssigned() error {
	if w.collector == nil {
		return ErrMissingCollector
	}
	if w.extractor == nil {
		return ErrMissingExtractor
	}
	return nil
}

func (w *Worker) run(stop <-chan struct{}, done chan<- struct{}) {
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()

		metrics.WorkersActive.Dec()
		close(done)
	}()

	ctx := context.Background()
	steps := len(w.backoff)
	idx := 0

	for !w.stopRequested.Load() && idx <= steps {
		if w.refresh(ctx) {
			idx = 0
			w.fallbackIndex.Store(0)
			slog.Debug("Next refresh scheduled", "address", w.address, "wait", w.pollInterval)
			w.sleep(w.pollInterval, stop)
			continue
		}

		if idx < steps {
			slog.Info("Refresh failed, retrying", "address", w.address, "attempt", idx+1, "wait", w.backoff[idx])
			w.sleep(w.backoff[idx], stop)
		}
		idx++
		w.fallbackIndex.Store(int32(idx))
	}

	if idx > steps {
		metrics.WorkersExhausted.Inc()
		slog.Warn("Worker gave up after repeated failures", "address", w.address, "attempts", idx)
		return
	}
	slog.Info("Worker stopped", "address", w.address)
}

// refresh performs one fetch-extract-store cycle and reports success.
// Failures are logged and never returned.
func (w *Worker) refresh(ctx context.Context) bool {
	w.refreshMu.Lock()
	defer w.refreshMu.Unlock()

	start := time.Now()
	inserted := 0
	ok := func() bool {
		content := collector.Collect(ctx, w.collector)
		if len(content) == 0 {
			slog.Warn("No content fetched", "address", w.address)
			return false
		}

		extracted, err := w.extractor.Extract(content)
		if err != nil || extracted == nil {
			slog.Warn("Failed to extract feed", "address", w.address, "content_type", w.contentType, "error", err)
			return false
		}
		extracted.SourceAddress = w.address

		added, err := w.store.UpsertFeed(ctx, extracted)
		if err != nil {
			slog.Error("Failed to store feed", "address", w.address, "error", err)
			return false
		}

		inserted = len(added)
		return true
	}()

	metrics.RecordRefresh(ok, time.Since(start).Seconds(), inserted)
	if ok {
		slog.Info("Feed refreshed", "address", w.address, "new_posts", inserted, "duration", time.Since(start))
	}
	return ok
}

func sleepUntilStopped(d time.Duration, stop <-chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-stop:
		return false
	}
}
