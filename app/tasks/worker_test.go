package tasks

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestWorkerGivesUpAfterBackoffSequence(t *testing.T) {
	c := &fakeCollector{address: "https://example.com/rss", content: neverContent}
	store := &fakeStore{}
	sleeper := &recordingSleeper{}

	w := newTestWorker(c, store)
	w.sleep = sleeper.sleep

	if err := w.Start(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !joinWithin(w, 2*time.Second) {
		t.Fatal("Expected worker loop to end on its own")
	}

	expected := []time.Duration{2 * time.Minute, 5 * time.Minute, 8 * time.Minute}
	if got := sleeper.recorded(); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected waits %v, got %v", expected, got)
	}
	if got := c.fetches.Load(); got != 4 {
		t.Errorf("Expected 4 attempts, got %d", got)
	}
	if w.IsAlive() {
		t.Error("Expected worker to be dead after giving up")
	}
	if w.FallbackIndex() <= len(expected) {
		t.Errorf("Expected fallback index past the sequence, got %d", w.FallbackIndex())
	}
	if store.count() != 0 {
		t.Errorf("Expected nothing stored, got %d upserts", store.count())
	}
}

func TestWorkerSuccessResetsFallbackIndex(t *testing.T) {
	// Attempts 1, 2 fail, 3 succeeds, the rest fail.
	c := &fakeCollector{address: "https://example.com/rss", content: func(n int) []byte {
		if n == 3 {
			return []byte("<rss/>")
		}
		return nil
	}}
	store := &fakeStore{}
	sleeper := &recordingSleeper{}

	w := newTestWorker(c, store,
		WithPollInterval(10*time.Second),
		WithBackoff([]time.Duration{time.Second, 2 * time.Second, 3 * time.Second}),
	)
	w.sleep = sleeper.sleep

	if err := w.Start(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !joinWithin(w, 2*time.Second) {
		t.Fatal("Expected worker loop to end on its own")
	}

	expected := []time.Duration{
		time.Second, 2 * time.Second,
		10 * time.Second,
		time.Second, 2 * time.Second, 3 * time.Second,
	}
	if got := sleeper.recorded(); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected waits %v, got %v", expected, got)
	}
	if got := c.fetches.Load(); got != 7 {
		t.Errorf("Expected 7 attempts, got %d", got)
	}
	if store.count() != 1 {
		t.Errorf("Expected 1 upsert, got %d", store.count())
	}
}

func TestWorkerStoreErrorCountsAsFailure(t *testing.T) {
	c := &fakeCollector{address: "https://example.com/rss", content: alwaysContent}
	store := &fakeStore{err: errors.New("disk full")}
	sleeper := &recordingSleeper{}

	w := newTestWorker(c, store, WithBackoff(nil))
	w.sleep = sleeper.sleep

	if err := w.Start(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !joinWithin(w, 2*time.Second) {
		t.Fatal("Expected worker loop to end on its own")
	}

	if got := c.fetches.Load(); got != 1 {
		t.Errorf("Expected a single attempt, got %d", got)
	}
	if got := sleeper.recorded(); len(got) != 0 {
		t.Errorf("Expected no waits, got %v", got)
	}
}

func TestWorkerExtractErrorCountsAsFailure(t *testing.T) {
	c := &fakeCollector{address: "https://example.com/rss", content: func(n int) []byte { return []byte("bad") }}
	store := &fakeStore{}

	w := newTestWorker(c, store)
	if w.refresh(context.Background()) {
		t.Error("Expected refresh to fail on malformed content")
	}
	if store.count() != 0 {
		t.Errorf("Expected nothing stored, got %d upserts", store.count())
	}
}

func TestWorkerStartRequiresCollectorAndExtractor(t *testing.T) {
	w := NewWorker(Definition{Address: "https://example.com/rss"}, &fakeStore{})

	if err := w.Start(); !errors.Is(err, ErrMissingCollector) {
		t.Errorf("Expected ErrMissingCollector, got: %v", err)
	}
	if err := w.ForceRefresh(context.Background()); !errors.Is(err, ErrMissingCollector) {
		t.Errorf("Expected ErrMissingCollector from force refresh, got: %v", err)
	}

	w.AssignCollector(&fakeCollector{address: "https://example.com/rss"})
	if err := w.Start(); !errors.Is(err, ErrMissingExtractor) {
		t.Errorf("Expected ErrMissingExtractor, got: %v", err)
	}
	if w.IsAlive() {
		t.Error("Expected worker not to run without an extractor")
	}
}

func TestWorkerStartWhileRunning(t *testing.T) {
	c := &fakeCollector{address: "https://example.com/rss", content: alwaysContent}
	sleeper := newBlockingSleeper()

	w := newTestWorker(c, &fakeStore{})
	w.sleep = sleeper.sleep

	if err := w.Start(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	<-sleeper.sleeping

	if err := w.Start(); !errors.Is(err, ErrWorkerRunning) {
		t.Errorf("Expected ErrWorkerRunning, got: %v", err)
	}

	w.Stop()
	if !joinWithin(w, 2*time.Second) {
		t.Fatal("Expected worker to stop")
	}
}

func TestWorkerForceRefreshRejectedWhileRunning(t *testing.T) {
	c := &fakeCollector{address: "https://example.com/rss", content: alwaysContent}
	store := &fakeStore{}
	sleeper := newBlockingSleeper()

	w := newTestWorker(c, store)
	w.sleep = sleeper.sleep

	if err := w.Start(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	<-sleeper.sleeping

	fetches := c.fetches.Load()
	upserts := store.count()

	if err := w.ForceRefresh(context.Background()); !errors.Is(err, ErrWorkerRunning) {
		t.Errorf("Expected ErrWorkerRunning, got: %v", err)
	}
	if c.fetches.Load() != fetches || store.count() != upserts {
		t.Error("Expected rejected force refresh to have no side effects")
	}

	w.Stop()
	if !joinWithin(w, 2*time.Second) {
		t.Fatal("Expected worker to stop")
	}
}

func TestWorkerForceRefreshRestartsStoppedWorker(t *testing.T) {
	c := &fakeCollector{address: "https://example.com/rss", content: alwaysContent}
	store := &fakeStore{}
	sleeper := newBlockingSleeper()

	w := newTestWorker(c, store)
	w.sleep = sleeper.sleep

	if err := w.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !w.IsAlive() {
		t.Error("Expected worker to be restarted")
	}

	<-sleeper.sleeping
	if store.count() < 2 {
		t.Errorf("Expected inline refresh plus loop refresh, got %d upserts", store.count())
	}

	w.Stop()
	if !joinWithin(w, 2*time.Second) {
		t.Fatal("Expected worker to stop")
	}
	if !w.StopRequested() {
		t.Error("Expected stop to be recorded")
	}
}

func TestWorkerConcurrentForceRefreshRefreshesOnce(t *testing.T) {
	gate := make(chan struct{})
	fetching := make(chan struct{}, 1)
	c := &fakeCollector{address: "https://example.com/rss", content: func(n int) []byte {
		if n == 1 {
			fetching <- struct{}{}
			<-gate
		}
		return []byte("<rss/>")
	}}
	sleeper := newBlockingSleeper()

	w := newTestWorker(c, &fakeStore{})
	w.sleep = sleeper.sleep

	results := make(chan error, 2)
	go func() { results <- w.ForceRefresh(context.Background()) }()
	<-fetching

	go func() { results <- w.ForceRefresh(context.Background()) }()
	// Give the second call time to queue behind the first.
	time.Sleep(20 * time.Millisecond)
	close(gate)

	var succeeded, rejected int
	for range 2 {
		err := <-results
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrWorkerRunning):
			rejected++
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}
	if succeeded != 1 || rejected != 1 {
		t.Errorf("Expected 1 success and 1 ErrWorkerRunning, got %d and %d", succeeded, rejected)
	}

	<-sleeper.sleeping
	if c.fetches.Load() != 2 {
		t.Errorf("Expected inline fetch plus loop fetch, got %d", c.fetches.Load())
	}

	w.Stop()
	if !joinWithin(w, 2*time.Second) {
		t.Fatal("Expected worker to stop")
	}
}

func TestWorkerStoresPolledAddress(t *testing.T) {
	c := &fakeCollector{address: "https://example.com/feed", content: alwaysContent}
	store := &fakeStore{}

	w := newTestWorker(c, store)
	if !w.refresh(context.Background()) {
		t.Fatal("Expected refresh to succeed")
	}

	store.mu.Lock()
	stored := store.upserts[0]
	store.mu.Unlock()
	if stored.Address != "https://example.com/rss" {
		t.Errorf("Expected self link address, got '%s'", stored.Address)
	}
	if stored.SourceAddress != "https://example.com/feed" {
		t.Errorf("Expected polled address, got '%s'", stored.SourceAddress)
	}
}

func TestWorkerForceRefreshFailureDoesNotRestart(t *testing.T) {
	c := &fakeCollector{address: "https://example.com/rss", content: neverContent}

	w := newTestWorker(c, &fakeStore{})

	if err := w.ForceRefresh(context.Background()); !errors.Is(err, ErrRefreshFailed) {
		t.Errorf("Expected ErrRefreshFailed, got: %v", err)
	}
	if w.IsAlive() {
		t.Error("Expected worker to stay stopped")
	}
}

func TestWorkerStopInterruptsSleep(t *testing.T) {
	c := &fakeCollector{address: "https://example.com/rss", content: alwaysContent}
	entered := make(chan struct{}, 1)

	w := newTestWorker(c, &fakeStore{}, WithPollInterval(time.Hour))
	w.sleep = func(d time.Duration, stop <-chan struct{}) bool {
		entered <- struct{}{}
		return sleepUntilStopped(d, stop)
	}

	if err := w.Start(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	<-entered

	w.Stop()
	if !joinWithin(w, 2*time.Second) {
		t.Fatal("Expected stop to interrupt the hour-long wait")
	}
	if c.fetches.Load() != 1 {
		t.Errorf("Expected 1 attempt, got %d", c.fetches.Load())
	}
	if c.Connected() {
		t.Error("Expected connection to be closed after the attempt")
	}
}

func TestSleepUntilStopped(t *testing.T) {
	if !sleepUntilStopped(time.Millisecond, make(chan struct{})) {
		t.Error("Expected full sleep to report true")
	}

	stop := make(chan struct{})
	close(stop)
	if sleepUntilStopped(time.Hour, stop) {
		t.Error("Expected interrupted sleep to report false")
	}
}
