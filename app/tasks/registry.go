package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lysyi3m/rss-feeds/app/feed"
)

var _ WorkerRegistryInterface = (*Registry)(nil)

// WorkerStatus is a point-in-time view of one worker.
type WorkerStatus struct {
	Address       string           `json:"address"`
	ContentType   feed.ContentType `json:"content_type"`
	SourceType    feed.SourceType  `json:"source_type"`
	Alive         bool             `json:"alive"`
	FallbackIndex int              `json:"fallback_index"`
}

// Registry owns every Worker of the process, at most one per address.
type Registry struct {
	factory *Factory
	store   FeedStore
	opts    []WorkerOption

	mu      sync.Mutex
	workers []*Worker
}

func NewRegistry(factory *Factory, store FeedStore, opts ...WorkerOption) *Registry {
	return &Registry{
		factory: factory,
		store:   store,
		opts:    opts,
	}
}

// Define builds a worker for def with a fresh collector and extractor and
// starts it.
func (r *Registry) Define(def Definition) (*Worker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lookup(def.Address) != nil {
		return nil, fmt.Errorf("%w: %s", ErrWorkerExists, def.Address)
	}

	c := r.factory.Collector(def)
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSourceType, def.SourceType)
	}
	e := r.factory.Extractor(def.ContentType)
	if e == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContentType, def.ContentType)
	}

	w := NewWorker(def, r.store, r.opts...)
	w.AssignCollector(c)
	w.AssignExtractor(e)

	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker for %s: %w", def.Address, err)
	}

	r.workers = append(r.workers, w)
	slog.Info("Worker defined", "address", def.Address, "content_type", def.ContentType, "source_type", def.SourceType)

	return w, nil
}

func (r *Registry) Exists(address string) bool {
	return r.Lookup(address) != nil
}

// Lookup returns the worker for address, or nil.
func (r *Registry) Lookup(address string) *Worker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(address)
}

func (r *Registry) lookup(address string) *Worker {
	for _, w := range r.workers {
		if w.Address() == address {
			return w
		}
	}
	return nil
}

// Restore resumes polling of feeds stored by an earlier run. A feed is
// polled at the address it was collected from, which may differ from the
// self link it is stored under. Restored feeds are assumed to be XML over
// REST. Returns the number of workers defined.
func (r *Registry) Restore(stored []feed.Feed) int {
	restored := 0
	for _, f := range stored {
		source := f.SourceAddress
		if source == "" {
			source = f.Address
		}
		if r.Exists(source) || r.Exists(f.Address) {
			continue
		}

		_, err := r.Define(Definition{
			Address:     source,
			ContentType: feed.ContentTypeXML,
			SourceType:  feed.SourceTypeREST,
		})
		if err != nil {
			slog.Warn("Failed to restore worker for stored feed", "address", source, "error", err)
			continue
		}
		restored++
	}
	return restored
}

func (r *Registry) Statuses() []WorkerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	statuses := make([]WorkerStatus, 0, len(r.workers))
	for _, w := range r.workers {
		statuses = append(statuses, WorkerStatus{
			Address:       w.Address(),
			ContentType:   w.ContentType(),
			SourceType:    w.SourceType(),
			Alive:         w.IsAlive(),
			FallbackIndex: w.FallbackIndex(),
		})
	}
	return statuses
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}

// ForceRefresh refreshes the worker for address inline. The registry lock
// is not held during the fetch.
func (r *Registry) ForceRefresh(ctx context.Context, address string) error {
	w := r.Lookup(address)
	if w == nil {
		return fmt.Errorf("%w: %s", ErrWorkerNotFound, address)
	}
	return w.ForceRefresh(ctx)
}

// StopAll signals every worker before waiting on any of them, so all loops
// wind down concurrently.
func (r *Registry) StopAll() {
	r.mu.Lock()
	workers := append([]*Worker(nil), r.workers...)
	r.mu.Unlock()

	for _, w := range workers {
		w.Stop()
	}
	for _, w := range workers {
		w.Join()
	}

	slog.Info("All workers stopped", "count", len(workers))
}
