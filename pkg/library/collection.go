// Package library persists generated content: a prompt collection and an
// image collection, each newest-first, versioned and observable.
package library

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mihaimyh/promptstudio/pkg/kv"
	"github.com/mihaimyh/promptstudio/pkg/obs"
)

// Item is anything stored in a Collection.
type Item interface {
	EntryID() string
}

// Event is delivered to subscribers after every mutation.
type Event struct {
	Collection string
	Op         string
	Version    uint64
}

// Collection is a newest-first list persisted as one JSON array under one key.
// Every mutation bumps Version and notifies subscribers. The version is not
// persisted and starts at 0 per process.
type Collection[T Item] struct {
	name    string
	key     string
	store   kv.Store
	bound   int
	logger  obs.Logger
	metrics obs.Metrics

	mu      sync.Mutex
	version uint64

	subsMu  sync.RWMutex
	subs    map[int]func(Event)
	nextSub int
}

func newCollection[T Item](name, key string, store kv.Store, bound int, logger obs.Logger, metrics obs.Metrics) *Collection[T] {
	return &Collection[T]{
		name:    name,
		key:     key,
		store:   store,
		bound:   bound,
		logger:  logger,
		metrics: metrics,
		subs:    make(map[int]func(Event)),
	}
}

// Name returns the collection name ("prompts" or "images").
func (c *Collection[T]) Name() string {
	return c.name
}

// Version returns the in-process change version. Use Snapshot to detect
// changes made by other processes.
func (c *Collection[T]) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// List returns all entries, newest first.
func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	return c.load(ctx)
}

// Get returns the entry with id.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var zero T
	items, err := c.load(ctx)
	if err != nil {
		return zero, false, err
	}
	for _, it := range items {
		if it.EntryID() == id {
			return it, true, nil
		}
	}
	return zero, false, nil
}

// Remove deletes the entry with id. The version is bumped even when no entry matched.
func (c *Collection[T]) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	items, err := c.load(ctx)
	if err != nil {
		c.mu.Unlock()
		return err
	}

	kept := items[:0]
	for _, it := range items {
		if it.EntryID() != id {
			kept = append(kept, it)
		}
	}
	if err := c.save(ctx, kept); err != nil {
		c.mu.Unlock()
		return err
	}
	c.version++
	ev := Event{Collection: c.name, Op: "remove", Version: c.version}
	c.mu.Unlock()

	c.metrics.RecordLibraryChange(c.name, ev.Op)
	c.notify(ev)
	return nil
}

// Subscribe registers fn for change events and returns a function that
// removes it. fn runs synchronously on the mutating goroutine.
func (c *Collection[T]) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subsMu.Unlock()

	return func() {
		c.subsMu.Lock()
		delete(c.subs, id)
		c.subsMu.Unlock()
	}
}

// prepend puts items in front, applies the retention bound and persists.
func (c *Collection[T]) prepend(ctx context.Context, items []T) error {
	c.mu.Lock()
	existing, err := c.load(ctx)
	if err != nil {
		c.mu.Unlock()
		return err
	}

	merged := make([]T, 0, len(items)+len(existing))
	merged = append(merged, items...)
	merged = append(merged, existing...)
	if c.bound > 0 && len(merged) > c.bound {
		merged = merged[:c.bound]
	}

	if err := c.save(ctx, merged); err != nil {
		c.mu.Unlock()
		return err
	}
	c.version++
	ev := Event{Collection: c.name, Op: "add", Version: c.version}
	c.mu.Unlock()

	c.metrics.RecordLibraryChange(c.name, ev.Op)
	c.notify(ev)
	return nil
}

// Snapshot returns the entries together with a tag derived from their
// persisted form. Unlike Version, the tag is the same in every process
// sharing the store and changes whenever the stored list does.
func (c *Collection[T]) Snapshot(ctx context.Context) ([]T, string, error) {
	items, raw, err := c.read(ctx)
	if err != nil {
		return nil, "", err
	}
	sum := sha256.Sum256(raw)
	return items, hex.EncodeToString(sum[:12]), nil
}

func (c *Collection[T]) load(ctx context.Context) ([]T, error) {
	items, _, err := c.read(ctx)
	return items, err
}

func (c *Collection[T]) read(ctx context.Context) ([]T, []byte, error) {
	start := time.Now()
	raw, err := c.store.Get(ctx, c.key)
	if errors.Is(err, kv.ErrNotFound) {
		raw, err = nil, nil
	}
	c.metrics.RecordStorageOperation("library_get", time.Since(start), err)
	if err != nil {
		c.logger.Error("failed to read library", obs.F("collection", c.name), obs.Err(err))
		return nil, nil, fmt.Errorf("library %s: %w", c.name, err)
	}

	var items []T
	if raw != nil {
		if err := json.Unmarshal(raw, &items); err != nil {
			c.logger.Error("failed to decode library", obs.F("collection", c.name), obs.Err(err))
			return nil, nil, fmt.Errorf("library %s: decode: %w", c.name, err)
		}
	}
	return items, raw, nil
}

func (c *Collection[T]) save(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	start := time.Now()
	err := kv.SetJSON(ctx, c.store, c.key, items)
	c.metrics.RecordStorageOperation("library_set", time.Since(start), err)
	if err != nil {
		c.logger.Error("failed to persist library", obs.F("collection", c.name), obs.Err(err))
		return fmt.Errorf("library %s: %w", c.name, err)
	}
	return nil
}

func (c *Collection[T]) notify(ev Event) {
	c.subsMu.RLock()
	fns := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subsMu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
