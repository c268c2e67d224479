// Package tiered provides a Hot/Cold tiered kv.Store that puts fast ephemeral
// storage (Hot) in front of durable storage (Cold).
package tiered

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mihaimyh/promptstudio/pkg/kv"
)

// Config configures the tiered storage behavior
type Config struct {
	// Hot is the L1 storage (e.g., Redis, Memory)
	Hot kv.Store

	// Cold is the L2 storage (e.g., Postgres, Firestore, File) and the source of truth
	Cold kv.Store

	// AsyncSync makes writes land in Hot synchronously and reach Cold through
	// a background worker. If false, writes go to Cold first, then Hot.
	AsyncSync bool

	// SyncBufferSize is the size of the buffered channel for async writes.
	// Default: 100
	SyncBufferSize int

	// AsyncErrorHandler is called when an async write to Cold fails.
	AsyncErrorHandler func(error)
}

// Storage implements a Hot/Cold tiered kv.Store.
// Reads are read-through (Hot, then Cold, repairing Hot); writes are
// write-through or hot-primary with async Cold sync.
type Storage struct {
	hot  kv.Store
	cold kv.Store
	conf Config

	syncQueue chan func() error
	shutdown  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a new tiered storage adapter.
func New(config Config) (*Storage, error) {
	if config.Hot == nil || config.Cold == nil {
		return nil, errors.New("tiered storage: both hot and cold storage are required")
	}

	if config.SyncBufferSize <= 0 {
		config.SyncBufferSize = 100
	}

	s := &Storage{
		hot:       config.Hot,
		cold:      config.Cold,
		conf:      config,
		syncQueue: make(chan func() error, config.SyncBufferSize),
		shutdown:  make(chan struct{}),
	}

	if config.AsyncSync {
		s.startWorker()
	}

	return s, nil
}

// Close drains pending async writes and stops the worker.
func (s *Storage) Close() error {
	if s.conf.AsyncSync {
		s.closeOnce.Do(func() {
			close(s.shutdown)
			s.wg.Wait()
		})
	}
	return nil
}

// startWorker applies queued Cold writes in order.
func (s *Storage) startWorker() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case job := <-s.syncQueue:
				s.run(job)
			case <-s.shutdown:
				for {
					select {
					case job := <-s.syncQueue:
						s.run(job)
					default:
						return
					}
				}
			}
		}
	}()
}

func (s *Storage) run(job func() error) {
	if err := job(); err != nil && s.conf.AsyncErrorHandler != nil {
		s.conf.AsyncErrorHandler(fmt.Errorf("tiered sync failed: %w", err))
	}
}

// enqueue hands a Cold write to the worker, running it inline when the queue is full.
func (s *Storage) enqueue(job func() error) error {
	select {
	case s.syncQueue <- job:
		return nil
	default:
		return job()
	}
}

// Get implements kv.Store with read-through.
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	if value, err := s.hot.Get(ctx, key); err == nil {
		return value, nil
	}

	value, err := s.cold.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	// Read-repair; a failed cache fill is not an error
	_ = s.hot.Set(ctx, key, value) //nolint:errcheck

	return value, nil
}

// Set implements kv.Store.
func (s *Storage) Set(ctx context.Context, key string, value []byte) error {
	if s.conf.AsyncSync {
		if err := s.hot.Set(ctx, key, value); err != nil {
			return err
		}
		return s.enqueue(func() error {
			return s.cold.Set(context.WithoutCancel(ctx), key, value)
		})
	}

	if err := s.cold.Set(ctx, key, value); err != nil {
		return err
	}
	if err := s.hot.Set(ctx, key, value); err != nil {
		// Evict so the next read falls through to the new cold value
		_ = s.hot.Delete(ctx, key) //nolint:errcheck
	}
	return nil
}

// Delete implements kv.Store.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if s.conf.AsyncSync {
		if err := s.hot.Delete(ctx, key); err != nil {
			return err
		}
		return s.enqueue(func() error {
			return s.cold.Delete(context.WithoutCancel(ctx), key)
		})
	}

	if err := s.cold.Delete(ctx, key); err != nil {
		return err
	}
	return s.hot.Delete(ctx, key)
}
