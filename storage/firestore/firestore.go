// Package firestore provides a Firestore implementation of the kv.Store interface.
// Each key is one document holding the JSON value as a string.
package firestore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mihaimyh/promptstudio/pkg/kv"
)

// Storage implements kv.Store using Google Cloud Firestore
type Storage struct {
	client     *firestore.Client
	collection string
}

// Config holds Firestore storage configuration
type Config struct {
	// Collection holds one document per key
	// Default: "promptstudio_state"
	Collection string
}

type document struct {
	Value     string    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// New creates a new Firestore storage adapter
func New(client *firestore.Client, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client is required")
	}

	if config.Collection == "" {
		config.Collection = "promptstudio_state"
	}

	return &Storage{
		client:     client,
		collection: config.Collection,
	}, nil
}

// docID maps a key onto a valid document ID ("/" is reserved).
func docID(key string) string {
	return strings.ReplaceAll(key, "/", "_")
}

// Get implements kv.Store
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	snap, err := s.client.Collection(s.collection).Doc(docID(key)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, kv.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if !snap.Exists() {
		return nil, kv.ErrNotFound
	}

	var doc document
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return []byte(doc.Value), nil
}

// Set implements kv.Store
func (s *Storage) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.client.Collection(s.collection).Doc(docID(key)).Set(ctx, document{
		Value:     string(value),
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Delete implements kv.Store
func (s *Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.Collection(s.collection).Doc(docID(key)).Delete(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
