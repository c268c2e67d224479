// Package credential persists the provider API key and keeps the generative
// client configured with it.
package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mihaimyh/promptstudio/pkg/kv"
	"github.com/mihaimyh/promptstudio/pkg/obs"
)

// ErrNoCredential is returned by Load when nothing is stored.
var ErrNoCredential = errors.New("credential: no api key stored")

// Configurable is the client side of the credential: it is rebuilt on every change.
type Configurable interface {
	Configure(apiKey string) error
	Reset()
	Configured() bool
}

// Manager ties the stored key to a Configurable client.
type Manager struct {
	store  kv.Store
	client Configurable
	logger obs.Logger
}

// NewManager creates a Manager.
func NewManager(store kv.Store, client Configurable, logger obs.Logger) *Manager {
	if logger == nil {
		logger = &obs.NoopLogger{}
	}
	return &Manager{store: store, client: client, logger: logger}
}

// Load configures the client from the stored key.
func (m *Manager) Load(ctx context.Context) error {
	var key string
	found, err := kv.GetJSON(ctx, m.store, kv.KeyCredential, &key)
	if err != nil {
		return fmt.Errorf("credential: load: %w", err)
	}
	if !found || strings.TrimSpace(key) == "" {
		return ErrNoCredential
	}
	return m.client.Configure(key)
}

// Set validates key by configuring the client, then persists it.
func (m *Manager) Set(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("credential: api key is empty")
	}
	if err := m.client.Configure(key); err != nil {
		return err
	}
	if err := kv.SetJSON(ctx, m.store, kv.KeyCredential, key); err != nil {
		return fmt.Errorf("credential: save: %w", err)
	}
	m.logger.Info("api key updated", obs.F("key", Mask(key)))
	return nil
}

// Clear unconfigures the client and forgets the stored key.
func (m *Manager) Clear(ctx context.Context) error {
	m.client.Reset()
	if err := m.store.Delete(ctx, kv.KeyCredential); err != nil {
		return fmt.Errorf("credential: clear: %w", err)
	}
	m.logger.Info("api key cleared")
	return nil
}

// Configured reports whether the client currently holds a key.
func (m *Manager) Configured() bool {
	return m.client.Configured()
}

// Mask hides all but the last four characters of key.
func Mask(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
