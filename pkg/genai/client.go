package genai

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mihaimyh/promptstudio/pkg/obs"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// Factory builds the backend whenever a key is configured (required)
	Factory Factory

	Logger  obs.Logger
	Metrics obs.Metrics
}

// Client is a Generator whose backend is swapped whenever the credential
// changes. Until Configure succeeds every call fails with ErrNotConfigured.
type Client struct {
	factory Factory
	logger  obs.Logger
	metrics obs.Metrics

	mu      sync.RWMutex
	backend Generator
}

var _ Generator = (*Client)(nil)

// NewClient creates an unconfigured Client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Factory == nil {
		return nil, fmt.Errorf("genai: factory is required")
	}
	if config.Logger == nil {
		config.Logger = &obs.NoopLogger{}
	}
	if config.Metrics == nil {
		config.Metrics = &obs.NoopMetrics{}
	}
	return &Client{
		factory: config.Factory,
		logger:  config.Logger,
		metrics: config.Metrics,
	}, nil
}

// Configure builds a backend for apiKey and makes it active.
func (c *Client) Configure(apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return fmt.Errorf("genai: api key is empty")
	}
	backend, err := c.factory(apiKey)
	if err != nil {
		return fmt.Errorf("genai: configure backend: %w", err)
	}
	if backend == nil {
		return fmt.Errorf("genai: factory returned no backend")
	}

	c.mu.Lock()
	c.backend = backend
	c.mu.Unlock()

	c.logger.Info("generative provider configured")
	return nil
}

// Reset drops the active backend.
func (c *Client) Reset() {
	c.mu.Lock()
	c.backend = nil
	c.mu.Unlock()
	c.logger.Info("generative provider unconfigured")
}

// Configured reports whether a backend is active.
func (c *Client) Configured() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.backend != nil
}

func (c *Client) active() (Generator, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.backend == nil {
		return nil, ErrNotConfigured
	}
	return c.backend, nil
}

func (c *Client) observe(op string, start time.Time, err error) {
	c.metrics.RecordProviderCall(op, time.Since(start), err)
	if err != nil {
		c.logger.Warn("provider call failed", obs.F("operation", op), obs.Err(err))
	}
}

// GenerateText implements Generator.
func (c *Client) GenerateText(ctx context.Context, prompt string) (text string, err error) {
	backend, err := c.active()
	if err != nil {
		return "", err
	}
	defer func(start time.Time) { c.observe("generate_text", start, err) }(time.Now())

	text, err = backend.GenerateText(ctx, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// GenerateTextWithImage implements Generator.
func (c *Client) GenerateTextWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (text string, err error) {
	backend, err := c.active()
	if err != nil {
		return "", err
	}
	defer func(start time.Time) { c.observe("generate_text_with_image", start, err) }(time.Now())

	if len(image) == 0 {
		return "", fmt.Errorf("genai: image is empty")
	}
	text, err = backend.GenerateTextWithImage(ctx, prompt, image, mimeType)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// GenerateImages implements Generator. Zero images with some filtered is
// ErrBlocked; zero images and zero filtered is ErrEmptyResponse; anything
// else is a (possibly partial) success.
func (c *Client) GenerateImages(ctx context.Context, prompt string, count int) (batch *ImageBatch, err error) {
	backend, err := c.active()
	if err != nil {
		return nil, err
	}
	defer func(start time.Time) { c.observe("generate_images", start, err) }(time.Now())

	if count < 1 {
		return nil, fmt.Errorf("genai: image count must be positive, got %d", count)
	}

	batch, err = backend.GenerateImages(ctx, prompt, count)
	if err != nil {
		return nil, err
	}
	if batch == nil || len(batch.Images) == 0 {
		if batch != nil && batch.FilteredCount > 0 {
			return nil, ErrBlocked
		}
		return nil, ErrEmptyResponse
	}
	return batch, nil
}
