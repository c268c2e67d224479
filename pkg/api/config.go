package api

import (
	"fmt"
	"net/http"

	"github.com/mihaimyh/promptstudio/pkg/credential"
	"github.com/mihaimyh/promptstudio/pkg/ledger"
	"github.com/mihaimyh/promptstudio/pkg/library"
	"github.com/mihaimyh/promptstudio/pkg/obs"
	"github.com/mihaimyh/promptstudio/pkg/pipeline"
)

// DefaultMaxBodyBytes bounds request bodies; image uploads are the largest.
const DefaultMaxBodyBytes = 16 << 20

// Config holds configuration for the API handler
type Config struct {
	// Orchestrator runs the workflows (required)
	Orchestrator *pipeline.Orchestrator

	// Ledger backs /usage and the quota gates (required)
	Ledger *ledger.Ledger

	// Prompts and Images back /library (required)
	Prompts *library.Prompts
	Images  *library.Images

	// Credentials backs /credential (required)
	Credentials *credential.Manager

	// MaxBodyBytes limits request bodies.
	// Default: DefaultMaxBodyBytes
	MaxBodyBytes int64

	// OnError handles unexpected errors (storage, encoding).
	// If nil, responds 500 with a JSON body.
	OnError func(http.ResponseWriter, *http.Request, error)

	// Logger is optional
	Logger obs.Logger
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Orchestrator == nil {
		return fmt.Errorf("orchestrator is required")
	}
	if c.Ledger == nil {
		return fmt.Errorf("ledger is required")
	}
	if c.Prompts == nil || c.Images == nil {
		return fmt.Errorf("prompt and image libraries are required")
	}
	if c.Credentials == nil {
		return fmt.Errorf("credentials are required")
	}
	if c.MaxBodyBytes < 0 {
		return fmt.Errorf("maxBodyBytes must not be negative")
	}
	return nil
}

// NewHandler creates a new API handler with the given configuration
func NewHandler(config Config) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.MaxBodyBytes == 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if config.Logger == nil {
		config.Logger = &obs.NoopLogger{}
	}
	return &Handler{
		config: config,
		logger: config.Logger,
	}, nil
}
