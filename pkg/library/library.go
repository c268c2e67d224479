package library

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mihaimyh/promptstudio/pkg/kv"
	"github.com/mihaimyh/promptstudio/pkg/obs"
)

// DefaultImageRetention caps the image collection.
const DefaultImageRetention = 50

// Entry is a saved prompt.
type Entry struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"date"`
}

func (e Entry) EntryID() string { return e.ID }

// ImageEntry is a saved image with the prompt that produced it.
// ImageData is base64-encoded PNG.
type ImageEntry struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"date"`
	ImageData string    `json:"base64"`
}

func (e ImageEntry) EntryID() string { return e.ID }

// Config configures the libraries.
type Config struct {
	// ImageRetention bounds the image collection (default: 50)
	ImageRetention int

	// PromptRetention bounds the prompt collection (0 = unbounded)
	PromptRetention int

	Now     func() time.Time
	NewID   func() string
	Logger  obs.Logger
	Metrics obs.Metrics
}

func (c *Config) setDefaults() {
	if c.ImageRetention <= 0 {
		c.ImageRetention = DefaultImageRetention
	}
	if c.PromptRetention < 0 {
		c.PromptRetention = 0
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.NewID == nil {
		c.NewID = uuid.NewString
	}
	if c.Logger == nil {
		c.Logger = &obs.NoopLogger{}
	}
	if c.Metrics == nil {
		c.Metrics = &obs.NoopMetrics{}
	}
}

// Prompts is the prompt collection.
type Prompts struct {
	*Collection[Entry]
	now   func() time.Time
	newID func() string
}

// NewPrompts creates the prompt collection stored under kv.KeyPrompts.
func NewPrompts(store kv.Store, config Config) *Prompts {
	config.setDefaults()
	return &Prompts{
		Collection: newCollection[Entry]("prompts", kv.KeyPrompts, store, config.PromptRetention, config.Logger, config.Metrics),
		now:        config.Now,
		newID:      config.NewID,
	}
}

// Add saves prompt as the newest entry. A blank prompt is ignored and
// returns (nil, nil) without bumping the version.
func (p *Prompts) Add(ctx context.Context, prompt string) (*Entry, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, nil
	}
	e := Entry{ID: p.newID(), Prompt: prompt, CreatedAt: p.now().UTC()}
	if err := p.prepend(ctx, []Entry{e}); err != nil {
		return nil, err
	}
	return &e, nil
}

// Images is the image collection.
type Images struct {
	*Collection[ImageEntry]
	now   func() time.Time
	newID func() string
}

// NewImages creates the image collection stored under kv.KeyImages.
func NewImages(store kv.Store, config Config) *Images {
	config.setDefaults()
	return &Images{
		Collection: newCollection[ImageEntry]("images", kv.KeyImages, store, config.ImageRetention, config.Logger, config.Metrics),
		now:        config.Now,
		newID:      config.NewID,
	}
}

// Add saves a batch of images sharing one prompt, each with its own ID.
// The oldest entries beyond the retention bound are evicted. A blank prompt
// or an empty batch is ignored.
func (im *Images) Add(ctx context.Context, prompt string, images []string) ([]ImageEntry, error) {
	if strings.TrimSpace(prompt) == "" || len(images) == 0 {
		return nil, nil
	}
	created := im.now().UTC()
	batch := make([]ImageEntry, len(images))
	for i, data := range images {
		batch[i] = ImageEntry{ID: im.newID(), Prompt: prompt, CreatedAt: created, ImageData: data}
	}
	if err := im.prepend(ctx, batch); err != nil {
		return nil, err
	}
	return batch, nil
}
