// Package genai is the boundary to the generative provider: text
// generation, text generation grounded on an image, and image generation.
package genai

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured is returned by every call made before a credential was supplied.
	// No network I/O happens in that case.
	ErrNotConfigured = errors.New("genai: provider not configured, set an API key first")

	// ErrBlocked means the provider withheld all output for policy reasons.
	ErrBlocked = errors.New("genai: prompt blocked by safety policy")

	// ErrQuotaExceeded means the provider itself rejected the call for quota reasons.
	ErrQuotaExceeded = errors.New("genai: provider quota exceeded")

	// ErrEmptyResponse means the provider answered without usable content.
	ErrEmptyResponse = errors.New("genai: empty response")

	// ErrProvider covers every other provider failure.
	ErrProvider = errors.New("genai: provider error")
)

// ImageBatch is the result of an image generation call.
// Images holds base64-encoded PNG data. FilteredCount is the number of
// requested images the provider withheld.
type ImageBatch struct {
	Images        []string
	FilteredCount int
}

// Generator is the generative capability.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateTextWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
	GenerateImages(ctx context.Context, prompt string, count int) (*ImageBatch, error)
}

// Factory builds a Generator for an API key.
type Factory func(apiKey string) (Generator, error)
