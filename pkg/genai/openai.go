package genai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig holds the settings of an OpenAI-compatible provider.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	TextModel   string
	VisionModel string
	ImageModel  string
	ImageSize   string
	Timeout     time.Duration
}

// DefaultOpenAIConfig returns defaults for api.openai.com.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		BaseURL:     "https://api.openai.com/v1",
		TextModel:   "gpt-4o-mini",
		VisionModel: "gpt-4o-mini",
		ImageModel:  openai.CreateImageModelDallE2,
		ImageSize:   openai.CreateImageSize1024x1024,
		Timeout:     2 * time.Minute,
	}
}

// OpenAIBackend is a Generator using the OpenAI-compatible API.
type OpenAIBackend struct {
	client *openai.Client
	config OpenAIConfig
}

var _ Generator = (*OpenAIBackend)(nil)

// NewOpenAIBackend creates a backend. Empty fields fall back to DefaultOpenAIConfig.
func NewOpenAIBackend(cfg OpenAIConfig) (*OpenAIBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("genai: api key is required")
	}
	def := DefaultOpenAIConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.TextModel == "" {
		cfg.TextModel = def.TextModel
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.TextModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = def.ImageModel
	}
	if cfg.ImageSize == "" {
		cfg.ImageSize = def.ImageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAIBackend{
		client: openai.NewClientWithConfig(clientCfg),
		config: cfg,
	}, nil
}

// OpenAIFactory returns a Factory that builds backends from base with the given key.
func OpenAIFactory(base OpenAIConfig) Factory {
	return func(apiKey string) (Generator, error) {
		cfg := base
		cfg.APIKey = apiKey
		return NewOpenAIBackend(cfg)
	}
}

// GenerateText implements Generator.
func (b *OpenAIBackend) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.config.TextModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", Classify(err)
	}
	return firstChoice(resp)
}

// GenerateTextWithImage implements Generator. The image travels inline as a data URL.
func (b *OpenAIBackend) GenerateTextWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = http.DetectContentType(image)
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.config.VisionModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: openai.ImageURLDetailAuto},
					},
				},
			},
		},
	})
	if err != nil {
		return "", Classify(err)
	}
	return firstChoice(resp)
}

func firstChoice(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter && strings.TrimSpace(choice.Message.Content) == "" {
		return "", ErrBlocked
	}
	return choice.Message.Content, nil
}

// GenerateImages implements Generator. Items without image data and any
// shortfall against count are reported as filtered.
func (b *OpenAIBackend) GenerateImages(ctx context.Context, prompt string, count int) (*ImageBatch, error) {
	resp, err := b.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          b.config.ImageModel,
		N:              count,
		Size:           b.config.ImageSize,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, Classify(err)
	}

	batch := &ImageBatch{}
	for _, item := range resp.Data {
		if item.B64JSON == "" {
			batch.FilteredCount++
			continue
		}
		batch.Images = append(batch.Images, item.B64JSON)
	}
	if short := count - len(resp.Data); short > 0 {
		batch.FilteredCount += short
	}
	return batch, nil
}

var quotaMarkers = []string{"status code: 429", "error 429", "resource has been exhausted", "insufficient_quota", "rate limit"}

// Classify maps a provider error onto ErrBlocked, ErrQuotaExceeded or ErrProvider.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrBlocked) || errors.Is(err, ErrQuotaExceeded) || errors.Is(err, ErrProvider) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := strings.ToLower(fmt.Sprint(apiErr.Code))
		switch {
		case code == "content_policy_violation" || code == "moderation_blocked" ||
			strings.Contains(strings.ToLower(apiErr.Message), "safety system"):
			return fmt.Errorf("%w: %s", ErrBlocked, apiErr.Message)
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests || code == "insufficient_quota":
			return fmt.Errorf("%w: %s", ErrQuotaExceeded, apiErr.Message)
		}
		return fmt.Errorf("%w: status %d: %s", ErrProvider, apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", ErrQuotaExceeded, string(reqErr.Body))
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range quotaMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrProvider, err)
}
