package api

import (
	"github.com/mihaimyh/promptstudio/pkg/ledger"
	"github.com/mihaimyh/promptstudio/pkg/library"
	"github.com/mihaimyh/promptstudio/pkg/pipeline"
)

// UsageResponse is today's standing for both metered kinds
type UsageResponse struct {
	Date    string         `json:"date"`
	Text    ledger.Display `json:"text"`
	Image   ledger.Display `json:"image"`
	ResetIn string         `json:"reset_in"` // "3h 2m 1s"
	Summary []string       `json:"summary"`
}

// ImagesRequest is the body of POST /workflows/images
type ImagesRequest struct {
	Prompt string `json:"prompt"`
	Count  int    `json:"count,omitempty"` // 0 means the default batch size
}

// TextRequest is the body of the single-text workflows (translate, check)
type TextRequest struct {
	Text string `json:"text"`
}

// IdeaRequest is the body of POST /workflows/idea
type IdeaRequest struct {
	Idea string `json:"idea"`
}

// OptimizeRequest is the body of POST /workflows/optimize
type OptimizeRequest struct {
	Source pipeline.Language `json:"source"`
	Text   string            `json:"text"`
}

// ChatRequest is the body of POST /workflows/chat. When Image is set the
// image is described as a prompt and Message is ignored.
type ChatRequest struct {
	Message  string `json:"message,omitempty"`
	Image    []byte `json:"image,omitempty"` // base64 in JSON
	MimeType string `json:"mime_type,omitempty"`
}

// PromptsResponse lists the prompt library
type PromptsResponse struct {
	Tag     string          `json:"tag"`
	Entries []library.Entry `json:"entries"`
}

// ImagesResponse lists the image library
type ImagesResponse struct {
	Tag     string               `json:"tag"`
	Entries []library.ImageEntry `json:"entries"`
}

// CredentialRequest is the body of PUT /credential
type CredentialRequest struct {
	APIKey string `json:"api_key"`
}

// CredentialResponse reports whether a key is active
type CredentialResponse struct {
	Configured bool `json:"configured"`
}
