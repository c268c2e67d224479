package pipeline

import (
	"context"
	"strings"

	"github.com/mihaimyh/promptstudio/pkg/library"
)

// ChatResult is one assistant turn. Entry is set when the reply was saved.
type ChatResult struct {
	Outcome
	Reply string         `json:"reply"`
	Entry *library.Entry `json:"entry,omitempty"`
}

// Chat sends a free-text message. The reply is not saved.
func (o *Orchestrator) Chat(ctx context.Context, message string) (*ChatResult, error) {
	return execute(ctx, o, chatWorkflow, func(ctx context.Context) (*ChatResult, error) {
		message = strings.TrimSpace(message)
		if message == "" {
			return nil, invalidInput("enter a message")
		}
		if err := o.gate(ctx, chatWorkflow.Gate); err != nil {
			return nil, err
		}

		reply, err := o.text(ctx, chatWorkflow.Steps[0], message)
		if err != nil {
			return nil, err
		}
		return &ChatResult{Reply: strings.TrimSpace(reply), Outcome: Outcome{Message: "Reply received."}}, nil
	})
}

// DescribeImage turns an uploaded image into a prompt that would recreate
// it, and saves that prompt.
func (o *Orchestrator) DescribeImage(ctx context.Context, image []byte, mimeType string) (*ChatResult, error) {
	return execute(ctx, o, chatImageWorkflow, func(ctx context.Context) (*ChatResult, error) {
		if len(image) == 0 {
			return nil, invalidInput("attach an image")
		}
		if mimeType != "" && !strings.HasPrefix(mimeType, "image/") {
			return nil, invalidInput("unsupported file type %q", mimeType)
		}
		if err := o.gate(ctx, chatImageWorkflow.Gate); err != nil {
			return nil, err
		}

		step := chatImageWorkflow.Steps[0]
		var reply string
		err := o.do(ctx, step, func(ctx context.Context) (int, error) {
			var err error
			reply, err = o.gen.GenerateTextWithImage(ctx, describeImagePrompt, image, mimeType)
			return step.Cost.Amount, err
		})
		if err != nil {
			return nil, err
		}

		res := &ChatResult{Reply: strings.TrimSpace(reply)}
		res.Entry = o.savePrompt(ctx, res.Reply)
		res.Message = "Image described; prompt saved."
		return res, nil
	})
}
