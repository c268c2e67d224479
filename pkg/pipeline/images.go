package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/mihaimyh/promptstudio/pkg/library"
	"github.com/mihaimyh/promptstudio/pkg/obs"
)

// Image count bounds for one generation request.
const (
	DefaultImageCount = 4
	MaxImageCount     = 8
)

// ClampImageCount maps a requested count onto 1..MaxImageCount; 0 or less means the default.
func ClampImageCount(n int) int {
	switch {
	case n <= 0:
		return DefaultImageCount
	case n > MaxImageCount:
		return MaxImageCount
	}
	return n
}

// ImagesResult is the outcome of CreateImages.
type ImagesResult struct {
	Outcome
	Prompt    string               `json:"prompt"`
	Requested int                  `json:"requested"`
	Produced  int                  `json:"produced"`
	Filtered  int                  `json:"filtered"`
	Images    []string             `json:"images"`
	Saved     []library.ImageEntry `json:"saved,omitempty"`
	Entry     *library.Entry       `json:"entry,omitempty"`
}

// CreateImages generates up to count images for prompt. Only images
// actually returned are charged and saved; withheld images are reported.
func (o *Orchestrator) CreateImages(ctx context.Context, prompt string, count int) (*ImagesResult, error) {
	return execute(ctx, o, imagesWorkflow, func(ctx context.Context) (*ImagesResult, error) {
		prompt = strings.TrimSpace(prompt)
		if prompt == "" {
			return nil, invalidInput("enter a prompt to generate images")
		}
		count = ClampImageCount(count)

		step := imagesWorkflow.Step("generate_images")
		step.Cost.Amount = count

		if err := o.gate(ctx, step.Cost); err != nil {
			return nil, err
		}

		res := &ImagesResult{Prompt: prompt, Requested: count}
		err := o.do(ctx, step, func(ctx context.Context) (int, error) {
			batch, err := o.gen.GenerateImages(ctx, prompt, count)
			if err != nil {
				return 0, err
			}
			res.Images = batch.Images
			res.Filtered = batch.FilteredCount
			return len(batch.Images), nil
		})
		if err != nil {
			return nil, err
		}
		res.Produced = len(res.Images)

		res.Entry = o.savePrompt(ctx, prompt)
		saved, err := o.images.Add(ctx, prompt, res.Images)
		if err != nil {
			o.logger.Error("failed to save images", obs.Err(err))
		}
		res.Saved = saved

		if res.Filtered > 0 {
			res.Partial = true
			res.Message = fmt.Sprintf("Created %d/%d images. %d blocked by safety policy.", res.Produced, count, res.Filtered)
		} else {
			res.Message = fmt.Sprintf("Created %d images.", res.Produced)
		}
		return res, nil
	})
}
