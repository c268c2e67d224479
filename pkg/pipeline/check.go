package pipeline

import (
	"context"
	"strings"
)

// CheckResult is a prompt critique plus the extracted rewrite, if any.
// Analysis excludes the rewrite section.
type CheckResult struct {
	Outcome
	Analysis  string `json:"analysis"`
	Optimized string `json:"optimized,omitempty"`
	Found     bool   `json:"found"`
}

// CheckPrompt asks the provider to critique prompt and extracts the
// rewritten prompt from the answer. Nothing is saved.
func (o *Orchestrator) CheckPrompt(ctx context.Context, prompt string) (*CheckResult, error) {
	return execute(ctx, o, checkWorkflow, func(ctx context.Context) (*CheckResult, error) {
		prompt = strings.TrimSpace(prompt)
		if prompt == "" {
			return nil, invalidInput("paste a prompt to analyze")
		}
		if err := o.gate(ctx, checkWorkflow.Gate); err != nil {
			return nil, err
		}

		analysis, err := o.text(ctx, checkWorkflow.Steps[0], checkPrompt(prompt))
		if err != nil {
			return nil, err
		}

		res := &CheckResult{Analysis: StripOptimized(analysis)}
		res.Optimized, res.Found = ExtractOptimized(analysis)
		if res.Found {
			res.Message = "Prompt analyzed."
		} else {
			res.Partial = true
			res.Message = "Prompt analyzed; no optimized rewrite was found in the answer."
		}
		return res, nil
	})
}
