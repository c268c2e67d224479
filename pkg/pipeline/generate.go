package pipeline

import (
	"context"
	"strings"
)

// IdeaToPrompt expands a short idea into an English prompt, saves it, then
// translates it into Traditional Chinese on a best-effort basis.
func (o *Orchestrator) IdeaToPrompt(ctx context.Context, idea string) (*PromptResult, error) {
	return execute(ctx, o, ideaWorkflow, func(ctx context.Context) (*PromptResult, error) {
		idea = strings.TrimSpace(idea)
		if idea == "" {
			return nil, invalidInput("enter an idea")
		}
		return o.generateAndTranslate(ctx, ideaWorkflow, ideaPrompt(idea))
	})
}

// RandomPrompt generates a random English prompt, saves it, then translates
// it into Traditional Chinese on a best-effort basis.
func (o *Orchestrator) RandomPrompt(ctx context.Context) (*PromptResult, error) {
	return execute(ctx, o, randomWorkflow, func(ctx context.Context) (*PromptResult, error) {
		return o.generateAndTranslate(ctx, randomWorkflow, randomPrompt)
	})
}

func (o *Orchestrator) generateAndTranslate(ctx context.Context, wf Workflow, instruction string) (*PromptResult, error) {
	if err := o.gate(ctx, wf.Gate); err != nil {
		return nil, err
	}

	base, err := o.text(ctx, wf.Steps[0], instruction)
	if err != nil {
		return nil, err
	}
	res := &PromptResult{Prompt: strings.TrimSpace(base)}
	res.Entry = o.savePrompt(ctx, res.Prompt)

	zh, ok := o.bestEffort(ctx, wf.Steps[1], hybridPrompt(res.Prompt, English, TraditionalChinese))
	res.Translation = strings.TrimSpace(zh)
	if ok {
		res.Message = "Prompt created and saved."
	} else {
		res.Partial = true
		res.Message = "Prompt created and saved; the Traditional Chinese translation failed."
	}
	return res, nil
}

// DetailedPrompt composes a prompt from form, saves it, then translates it
// into Traditional Chinese on a best-effort basis.
func (o *Orchestrator) DetailedPrompt(ctx context.Context, form DetailedForm) (*PromptResult, error) {
	return execute(ctx, o, detailedWorkflow, func(ctx context.Context) (*PromptResult, error) {
		if strings.TrimSpace(form.Subject) == "" {
			return nil, invalidInput("a subject is required")
		}
		if err := o.gate(ctx, detailedWorkflow.Gate); err != nil {
			return nil, err
		}

		res := &PromptResult{Prompt: ComposePrompt(form)}
		res.Entry = o.savePrompt(ctx, res.Prompt)

		zh, ok := o.bestEffort(ctx, detailedWorkflow.Steps[0], hybridPrompt(res.Prompt, English, TraditionalChinese))
		res.Translation = strings.TrimSpace(zh)
		if ok {
			res.Message = "Prompt composed and saved."
		} else {
			res.Partial = true
			res.Message = "Prompt composed and saved; the Traditional Chinese translation failed."
		}
		return res, nil
	})
}
