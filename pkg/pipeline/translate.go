package pipeline

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mihaimyh/promptstudio/pkg/library"
)

// TranslateResult holds the source text and its translations, keyed by language.
type TranslateResult struct {
	Outcome
	Source       Language            `json:"source"`
	Translations map[Language]string `json:"translations"`
	Failed       []Language          `json:"failed,omitempty"`
}

// Translate detects the language of text and translates it into the two
// other languages concurrently. A failed translation is replaced by
// TranslationFailed; an unrecognized language ends the run.
func (o *Orchestrator) Translate(ctx context.Context, text string) (*TranslateResult, error) {
	return execute(ctx, o, translateWorkflow, func(ctx context.Context) (*TranslateResult, error) {
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, invalidInput("enter a prompt to translate")
		}
		if err := o.gate(ctx, translateWorkflow.Gate); err != nil {
			return nil, err
		}

		detected, err := o.text(ctx, translateWorkflow.Steps[0], detectPrompt(text))
		if err != nil {
			return nil, err
		}
		source, ok := ParseLanguage(detected)
		if !ok {
			return nil, &Error{Kind: KindDetectionUnrecognized, Err: fmt.Errorf("detected %q", detected)}
		}

		targets := source.others()
		outputs := make([]string, len(targets))
		succeeded := make([]bool, len(targets))

		var g errgroup.Group
		for i, target := range targets {
			g.Go(func() error {
				outputs[i], succeeded[i] = o.bestEffort(ctx, translateWorkflow.Steps[1+i], translatePrompt(text, source, target))
				return nil
			})
		}
		_ = g.Wait()

		res := &TranslateResult{
			Source:       source,
			Translations: map[Language]string{source: text},
		}
		for i, target := range targets {
			res.Translations[target] = strings.TrimSpace(outputs[i])
			if !succeeded[i] {
				res.Failed = append(res.Failed, target)
			}
		}

		switch len(res.Failed) {
		case 0:
			res.Message = fmt.Sprintf("Translated from %s.", source)
		case len(targets):
			res.Partial = true
			res.Message = fmt.Sprintf("Detected %s, but both translations failed.", source)
		default:
			res.Partial = true
			res.Message = fmt.Sprintf("Translated from %s; the %s translation failed.", source, res.Failed[0])
		}
		return res, nil
	})
}

// PromptResult is the outcome of the prompt-producing workflows.
// Translation holds the Traditional Chinese rendering where one is made.
type PromptResult struct {
	Outcome
	Prompt      string         `json:"prompt"`
	Translation string         `json:"translation,omitempty"`
	Entry       *library.Entry `json:"entry,omitempty"`
}

// OptimizePrompt turns an edited Vietnamese or Traditional Chinese prompt
// into an English hybrid prompt that keeps technical keywords, and saves it.
func (o *Orchestrator) OptimizePrompt(ctx context.Context, source Language, text string) (*PromptResult, error) {
	return execute(ctx, o, optimizeWorkflow, func(ctx context.Context) (*PromptResult, error) {
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, invalidInput("there is no text to optimize")
		}
		if source != Vietnamese && source != TraditionalChinese {
			return nil, invalidInput("optimization expects Vietnamese or Traditional Chinese text, got %q", source)
		}
		if err := o.gate(ctx, optimizeWorkflow.Gate); err != nil {
			return nil, err
		}

		out, err := o.text(ctx, optimizeWorkflow.Steps[0], optimizePrompt(text, source))
		if err != nil {
			return nil, err
		}
		res := &PromptResult{Prompt: strings.TrimSpace(out)}
		res.Entry = o.savePrompt(ctx, res.Prompt)
		res.Message = "Prompt optimized and saved."
		return res, nil
	})
}
