// Package pipeline runs the guided content workflows. Every workflow checks
// the usage ledger before its first provider call, records usage per step
// according to the step's charging policy, saves final artifacts to the
// content libraries and reports exactly one outcome to the Notifier.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mihaimyh/promptstudio/pkg/genai"
	"github.com/mihaimyh/promptstudio/pkg/ledger"
	"github.com/mihaimyh/promptstudio/pkg/library"
	"github.com/mihaimyh/promptstudio/pkg/obs"
)

// Meter is the usage ledger as seen by the orchestrator.
type Meter interface {
	CheckAvailable(ctx context.Context, kind ledger.Kind, amount int) bool
	Record(ctx context.Context, kind ledger.Kind, amount int)
	TimeUntilReset() time.Duration
}

// PromptSaver stores final prompts.
type PromptSaver interface {
	Add(ctx context.Context, prompt string) (*library.Entry, error)
}

// ImageSaver stores generated images.
type ImageSaver interface {
	Add(ctx context.Context, prompt string, images []string) ([]library.ImageEntry, error)
}

// Config wires an Orchestrator.
type Config struct {
	Ledger    Meter
	Generator genai.Generator
	Prompts   PromptSaver
	Images    ImageSaver

	Notifier Notifier
	Logger   obs.Logger
	Metrics  obs.Metrics
}

// Orchestrator runs workflows. It holds no persistent state.
type Orchestrator struct {
	ledger   Meter
	gen      genai.Generator
	prompts  PromptSaver
	images   ImageSaver
	notifier Notifier
	logger   obs.Logger
	metrics  obs.Metrics
	runs     *Runs
}

// New creates an Orchestrator.
func New(config Config) (*Orchestrator, error) {
	if config.Ledger == nil {
		return nil, fmt.Errorf("pipeline: ledger is required")
	}
	if config.Generator == nil {
		return nil, fmt.Errorf("pipeline: generator is required")
	}
	if config.Prompts == nil || config.Images == nil {
		return nil, fmt.Errorf("pipeline: prompt and image libraries are required")
	}
	if config.Notifier == nil {
		config.Notifier = NopNotifier{}
	}
	if config.Logger == nil {
		config.Logger = &obs.NoopLogger{}
	}
	if config.Metrics == nil {
		config.Metrics = &obs.NoopMetrics{}
	}

	return &Orchestrator{
		ledger:   config.Ledger,
		gen:      config.Generator,
		prompts:  config.Prompts,
		images:   config.Images,
		notifier: config.Notifier,
		logger:   config.Logger,
		metrics:  config.Metrics,
		runs:     NewRuns(),
	}, nil
}

// Runs exposes the run token issuer so callers can check freshness.
func (o *Orchestrator) Runs() *Runs {
	return o.runs
}

// Outcome is embedded in every workflow result.
type Outcome struct {
	Run     Run    `json:"run"`
	Partial bool   `json:"partial"`
	Message string `json:"message"`
}

func (oc *Outcome) outcome() *Outcome { return oc }

type result interface {
	outcome() *Outcome
}

// execute brackets one workflow run: it issues the run token, classifies
// failures, and fires exactly one notification.
func execute[R result](ctx context.Context, o *Orchestrator, wf Workflow, body func(context.Context) (R, error)) (R, error) {
	run := o.runs.Begin(wf.Name)
	start := time.Now()

	res, err := body(ctx)
	if err != nil {
		perr := classify(wf.Name, err)
		o.metrics.RecordWorkflow(wf.Name, string(perr.Kind), time.Since(start))
		o.logger.Warn("workflow failed",
			obs.F("workflow", wf.Name), obs.F("run", run.Seq), obs.F("kind", string(perr.Kind)), obs.Err(perr.Err))
		o.notifier.Error(run, perr.Kind, perr.Message())
		var zero R
		return zero, perr
	}

	oc := res.outcome()
	oc.Run = run
	outcome := "success"
	if oc.Partial {
		outcome = "partial"
	}
	o.metrics.RecordWorkflow(wf.Name, outcome, time.Since(start))
	o.logger.Info("workflow finished",
		obs.F("workflow", wf.Name), obs.F("run", run.Seq), obs.F("outcome", outcome))
	o.notifier.Success(run, oc.Message)
	return res, nil
}

// gate refuses the run when cost does not fit the remaining quota.
func (o *Orchestrator) gate(ctx context.Context, cost Cost) error {
	if o.ledger.CheckAvailable(ctx, cost.Kind, cost.Amount) {
		return nil
	}
	return &Error{
		Kind:     KindQuotaExhausted,
		Resource: cost.Kind,
		ResetIn:  o.ledger.TimeUntilReset(),
	}
}

// do issues one step and records its cost according to the step's policy.
// call returns the units actually consumed on success.
func (o *Orchestrator) do(ctx context.Context, step Step, call func(context.Context) (int, error)) error {
	units, err := call(ctx)
	if errors.Is(err, genai.ErrNotConfigured) {
		// never issued
		return err
	}

	switch step.Charge {
	case ChargeOnAttempt:
		o.ledger.Record(ctx, step.Cost.Kind, step.Cost.Amount)
	case ChargeOnSuccess:
		if err == nil {
			o.ledger.Record(ctx, step.Cost.Kind, units)
		}
	}

	if err != nil {
		o.logger.Debug("step failed", obs.F("step", step.Name), obs.F("fatal", step.Fatal), obs.Err(err))
	}
	return err
}

// text runs a text generation step.
func (o *Orchestrator) text(ctx context.Context, step Step, prompt string) (string, error) {
	var out string
	err := o.do(ctx, step, func(ctx context.Context) (int, error) {
		var err error
		out, err = o.gen.GenerateText(ctx, prompt)
		return step.Cost.Amount, err
	})
	return out, err
}

// bestEffort runs a non-fatal text step, returning TranslationFailed on failure.
func (o *Orchestrator) bestEffort(ctx context.Context, step Step, prompt string) (string, bool) {
	out, err := o.text(ctx, step, prompt)
	if err != nil {
		return TranslationFailed, false
	}
	return out, true
}

func (o *Orchestrator) savePrompt(ctx context.Context, prompt string) *library.Entry {
	e, err := o.prompts.Add(ctx, prompt)
	if err != nil {
		o.logger.Error("failed to save prompt", obs.Err(err))
		return nil
	}
	return e
}
