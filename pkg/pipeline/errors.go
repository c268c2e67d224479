package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/mihaimyh/promptstudio/pkg/genai"
	"github.com/mihaimyh/promptstudio/pkg/ledger"
)

// Kind classifies a workflow failure.
type Kind string

const (
	KindQuotaExhausted        Kind = "quota_exhausted"
	KindProviderBlocked       Kind = "provider_blocked"
	KindProviderQuotaExceeded Kind = "provider_quota_exceeded"
	KindProviderFailure       Kind = "provider_failure"
	KindDetectionUnrecognized Kind = "detection_unrecognized"
	KindInvalidInput          Kind = "invalid_input"
	KindNotConfigured         Kind = "not_configured"
)

// Error is the only error type returned by workflows.
type Error struct {
	Kind     Kind
	Workflow string

	// Resource and ResetIn are set for KindQuotaExhausted.
	Resource ledger.Kind
	ResetIn  time.Duration

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Workflow, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Workflow, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message is the user-facing text for the failure.
func (e *Error) Message() string {
	switch e.Kind {
	case KindQuotaExhausted:
		return fmt.Sprintf("Daily %s quota is used up. It resets in %s.", e.Resource, ledger.FormatCountdown(e.ResetIn))
	case KindProviderBlocked:
		return "The prompt was blocked by the provider's safety policy. Try rephrasing it."
	case KindProviderQuotaExceeded:
		return "The provider rejected the API key for quota reasons. Try again later or switch to another key."
	case KindDetectionUnrecognized:
		return "Could not determine the language of the prompt."
	case KindInvalidInput:
		if e.Err != nil {
			return e.Err.Error()
		}
		return "The input is not valid."
	case KindNotConfigured:
		return "No API key is configured. Set one before generating content."
	default:
		return "The generation service failed. Please try again."
	}
}

// KindOf classifies any error returned by this package or by genai.
// It returns "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	switch {
	case errors.Is(err, genai.ErrNotConfigured):
		return KindNotConfigured
	case errors.Is(err, genai.ErrBlocked):
		return KindProviderBlocked
	case errors.Is(err, genai.ErrQuotaExceeded):
		return KindProviderQuotaExceeded
	default:
		return KindProviderFailure
	}
}

func classify(workflow string, err error) *Error {
	var perr *Error
	if errors.As(err, &perr) {
		if perr.Workflow == "" {
			perr.Workflow = workflow
		}
		return perr
	}
	return &Error{Kind: KindOf(err), Workflow: workflow, Err: err}
}

func invalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Err: fmt.Errorf(format, args...)}
}
