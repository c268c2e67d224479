package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihaimyh/promptstudio/pkg/genai"
	"github.com/mihaimyh/promptstudio/pkg/ledger"
)

func TestWorkflowDeclarations(t *testing.T) {
	for _, wf := range Workflows() {
		t.Run(wf.Name, func(t *testing.T) {
			require.NotEmpty(t, wf.Steps)
			assert.Positive(t, wf.Gate.Amount)

			if wf.Name == WorkflowImages {
				return
			}
			sum := 0
			for _, s := range wf.Steps {
				sum += s.Cost.Amount
				if !s.Fatal {
					assert.Equal(t, ChargeOnAttempt, s.Charge, "best-effort step %s", s.Name)
				}
			}
			assert.Equal(t, wf.Gate.Amount, sum, "gate covers every step")
		})
	}

	wf, ok := Lookup(WorkflowTranslate)
	require.True(t, ok)
	assert.Equal(t, Cost{Kind: ledger.KindText, Amount: 3}, wf.Gate)
	assert.Equal(t, ChargeOnAttempt, wf.Steps[0].Charge)

	wf, ok = Lookup(WorkflowImages)
	require.True(t, ok)
	assert.Equal(t, ledger.KindImage, wf.Gate.Kind)

	_, ok = Lookup("video")
	assert.False(t, ok)
}

func TestWorkflowStepPanicsOnUnknownName(t *testing.T) {
	wf, _ := Lookup(WorkflowChat)
	assert.Panics(t, func() { wf.Step("nope") })
}

func TestRuns(t *testing.T) {
	r := NewRuns()
	a := r.Begin(WorkflowIdea)
	other := r.Begin(WorkflowChat)
	assert.True(t, r.Fresh(a))

	b := r.Begin(WorkflowIdea)
	assert.False(t, r.Fresh(a))
	assert.True(t, r.Fresh(b))
	assert.True(t, r.Fresh(other), "runs of other workflows are unaffected")
	assert.Equal(t, a.Seq+1, b.Seq)
}

func TestResultsCarryTheirRun(t *testing.T) {
	h := newHarness(t, ledger.Limits{Text: 10, Image: 10})
	h.gen.text = func(string) (string, error) { return "hi", nil }

	first, err := h.orch.Chat(context.Background(), "one")
	require.NoError(t, err)
	second, err := h.orch.Chat(context.Background(), "two")
	require.NoError(t, err)

	assert.False(t, h.orch.Runs().Fresh(first.Run))
	assert.True(t, h.orch.Runs().Fresh(second.Run))
	assert.Equal(t, WorkflowChat, second.Run.Workflow)
}

func TestExactlyOneNotificationPerRun(t *testing.T) {
	h := newHarness(t, ledger.Limits{Text: 3, Image: 10})
	h.gen.text = router{detect: ok("English"), translate: func(Language) (string, error) { return "x", nil }}.respond

	_, _ = h.orch.Translate(context.Background(), "a cat")
	_, _ = h.orch.Translate(context.Background(), "a dog") // over quota
	_, _ = h.orch.Chat(context.Background(), "")

	notes := h.notes.all()
	require.Len(t, notes, 3)
	assert.True(t, notes[0].success)
	assert.Equal(t, KindQuotaExhausted, notes[1].kind)
	assert.Equal(t, KindInvalidInput, notes[2].kind)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, ""},
		{genai.ErrNotConfigured, KindNotConfigured},
		{fmt.Errorf("call: %w", genai.ErrBlocked), KindProviderBlocked},
		{genai.ErrQuotaExceeded, KindProviderQuotaExceeded},
		{genai.ErrEmptyResponse, KindProviderFailure},
		{errors.New("boom"), KindProviderFailure},
		{&Error{Kind: KindDetectionUnrecognized}, KindDetectionUnrecognized},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), "%v", tt.err)
	}
}

func TestErrorMessages(t *testing.T) {
	seen := map[string]Kind{}
	kinds := []Kind{
		KindQuotaExhausted, KindProviderBlocked, KindProviderQuotaExceeded, KindProviderFailure,
		KindDetectionUnrecognized, KindInvalidInput, KindNotConfigured,
	}
	for _, k := range kinds {
		e := &Error{Kind: k, Workflow: WorkflowChat, Resource: ledger.KindText, ResetIn: 90 * time.Minute}
		msg := e.Message()
		require.NotEmpty(t, msg)
		if prev, dup := seen[msg]; dup {
			t.Fatalf("%s and %s share the message %q", prev, k, msg)
		}
		seen[msg] = k
	}

	e := &Error{Kind: KindQuotaExhausted, Resource: ledger.KindImage, ResetIn: 90 * time.Minute}
	assert.Equal(t, "Daily image quota is used up. It resets in 1h 30m 0s.", e.Message())

	wrapped := &Error{Kind: KindProviderFailure, Workflow: WorkflowIdea, Err: errBoom}
	assert.ErrorIs(t, wrapped, errBoom)
	assert.Equal(t, "idea: provider_failure: upstream 500", wrapped.Error())
}
