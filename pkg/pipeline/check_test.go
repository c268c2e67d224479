package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihaimyh/promptstudio/pkg/ledger"
)

const sampleAnalysis = "1. **Strengths:** Clear subject.\n" +
	"2. **Improvements:** Add lighting.\n" +
	"3. **Optimized Prompt:**\n" +
	"```text\n" +
	"a red fox in snow, golden hour, 85mm\n" +
	"```\n"

func TestExtractOptimized(t *testing.T) {
	tests := []struct {
		name     string
		analysis string
		want     string
		found    bool
	}{
		{name: "fenced", analysis: sampleAnalysis, want: "a red fox in snow, golden hour, 85mm", found: true},
		{name: "loose", analysis: "Looks fine.\n**Optimized Prompt:** a red fox, cinematic", want: "a red fox, cinematic", found: true},
		{name: "unclosed fence", analysis: "**Optimized Prompt:**\n```\na red fox", want: "a red fox", found: true},
		{name: "vietnamese heading", analysis: "**Gợi ý viết lại (Prompt được tối ưu hóa):**\n```\ncon cáo đỏ\n```", want: "con cáo đỏ", found: true},
		{name: "missing", analysis: "The prompt is already good.", found: false},
		{name: "empty section", analysis: "**Optimized Prompt:**\n```\n```", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := ExtractOptimized(tt.analysis)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStripOptimized(t *testing.T) {
	got := StripOptimized(sampleAnalysis)
	assert.Equal(t, "1. **Strengths:** Clear subject.\n2. **Improvements:** Add lighting.", got)

	assert.Equal(t, "No rewrite here.", StripOptimized("No rewrite here.\n"))
}

func TestCheckPrompt(t *testing.T) {
	h := newHarness(t, ledger.Limits{Text: 10, Image: 10})
	h.gen.text = router{other: func(string) (string, error) { return sampleAnalysis, nil }}.respond

	res, err := h.orch.CheckPrompt(context.Background(), "fox snow")
	require.NoError(t, err)

	assert.True(t, res.Found)
	assert.False(t, res.Partial)
	assert.Equal(t, "a red fox in snow, golden hour, 85mm", res.Optimized)
	assert.NotContains(t, res.Analysis, "Optimized Prompt")
	assert.Empty(t, h.savedPrompts(t))
	assert.Equal(t, 1, h.usage(ledger.KindText))
}

func TestCheckPrompt_NoRewrite(t *testing.T) {
	h := newHarness(t, ledger.Limits{Text: 10, Image: 10})
	h.gen.text = router{other: func(string) (string, error) { return "Nothing to improve.", nil }}.respond

	res, err := h.orch.CheckPrompt(context.Background(), "fox snow")
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.True(t, res.Partial)
	assert.Equal(t, "Nothing to improve.", res.Analysis)
}
