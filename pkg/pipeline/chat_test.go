package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihaimyh/promptstudio/pkg/ledger"
)

func TestChat(t *testing.T) {
	h := newHarness(t, ledger.Limits{Text: 10, Image: 10})
	h.gen.text = func(prompt string) (string, error) { return "echo: " + prompt, nil }

	res, err := h.orch.Chat(context.Background(), " hello ")
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", res.Reply)
	assert.Nil(t, res.Entry)
	assert.Empty(t, h.savedPrompts(t))
	assert.Equal(t, 1, h.usage(ledger.KindText))
}

func TestChat_EmptyReplyIsNotCharged(t *testing.T) {
	h := newHarness(t, ledger.Limits{Text: 10, Image: 10})
	h.gen.text = func(string) (string, error) { return "   ", nil }

	_, err := h.orch.Chat(context.Background(), "hello")
	assert.Equal(t, KindProviderFailure, KindOf(err))
	assert.Equal(t, 0, h.usage(ledger.KindText))
}

func TestDescribeImage(t *testing.T) {
	h := newHarness(t, ledger.Limits{Text: 10, Image: 10})
	var gotMime string
	h.gen.vision = func(_ string, image []byte, mime string) (string, error) {
		gotMime = mime
		return "a cat on a sofa, soft light", nil
	}

	res, err := h.orch.DescribeImage(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", gotMime)
	require.NotNil(t, res.Entry)
	assert.Equal(t, []string{"a cat on a sofa, soft light"}, h.savedPrompts(t))
	assert.Equal(t, 1, h.usage(ledger.KindText))
	assert.Equal(t, 0, h.usage(ledger.KindImage))
}

func TestDescribeImage_RejectsNonImages(t *testing.T) {
	h := newHarness(t, ledger.Limits{Text: 10, Image: 10})

	_, err := h.orch.DescribeImage(context.Background(), []byte("%PDF"), "application/pdf")
	assert.Equal(t, KindInvalidInput, KindOf(err))

	_, err = h.orch.DescribeImage(context.Background(), nil, "image/png")
	assert.Equal(t, KindInvalidInput, KindOf(err))
	assert.Zero(t, h.gen.calls())
}
