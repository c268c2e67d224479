package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihaimyh/promptstudio/pkg/genai"
	"github.com/mihaimyh/promptstudio/pkg/ledger"
)

func batchOf(produced, filtered int) func(string, int) (*genai.ImageBatch, error) {
	return func(string, int) (*genai.ImageBatch, error) {
		b := &genai.ImageBatch{FilteredCount: filtered}
		for i := 0; i < produced; i++ {
			b.Images = append(b.Images, "img")
		}
		return b, nil
	}
}

func TestCreateImages_Success(t *testing.T) {
	h := newHarness(t, ledger.Limits{Text: 10, Image: 10})
	h.gen.images = batchOf(4, 0)

	res, err := h.orch.CreateImages(context.Background(), "  a lighthouse  ", 4)
	require.NoError(t, err)

	assert.Equal(t, "a lighthouse", res.Prompt)
	assert.Equal(t, 4, res.Produced)
	assert.False(t, res.Partial)
	assert.Equal(t, "Created 4 images.", res.Message)
	assert.Equal(t, 4, h.usage(ledger.KindImage))
	assert.Equal(t, 0, h.usage(ledger.KindText))

	assert.Equal(t, []string{"a lighthouse"}, h.savedPrompts(t))
	images, err := h.images.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, images, 4)
	assert.Len(t, res.Saved, 4)

	notes := h.notes.all()
	require.Len(t, notes, 1)
	assert.True(t, notes[0].success)
	assert.Equal(t, res.Run, notes[0].run)
}

func TestCreateImages_PartialChargesProducedOnly(t *testing.T) {
	h := newHarness(t, ledger.Limits{Text: 10, Image: 10})
	h.gen.images = batchOf(3, 1)

	res, err := h.orch.CreateImages(context.Background(), "a forest", 4)
	require.NoError(t, err)

	assert.True(t, res.Partial)
	assert.Equal(t, 3, res.Produced)
	assert.Equal(t, 1, res.Filtered)
	assert.Equal(t, "Created 3/4 images. 1 blocked by safety policy.", res.Message)
	assert.Equal(t, 3, h.usage(ledger.KindImage))
}

func TestCreateImages_AllBlocked(t *testing.T) {
	h := newHarness(t, ledger.Limits{Text: 10, Image: 10})
	h.gen.images = batchOf(0, 4)

	res, err := h.orch.CreateImages(context.Background(), "something forbidden", 4)
	assert.Nil(t, res)
	assert.Equal(t, KindProviderBlocked, KindOf(err))
	assert.Equal(t, 0, h.usage(ledger.KindImage))
	assert.Empty(t, h.savedPrompts(t))

	notes := h.notes.all()
	require.Len(t, notes, 1)
	assert.False(t, notes[0].success)
	assert.Equal(t, KindProviderBlocked, notes[0].kind)
}

func TestCreateImages_ProviderQuota(t *testing.T) {
	h := newHarness(t, ledger.Limits{Text: 10, Image: 10})
	h.gen.images = func(string, int) (*genai.ImageBatch, error) { return nil, genai.ErrQuotaExceeded }

	_, err := h.orch.CreateImages(context.Background(), "a cat", 2)
	assert.Equal(t, KindProviderQuotaExceeded, KindOf(err))
	assert.Equal(t, 0, h.usage(ledger.KindImage))
}

func TestCreateImages_GateRefusesBeforeCalling(t *testing.T) {
	h := newHarness(t, ledger.Limits{Text: 10, Image: 3})
	h.gen.images = batchOf(4, 0)

	_, err := h.orch.CreateImages(context.Background(), "a cat", 4)
	require.Error(t, err)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KindQuotaExhausted, perr.Kind)
	assert.Equal(t, ledger.KindImage, perr.Resource)
	assert.Equal(t, WorkflowImages, perr.Workflow)
	assert.Equal(t, 6*60*60, int(perr.ResetIn.Seconds()))
	assert.Contains(t, perr.Message(), "resets in 6h 0m 0s")
	assert.Zero(t, h.gen.calls())

	// a smaller batch still fits
	_, err = h.orch.CreateImages(context.Background(), "a cat", 3)
	assert.NoError(t, err)
}

func TestCreateImages_TextExhaustionBlocksImages(t *testing.T) {
	h := newHarness(t, ledger.Limits{Text: 2, Image: 10})
	h.ledger.Record(context.Background(), ledger.KindText, 2)
	h.gen.images = batchOf(1, 0)

	_, err := h.orch.CreateImages(context.Background(), "a cat", 1)
	assert.Equal(t, KindQuotaExhausted, KindOf(err))
	assert.Zero(t, h.gen.calls())
}

func TestCreateImages_ClampsCount(t *testing.T) {
	h := newHarness(t, ledger.Limits{Text: 10, Image: 100})
	h.gen.images = batchOf(1, 0)

	_, err := h.orch.CreateImages(context.Background(), "a", 50)
	require.NoError(t, err)
	_, err = h.orch.CreateImages(context.Background(), "b", 0)
	require.NoError(t, err)

	assert.Equal(t, []int{MaxImageCount, DefaultImageCount}, h.gen.counts)
}

func TestCreateImages_InvalidInput(t *testing.T) {
	h := newHarness(t, ledger.Limits{Text: 10, Image: 10})

	_, err := h.orch.CreateImages(context.Background(), "   ", 2)
	assert.Equal(t, KindInvalidInput, KindOf(err))
	assert.Zero(t, h.gen.calls())

	notes := h.notes.all()
	require.Len(t, notes, 1)
	assert.Equal(t, KindInvalidInput, notes[0].kind)
}

func TestCreateImages_NotConfigured(t *testing.T) {
	h := newHarness(t, ledger.Limits{Text: 10, Image: 10})
	h.client.Reset()
	h.gen.images = batchOf(2, 0)

	_, err := h.orch.CreateImages(context.Background(), "a cat", 2)
	assert.Equal(t, KindNotConfigured, KindOf(err))
	assert.Zero(t, h.gen.calls())
	assert.Equal(t, 0, h.usage(ledger.KindImage))
}

func TestClampImageCount(t *testing.T) {
	assert.Equal(t, DefaultImageCount, ClampImageCount(0))
	assert.Equal(t, DefaultImageCount, ClampImageCount(-3))
	assert.Equal(t, 1, ClampImageCount(1))
	assert.Equal(t, MaxImageCount, ClampImageCount(9))
}
