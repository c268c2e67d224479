package genai

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	calls atomic.Int32
	text  string
	batch *ImageBatch
	err   error
}

func (s *stubBackend) GenerateText(context.Context, string) (string, error) {
	s.calls.Add(1)
	return s.text, s.err
}

func (s *stubBackend) GenerateTextWithImage(context.Context, string, []byte, string) (string, error) {
	s.calls.Add(1)
	return s.text, s.err
}

func (s *stubBackend) GenerateImages(context.Context, string, int) (*ImageBatch, error) {
	s.calls.Add(1)
	return s.batch, s.err
}

func newStubClient(t *testing.T, backend *stubBackend) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{Factory: func(string) (Generator, error) { return backend, nil }})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresFactory(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	assert.Error(t, err)
}

func TestClient_NotConfiguredFailsFast(t *testing.T) {
	ctx := context.Background()
	backend := &stubBackend{text: "hi"}
	c := newStubClient(t, backend)

	assert.False(t, c.Configured())

	_, err := c.GenerateText(ctx, "p")
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = c.GenerateTextWithImage(ctx, "p", []byte{1}, "image/png")
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = c.GenerateImages(ctx, "p", 1)
	assert.ErrorIs(t, err, ErrNotConfigured)

	assert.Zero(t, backend.calls.Load())
}

func TestClient_ConfigureAndReset(t *testing.T) {
	ctx := context.Background()
	backend := &stubBackend{text: "hello"}
	c := newStubClient(t, backend)

	assert.Error(t, c.Configure("  "))
	require.NoError(t, c.Configure("key"))
	assert.True(t, c.Configured())

	text, err := c.GenerateText(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	c.Reset()
	assert.False(t, c.Configured())
	_, err = c.GenerateText(ctx, "p")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestClient_ConfigureFactoryError(t *testing.T) {
	c, err := NewClient(ClientConfig{Factory: func(string) (Generator, error) {
		return nil, errors.New("bad key format")
	}})
	require.NoError(t, err)

	assert.ErrorContains(t, c.Configure("key"), "bad key format")
	assert.False(t, c.Configured())
}

func TestClient_ReconfigureSwapsBackend(t *testing.T) {
	ctx := context.Background()
	keys := map[string]*stubBackend{
		"one": {text: "from one"},
		"two": {text: "from two"},
	}
	c, err := NewClient(ClientConfig{Factory: func(key string) (Generator, error) { return keys[key], nil }})
	require.NoError(t, err)

	require.NoError(t, c.Configure("one"))
	text, _ := c.GenerateText(ctx, "p")
	assert.Equal(t, "from one", text)

	require.NoError(t, c.Configure("two"))
	text, _ = c.GenerateText(ctx, "p")
	assert.Equal(t, "from two", text)
}

func TestClient_EmptyText(t *testing.T) {
	c := newStubClient(t, &stubBackend{text: "  \n"})
	require.NoError(t, c.Configure("key"))

	_, err := c.GenerateText(context.Background(), "p")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestClient_TextWithImageRequiresImage(t *testing.T) {
	backend := &stubBackend{text: "desc"}
	c := newStubClient(t, backend)
	require.NoError(t, c.Configure("key"))

	_, err := c.GenerateTextWithImage(context.Background(), "p", nil, "image/png")
	assert.Error(t, err)
	assert.Zero(t, backend.calls.Load())
}

func TestClient_GenerateImagesOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		batch   *ImageBatch
		wantErr error
		wantN   int
	}{
		{"all produced", &ImageBatch{Images: []string{"a", "b"}}, nil, 2},
		{"partial", &ImageBatch{Images: []string{"a"}, FilteredCount: 3}, nil, 1},
		{"all filtered", &ImageBatch{FilteredCount: 4}, ErrBlocked, 0},
		{"nothing at all", &ImageBatch{}, ErrEmptyResponse, 0},
		{"nil batch", nil, ErrEmptyResponse, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newStubClient(t, &stubBackend{batch: tt.batch})
			require.NoError(t, c.Configure("key"))

			got, err := c.GenerateImages(context.Background(), "p", 4)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got.Images, tt.wantN)
		})
	}
}

func TestClient_GenerateImagesRejectsBadCount(t *testing.T) {
	backend := &stubBackend{batch: &ImageBatch{Images: []string{"a"}}}
	c := newStubClient(t, backend)
	require.NoError(t, c.Configure("key"))

	_, err := c.GenerateImages(context.Background(), "p", 0)
	assert.Error(t, err)
	assert.Zero(t, backend.calls.Load())
}

func TestClient_PassesBackendErrors(t *testing.T) {
	c := newStubClient(t, &stubBackend{err: ErrQuotaExceeded})
	require.NoError(t, c.Configure("key"))

	_, err := c.GenerateText(context.Background(), "p")
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}
