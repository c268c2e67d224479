package tiered

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihaimyh/promptstudio/pkg/kv"
	"github.com/mihaimyh/promptstudio/storage/memory"
)

type failingStore struct {
	kv.Store
	err error
}

func (f *failingStore) Set(context.Context, string, []byte) error { return f.err }

func TestNew(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		s, err := New(Config{Hot: memory.New(), Cold: memory.New()})
		require.NoError(t, err)
		assert.NoError(t, s.Close())
	})

	t.Run("nil hot storage", func(t *testing.T) {
		s, err := New(Config{Cold: memory.New()})
		assert.Nil(t, s)
		assert.ErrorContains(t, err, "hot and cold storage are required")
	})

	t.Run("nil cold storage", func(t *testing.T) {
		s, err := New(Config{Hot: memory.New()})
		assert.Nil(t, s)
		assert.ErrorContains(t, err, "hot and cold storage are required")
	})

	t.Run("default sync buffer size", func(t *testing.T) {
		s, err := New(Config{Hot: memory.New(), Cold: memory.New(), AsyncSync: true})
		require.NoError(t, err)
		defer s.Close()
		assert.Equal(t, 100, cap(s.syncQueue))
	})
}

func TestStorage_ReadThrough(t *testing.T) {
	ctx := context.Background()
	hot, cold := memory.New(), memory.New()
	s, err := New(Config{Hot: hot, Cold: cold})
	require.NoError(t, err)

	require.NoError(t, cold.Set(ctx, kv.KeyPrompts, []byte(`[]`)))

	got, err := s.Get(ctx, kv.KeyPrompts)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))

	repaired, err := hot.Get(ctx, kv.KeyPrompts)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(repaired))

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestStorage_WriteThrough(t *testing.T) {
	ctx := context.Background()
	hot, cold := memory.New(), memory.New()
	s, err := New(Config{Hot: hot, Cold: cold})
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, kv.KeyTextUsage, []byte(`{"count":1}`)))
	for _, store := range []kv.Store{hot, cold} {
		v, err := store.Get(ctx, kv.KeyTextUsage)
		require.NoError(t, err)
		assert.Equal(t, `{"count":1}`, string(v))
	}

	require.NoError(t, s.Delete(ctx, kv.KeyTextUsage))
	_, err = hot.Get(ctx, kv.KeyTextUsage)
	assert.ErrorIs(t, err, kv.ErrNotFound)
	_, err = cold.Get(ctx, kv.KeyTextUsage)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestStorage_WriteThroughColdFailure(t *testing.T) {
	ctx := context.Background()
	hot := memory.New()
	cold := &failingStore{Store: memory.New(), err: errors.New("cold down")}
	s, err := New(Config{Hot: hot, Cold: cold})
	require.NoError(t, err)

	assert.Error(t, s.Set(ctx, kv.KeyTextUsage, []byte(`{}`)))
	_, err = hot.Get(ctx, kv.KeyTextUsage)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestStorage_WriteThroughHotFailureEvicts(t *testing.T) {
	ctx := context.Background()
	hotBacking, cold := memory.New(), memory.New()
	hot := &failingStore{Store: hotBacking, err: errors.New("hot down")}
	s, err := New(Config{Hot: hot, Cold: cold})
	require.NoError(t, err)

	require.NoError(t, hotBacking.Set(ctx, kv.KeyTextUsage, []byte(`{"count":1}`)))
	require.NoError(t, cold.Set(ctx, kv.KeyTextUsage, []byte(`{"count":1}`)))

	require.NoError(t, s.Set(ctx, kv.KeyTextUsage, []byte(`{"count":2}`)))

	_, err = hotBacking.Get(ctx, kv.KeyTextUsage)
	assert.ErrorIs(t, err, kv.ErrNotFound, "stale hot entry evicted")

	got, err := s.Get(ctx, kv.KeyTextUsage)
	require.NoError(t, err)
	assert.Equal(t, `{"count":2}`, string(got))
}

func TestStorage_AsyncSync(t *testing.T) {
	ctx := context.Background()
	hot, cold := memory.New(), memory.New()
	s, err := New(Config{Hot: hot, Cold: cold, AsyncSync: true})
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, kv.KeyImageUsage, []byte(`{"count":4}`)))
	v, err := hot.Get(ctx, kv.KeyImageUsage)
	require.NoError(t, err)
	assert.Equal(t, `{"count":4}`, string(v))

	// Close drains the queue
	require.NoError(t, s.Close())
	v, err = cold.Get(ctx, kv.KeyImageUsage)
	require.NoError(t, err)
	assert.Equal(t, `{"count":4}`, string(v))
	assert.NoError(t, s.Close())
}

func TestStorage_AsyncErrorHandler(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	var got []error

	cold := &failingStore{Store: memory.New(), err: errors.New("cold down")}
	s, err := New(Config{
		Hot:       memory.New(),
		Cold:      cold,
		AsyncSync: true,
		AsyncErrorHandler: func(err error) {
			mu.Lock()
			got = append(got, err)
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, kv.KeyCredential, []byte(`"k"`)))
	require.NoError(t, s.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.ErrorContains(t, got[0], "tiered sync failed")
}
