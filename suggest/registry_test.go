package suggest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingFactory(builds *atomic.Int32) Factory {
	return func(_ context.Context, id string) (Suggester, error) {
		builds.Add(1)
		// widen the race window
		time.Sleep(5 * time.Millisecond)
		return newMockSuggester(id), nil
	}
}

func TestRegistryConcurrentFirstGet(t *testing.T) {
	var builds atomic.Int32
	r := NewRegistry(countingFactory(&builds), nil)

	const n = 64
	got := make([]Suggester, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			s, err := r.Get(context.Background(), "shop")
			assert.NoError(t, err)
			got[i] = s
		}(i)
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, builds.Load())
	for i := 1; i < n; i++ {
		assert.Same(t, got[0], got[i])
	}
	assert.Equal(t, 1, r.Len())
}

func TestRegistryInvalidate(t *testing.T) {
	var builds atomic.Int32
	r := NewRegistry(countingFactory(&builds), nil)
	ctx := context.Background()

	first, err := r.Get(ctx, "shop")
	require.NoError(t, err)
	again, err := r.Get(ctx, "shop")
	require.NoError(t, err)
	assert.Same(t, first, again)

	r.Invalidate("shop")
	assert.Equal(t, 0, r.Len())
	fresh, err := r.Get(ctx, "shop")
	require.NoError(t, err)
	assert.NotSame(t, first, fresh)
	assert.EqualValues(t, 2, builds.Load())

	// invalidating an unknown id is a no-op
	r.Invalidate("other")
	assert.Equal(t, 1, r.Len())
}

func TestRegistryIdsAreCaseSensitive(t *testing.T) {
	var builds atomic.Int32
	r := NewRegistry(countingFactory(&builds), nil)
	a, _ := r.Get(context.Background(), "Shop")
	b, _ := r.Get(context.Background(), "shop")
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, r.Len())
}

func TestRegistryDoesNotCacheFailures(t *testing.T) {
	calls := 0
	boom := errors.New("engine unreachable")
	r := NewRegistry(func(_ context.Context, id string) (Suggester, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return newMockSuggester(id), nil
	}, nil)

	_, err := r.Get(context.Background(), "shop")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	var ee *EngineError
	assert.ErrorAs(t, err, &ee)
	assert.Equal(t, "shop", ee.Index)
	assert.Equal(t, 0, r.Len())

	s, err := r.Get(context.Background(), "shop")
	require.NoError(t, err)
	assert.Equal(t, "shop", s.Index())
	ok, failed := r.Builds()
	assert.EqualValues(t, 1, ok)
	assert.EqualValues(t, 1, failed)
}

func TestRegistryEmptyID(t *testing.T) {
	r := NewRegistry(staticFactory(newMockSuggester("x")), nil)
	_, err := r.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyIndex)
}
