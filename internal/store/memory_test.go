package store

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/Priya8975/event-recorder/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_AppendAssignsPositions(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	for i, name := range []string{"GET", "custom", "GET"} {
		events, err := s.Append(ctx, domain.Event{ID: 99, Name: name})
		require.NoError(t, err)
		require.Len(t, events, i+1)

		last := events[len(events)-1]
		assert.Equal(t, i, last.ID, "id should be the position at insertion")
		assert.Equal(t, name, last.Name)
	}

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestMemoryStore_ListEmpty(t *testing.T) {
	events, err := NewMemory().List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, events, "empty store should list as an empty slice, not nil")
	assert.Empty(t, events)
}

func TestMemoryStore_SnapshotIsolation(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	first, err := s.Append(ctx, domain.Event{Name: "a"})
	require.NoError(t, err)

	first[0].Name = "mutated"
	_, err = s.Append(ctx, domain.Event{Name: "b"})
	require.NoError(t, err)

	events, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].Name, "callers must not be able to mutate stored events")
	assert.Len(t, first, 1, "an earlier snapshot must not grow")
}

func TestMemoryStore_ConcurrentAppendsGetUniqueIDs(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	const n = 200
	ids := make([]int, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			events, err := s.Append(ctx, domain.Event{Name: "GET"})
			if err != nil {
				t.Errorf("append: %v", err)
				return
			}
			ids[i] = events[len(events)-1].ID
		}(i)
	}
	wg.Wait()

	sort.Ints(ids)
	for i, id := range ids {
		require.Equal(t, i, id, "ids must be unique and gap free")
	}

	events, err := s.List(ctx)
	require.NoError(t, err)
	for i, e := range events {
		assert.Equal(t, i, e.ID, "stored order must match ids")
	}
}
