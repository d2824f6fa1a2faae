package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/amankumarsingh77/directory_pipeline/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_UpsertIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.UpsertProducts(ctx, []models.Product{{Codename: "npm", Punchline: "old", Approved: true}}))
	first, err := s.GetProduct(ctx, "npm")
	require.NoError(t, err)

	require.NoError(t, s.UpsertProducts(ctx, []models.Product{{Codename: "npm", Punchline: "new", Approved: false, Featured: true}}))
	assert.Len(t, s.Products(), 1)

	second, err := s.GetProduct(ctx, "npm")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "new", second.Punchline)
	assert.True(t, second.Approved)
	assert.False(t, second.Featured)
}

func TestMemoryStore_UpsertRejectsWholeBatch(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	err := s.UpsertProducts(ctx, []models.Product{
		{Codename: "npm", Punchline: "first"},
		{FullName: "Nameless"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Nameless")
	assert.Empty(t, s.Products())

	_, err = s.GetProduct(ctx, "npm")
	assert.Error(t, err)
}

func TestMemoryStore_ConcurrentGetOrCreateConverges(t *testing.T) {
	s := NewMemoryStore()
	var wg sync.WaitGroup
	ids := make([]int64, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := s.GetOrCreateEntity(context.Background(), models.EntityTag, "ai_powered")
			assert.NoError(t, err)
			ids[i] = e.ID
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, []string{"ai_powered"}, s.Entities(models.EntityTag))
}

func TestWithEntityCache(t *testing.T) {
	inner := &countingStore{MemoryStore: NewMemoryStore()}
	s := WithEntityCache(inner, 10, time.Minute)
	ctx := context.Background()

	a, err := s.GetOrCreateEntity(ctx, models.EntityTag, "api")
	require.NoError(t, err)
	b, err := s.GetOrCreateEntity(ctx, models.EntityTag, "api")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, inner.calls)

	_, err = s.GetOrCreateEntity(ctx, models.EntityLabel, "api")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestLRUCache_EvictsAndExpires(t *testing.T) {
	c := NewLRUCache[string, int](2, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Put("a", 1)
	c.Put("b", 2)
	_, _ = c.Get("a")
	c.Put("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "least recently used entry is evicted")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Size())
}
