package store

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/amankumarsingh77/directory_pipeline/models"
)

type cacheItem[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// LRUCache is a size-bounded cache whose entries also expire after ttl.
// A zero ttl never expires.
type LRUCache[K comparable, V any] struct {
	capacity int
	ttl      time.Duration
	cache    map[K]*list.Element
	list     *list.List
	mu       sync.Mutex
	now      func() time.Time
}

func NewLRUCache[K comparable, V any](capacity int, ttl time.Duration) *LRUCache[K, V] {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRUCache[K, V]{
		capacity: capacity,
		ttl:      ttl,
		cache:    make(map[K]*list.Element),
		list:     list.New(),
		now:      time.Now,
	}
}

func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.cache[key]
	if !ok {
		return zero, false
	}
	item := elem.Value.(*cacheItem[K, V])
	if c.ttl > 0 && c.now().After(item.expiresAt) {
		c.removeElement(elem)
		return zero, false
	}
	c.list.MoveToFront(elem)
	return item.value, true
}

func (c *LRUCache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.now().Add(c.ttl)
	}

	if elem, ok := c.cache[key]; ok {
		c.list.MoveToFront(elem)
		item := elem.Value.(*cacheItem[K, V])
		item.value = value
		item.expiresAt = expiresAt
		return
	}

	if c.list.Len() >= c.capacity {
		if elem := c.list.Back(); elem != nil {
			c.removeElement(elem)
		}
	}
	c.cache[key] = c.list.PushFront(&cacheItem[K, V]{key, value, expiresAt})
}

func (c *LRUCache[K, V]) removeElement(elem *list.Element) {
	delete(c.cache, elem.Value.(*cacheItem[K, V]).key)
	c.list.Remove(elem)
}

func (c *LRUCache[K, V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.Len()
}

type entityKey struct {
	kind models.EntityKind
	name string
}

type cachingStore struct {
	Store
	entities *LRUCache[entityKey, models.Entity]
}

// WithEntityCache puts an LRU in front of GetOrCreateEntity. The same few
// hundred tag names come up for every product in a batch.
func WithEntityCache(s Store, capacity int, ttl time.Duration) Store {
	return &cachingStore{
		Store:    s,
		entities: NewLRUCache[entityKey, models.Entity](capacity, ttl),
	}
}

func (c *cachingStore) GetOrCreateEntity(ctx context.Context, kind models.EntityKind, name string) (models.Entity, error) {
	key := entityKey{kind, name}
	if e, ok := c.entities.Get(key); ok {
		return e, nil
	}
	e, err := c.Store.GetOrCreateEntity(ctx, kind, name)
	if err != nil {
		return models.Entity{}, err
	}
	c.entities.Put(key, e)
	return e, nil
}
