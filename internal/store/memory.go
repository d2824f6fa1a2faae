package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amankumarsingh77/directory_pipeline/models"
)

// MemoryStore keeps everything in maps. It backs dry runs and tests and
// follows the same upsert rules as PostgresStore.
type MemoryStore struct {
	mu       sync.Mutex
	nextID   int64
	entities map[models.EntityKind]map[string]models.Entity
	products map[string]models.Product
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities: make(map[models.EntityKind]map[string]models.Entity),
		products: make(map[string]models.Product),
		now:      time.Now,
	}
}

func (m *MemoryStore) GetOrCreateEntity(_ context.Context, kind models.EntityKind, name string) (models.Entity, error) {
	if _, err := entityTable(kind); err != nil {
		return models.Entity{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	table, ok := m.entities[kind]
	if !ok {
		table = make(map[string]models.Entity)
		m.entities[kind] = table
	}
	if e, ok := table[name]; ok {
		return e, nil
	}
	m.nextID++
	e := models.Entity{ID: m.nextID, Name: name}
	table[name] = e
	return e, nil
}

func (m *MemoryStore) UpsertProducts(_ context.Context, products []models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// A bad batch writes nothing, matching the single upsert statement in PostgresStore.
	for _, p := range products {
		if p.Codename == "" {
			return fmt.Errorf("product without codename: %q", p.FullName)
		}
	}
	for _, p := range products {
		if existing, ok := m.products[p.Codename]; ok {
			p.ID = existing.ID
			p.Email = existing.Email
			p.TwitterHandle = existing.TwitterHandle
			p.ViewCount = existing.ViewCount
			p.Approved = existing.Approved
			p.Featured = existing.Featured
			p.UserID = existing.UserID
			p.CreatedAt = existing.CreatedAt
		} else {
			m.nextID++
			p.ID = m.nextID
			p.CreatedAt = m.now()
		}
		m.products[p.Codename] = p
	}
	return nil
}

func (m *MemoryStore) GetProduct(_ context.Context, codename string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[codename]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, codename)
	}
	return &p, nil
}

// Products returns a copy of every stored product.
func (m *MemoryStore) Products() []models.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out
}

// Entities returns the names stored for kind.
func (m *MemoryStore) Entities(kind models.EntityKind) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for name := range m.entities[kind] {
		names = append(names, name)
	}
	return names
}

func (m *MemoryStore) Close() error {
	return nil
}
