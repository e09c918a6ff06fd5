// Package memory implements the full-snapshot SchemaRepository backend: the
// whole aggregate (schema + nested configs + nested accesses) lives in a
// single process-wide map, guarded by one reader-writer lock, matching the
// isolation model in the concurrency design: save takes the writer lock,
// reads take the reader lock.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aboglioli/configd/internal/core/domain"
)

type SchemaRepository struct {
	mu    sync.RWMutex
	items map[string]domain.Schema
}

func New() *SchemaRepository {
	return &SchemaRepository{items: make(map[string]domain.Schema)}
}

func (r *SchemaRepository) Find(ctx context.Context, offset, limit int) (domain.Page[domain.Schema], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limit = domain.NormalizeLimit(limit)
	if offset < 0 {
		offset = 0
	}

	ids := make([]string, 0, len(r.items))
	for id := range r.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	total := len(ids)
	var page []domain.Schema
	if offset < total {
		end := offset + limit
		if end > total {
			end = total
		}
		for _, id := range ids[offset:end] {
			page = append(page, r.items[id])
		}
	}

	return domain.NewPage(offset, limit, total, page)
}

func (r *SchemaRepository) FindByID(ctx context.Context, id domain.Id) (*domain.Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schema, ok := r.items[id.Value()]
	if !ok {
		return nil, nil
	}
	return &schema, nil
}

func (r *SchemaRepository) Exists(ctx context.Context, id domain.Id) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.items[id.Value()]
	return ok, nil
}

func (r *SchemaRepository) Save(ctx context.Context, schema *domain.Schema) ([]domain.Event, error) {
	events := schema.Events()

	r.mu.Lock()
	if schema.Timestamps().IsDeleted() {
		delete(r.items, schema.ID().Value())
	} else {
		r.items[schema.ID().Value()] = *schema
	}
	r.mu.Unlock()

	return events, nil
}

func (r *SchemaRepository) Delete(ctx context.Context, id domain.Id) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.items, id.Value())
	return nil
}
