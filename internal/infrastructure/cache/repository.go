package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/aboglioli/configd/internal/core/domain"
	"github.com/aboglioli/configd/internal/core/ports"
)

const (
	keyPrefix  = "configd:schema:"
	defaultTTL = 5 * time.Minute
)

// SchemaRepository decorates an inner repository with a read-through cache
// on FindByID. It never changes repository semantics: every Save and
// Delete invalidates the key, and store failures fall back to the inner
// repository rather than failing the request.
type SchemaRepository struct {
	inner  ports.SchemaRepository
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

func Wrap(inner ports.SchemaRepository, store Store, logger *slog.Logger) *SchemaRepository {
	return &SchemaRepository{inner: inner, store: store, ttl: defaultTTL, logger: logger}
}

func key(id domain.Id) string { return keyPrefix + id.Value() }

func (r *SchemaRepository) Find(ctx context.Context, offset, limit int) (domain.Page[domain.Schema], error) {
	return r.inner.Find(ctx, offset, limit)
}

func (r *SchemaRepository) FindByID(ctx context.Context, id domain.Id) (*domain.Schema, error) {
	if encoded, ok, err := r.store.Get(ctx, key(id)); err != nil {
		r.logger.Warn("schema cache read failed", "error", err, "schema_id", id.Value())
	} else if ok {
		schema, err := decodeSchema(encoded)
		if err != nil {
			r.logger.Warn("schema cache entry corrupt", "error", err, "schema_id", id.Value())
			_ = r.store.Delete(ctx, key(id))
		} else {
			return &schema, nil
		}
	}

	schema, err := r.inner.FindByID(ctx, id)
	if err != nil || schema == nil {
		return schema, err
	}

	if encoded, err := encodeSchema(*schema); err != nil {
		r.logger.Warn("failed to encode schema for cache", "error", err, "schema_id", id.Value())
	} else if err := r.store.Set(ctx, key(id), encoded, r.ttl); err != nil {
		r.logger.Warn("schema cache write failed", "error", err, "schema_id", id.Value())
	}

	return schema, nil
}

func (r *SchemaRepository) Exists(ctx context.Context, id domain.Id) (bool, error) {
	return r.inner.Exists(ctx, id)
}

func (r *SchemaRepository) Save(ctx context.Context, schema *domain.Schema) ([]domain.Event, error) {
	events, err := r.inner.Save(ctx, schema)
	if err != nil {
		return nil, err
	}
	if err := r.store.Delete(ctx, key(schema.ID())); err != nil {
		r.logger.Warn("schema cache invalidation failed", "error", err, "schema_id", schema.ID().Value())
	}
	return events, nil
}

func (r *SchemaRepository) Delete(ctx context.Context, id domain.Id) error {
	if err := r.inner.Delete(ctx, id); err != nil {
		return err
	}
	if err := r.store.Delete(ctx, key(id)); err != nil {
		r.logger.Warn("schema cache invalidation failed", "error", err, "schema_id", id.Value())
	}
	return nil
}
