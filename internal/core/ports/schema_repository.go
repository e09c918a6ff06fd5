// Package ports declares the outbound contracts the application layer
// depends on, implemented by the infrastructure/repository and
// infrastructure/cache packages.
package ports

import (
	"context"

	"github.com/aboglioli/configd/internal/core/domain"
)

// SchemaRepository loads and persists Schema aggregates. Two backends
// satisfy this contract: a full-snapshot in-memory store and an
// event-sourced relational store (SQLite/Postgres).
type SchemaRepository interface {
	// Find returns a page of schemas. offset defaults to 0; limit defaults
	// to domain.DefaultLimit and is hard-capped at domain.MaxLimit.
	Find(ctx context.Context, offset, limit int) (domain.Page[domain.Schema], error)
	FindByID(ctx context.Context, id domain.Id) (*domain.Schema, error)
	Exists(ctx context.Context, id domain.Id) (bool, error)
	// Save persists the current aggregate state and drains its event
	// collector; the returned events are what the caller should publish.
	Save(ctx context.Context, schema *domain.Schema) ([]domain.Event, error)
	Delete(ctx context.Context, id domain.Id) error
}
