// Package services holds the application layer: thin orchestrators, one
// per use case, that translate inputs into domain calls, load/mutate/save
// through a SchemaRepository, and publish the resulting events.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/aboglioli/configd/internal/core/domain"
	"github.com/aboglioli/configd/internal/core/ports"
	"github.com/aboglioli/configd/internal/infrastructure/eventbus"
)

// SchemaService orchestrates every Schema-level use case (create, read,
// list, update root prop, delete). The Config use cases under a schema are
// in ConfigService.
type SchemaService struct {
	repo   ports.SchemaRepository
	bus    *eventbus.EventBus
	logger *slog.Logger
	clock  func() time.Time
}

func NewSchemaService(repo ports.SchemaRepository, bus *eventbus.EventBus, logger *slog.Logger) *SchemaService {
	return &SchemaService{repo: repo, bus: bus, logger: logger, clock: time.Now}
}

func (s *SchemaService) now() time.Time { return s.clock() }

// saveAndPublish persists schema, then publishes whatever events were
// drained. Errors from Save are always surfaced; a mutation is only
// considered durable once Save returns nil.
func (s *SchemaService) saveAndPublish(ctx context.Context, schema *domain.Schema) error {
	events, err := s.repo.Save(ctx, schema)
	if err != nil {
		return domain.WrapError(domain.CodeDatabase, "failed to save schema", err)
	}
	if err := s.bus.Publish(ctx, events); err != nil {
		return err
	}
	return nil
}

// CreateSchema creates a new Schema with an empty configs map. id, when
// empty, is derived from name via domain.SlugId, so POST /schemas with
// {name: "API"} answers 201 {id: "api"}.
func (s *SchemaService) CreateSchema(ctx context.Context, id, name string, rootProp domain.Prop) (domain.Schema, error) {
	var schemaID domain.Id
	var err error
	if id != "" {
		schemaID, err = domain.NewId(id)
	} else {
		schemaID, err = domain.SlugId(name)
	}
	if err != nil {
		return domain.Schema{}, err
	}

	exists, err := s.repo.Exists(ctx, schemaID)
	if err != nil {
		return domain.Schema{}, domain.WrapError(domain.CodeDatabase, "failed to check schema existence", err)
	}
	if exists {
		return domain.Schema{}, domain.NewError(domain.CodeSchemaAlreadyExists, "schema already exists: "+schemaID.Value())
	}

	schema, err := domain.CreateSchema(schemaID, name, rootProp, s.now())
	if err != nil {
		return domain.Schema{}, err
	}

	if err := s.saveAndPublish(ctx, &schema); err != nil {
		return domain.Schema{}, err
	}
	return schema, nil
}

func (s *SchemaService) GetSchema(ctx context.Context, id domain.Id) (domain.Schema, error) {
	schema, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Schema{}, domain.WrapError(domain.CodeDatabase, "failed to load schema", err)
	}
	if schema == nil {
		return domain.Schema{}, domain.NewError(domain.CodeSchemaNotFound, "schema not found: "+id.Value())
	}
	return *schema, nil
}

func (s *SchemaService) ListSchemas(ctx context.Context, offset, limit int) (domain.Page[domain.Schema], error) {
	page, err := s.repo.Find(ctx, offset, limit)
	if err != nil {
		return domain.Page[domain.Schema]{}, domain.WrapError(domain.CodeDatabase, "failed to list schemas", err)
	}
	return page, nil
}

// ChangeRootProp replaces the schema's root Prop, re-validating every
// config against it.
func (s *SchemaService) ChangeRootProp(ctx context.Context, id domain.Id, rootProp domain.Prop) (domain.Schema, error) {
	schema, err := s.loadRequired(ctx, id)
	if err != nil {
		return domain.Schema{}, err
	}

	if err := schema.ChangeRootProp(rootProp, s.now()); err != nil {
		return domain.Schema{}, err
	}

	if err := s.saveAndPublish(ctx, &schema); err != nil {
		return domain.Schema{}, err
	}
	return schema, nil
}

// DeleteSchema refuses while the schema still owns configs.
func (s *SchemaService) DeleteSchema(ctx context.Context, id domain.Id) error {
	schema, err := s.loadRequired(ctx, id)
	if err != nil {
		return err
	}

	if err := schema.Delete(s.now()); err != nil {
		return err
	}

	return s.saveAndPublish(ctx, &schema)
}

func (s *SchemaService) loadRequired(ctx context.Context, id domain.Id) (domain.Schema, error) {
	schema, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Schema{}, domain.WrapError(domain.CodeDatabase, "failed to load schema", err)
	}
	if schema == nil {
		return domain.Schema{}, domain.NewError(domain.CodeSchemaNotFound, "schema not found: "+id.Value())
	}
	return *schema, nil
}
