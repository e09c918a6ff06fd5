// Package handlers wires the two background maintenance reactions the
// domain requires: evicting stale config accesses after every read, and
// re-validating every config of a schema whose root prop just changed.
// Both are plain event bus subscribers registered once at startup.
package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/aboglioli/configd/internal/core/domain"
	"github.com/aboglioli/configd/internal/core/ports"
	"github.com/aboglioli/configd/internal/infrastructure/eventbus"
)

// MaintenanceHandlers holds the shared dependencies the two subscribers
// need: a repository to load/save schemas and a bus to republish whatever
// new events their own mutation produces.
type MaintenanceHandlers struct {
	repo   ports.SchemaRepository
	bus    *eventbus.EventBus
	logger *slog.Logger
	clock  func() time.Time
}

func New(repo ports.SchemaRepository, bus *eventbus.EventBus, logger *slog.Logger) *MaintenanceHandlers {
	return &MaintenanceHandlers{repo: repo, bus: bus, logger: logger, clock: time.Now}
}

// Register subscribes both handlers on bus. Call once during bootstrap,
// after the bus itself is constructed and before it starts receiving
// traffic from the application services.
func (h *MaintenanceHandlers) Register() {
	h.bus.Subscribe(domain.TopicConfigAccessed, h.onConfigAccessed)
	h.bus.Subscribe(domain.TopicSchemaRootPropChange, h.onSchemaRootPropChanged)
}

// onConfigAccessed evicts whatever accesses have gone stale on the config
// that was just read, independent of which one triggered the eviction
// pass: a single access bump is a natural, low-cost trigger to sweep the
// whole config's access list clean.
func (h *MaintenanceHandlers) onConfigAccessed(ctx context.Context, event domain.Event) error {
	var payload domain.ConfigAccessedPayload
	if err := event.DeserializePayload(&payload); err != nil {
		return err
	}

	schemaID, err := domain.NewId(payload.SchemaID)
	if err != nil {
		return err
	}
	configID, err := domain.NewId(payload.ID)
	if err != nil {
		return err
	}

	schema, err := h.repo.FindByID(ctx, schemaID)
	if err != nil {
		return domain.WrapError(domain.CodeDatabase, "failed to load schema for access cleanup", err)
	}
	if schema == nil {
		// Schema may have been deleted between the access and this handler
		// running; nothing to clean up.
		return nil
	}

	if err := schema.CleanConfigAccesses(configID, h.clock()); err != nil {
		if domain.IsCode(err, domain.CodeConfigNotFound) {
			return nil
		}
		return err
	}

	return h.saveAndPublish(ctx, schema)
}

// onSchemaRootPropChanged re-validates every config of the schema whose
// root prop just changed. Schema.ChangeRootProp already flips Valid
// inline for the immediate save, but downstream consumers rely on a
// config.revalidated event per config to observe the final outcome, so
// this handler re-runs the (idempotent) revalidation and republishes it.
func (h *MaintenanceHandlers) onSchemaRootPropChanged(ctx context.Context, event domain.Event) error {
	var payload domain.SchemaRootPropChangedPayload
	if err := event.DeserializePayload(&payload); err != nil {
		return err
	}

	schemaID, err := domain.NewId(payload.ID)
	if err != nil {
		return err
	}

	schema, err := h.repo.FindByID(ctx, schemaID)
	if err != nil {
		return domain.WrapError(domain.CodeDatabase, "failed to load schema for revalidation", err)
	}
	if schema == nil {
		return nil
	}

	if err := schema.RevalidateConfigs(h.clock()); err != nil {
		return err
	}

	return h.saveAndPublish(ctx, schema)
}

func (h *MaintenanceHandlers) saveAndPublish(ctx context.Context, schema *domain.Schema) error {
	events, err := h.repo.Save(ctx, schema)
	if err != nil {
		return domain.WrapError(domain.CodeDatabase, "failed to save schema", err)
	}
	return h.bus.Publish(ctx, events)
}
