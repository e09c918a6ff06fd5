package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/aboglioli/configd/internal/core/domain"
	"github.com/aboglioli/configd/internal/core/ports"
	"github.com/aboglioli/configd/internal/infrastructure/eventbus"
)

// ConfigService orchestrates every Config-level use case. It always loads
// the owning Schema first, since every mutation rule and password gate
// lives on the aggregate, not on the config in isolation.
type ConfigService struct {
	repo   ports.SchemaRepository
	bus    *eventbus.EventBus
	logger *slog.Logger
	clock  func() time.Time
}

func NewConfigService(repo ports.SchemaRepository, bus *eventbus.EventBus, logger *slog.Logger) *ConfigService {
	return &ConfigService{repo: repo, bus: bus, logger: logger, clock: time.Now}
}

func (s *ConfigService) now() time.Time { return s.clock() }

func (s *ConfigService) loadSchema(ctx context.Context, schemaID domain.Id) (domain.Schema, error) {
	schema, err := s.repo.FindByID(ctx, schemaID)
	if err != nil {
		return domain.Schema{}, domain.WrapError(domain.CodeDatabase, "failed to load schema", err)
	}
	if schema == nil {
		return domain.Schema{}, domain.NewError(domain.CodeSchemaNotFound, "schema not found: "+schemaID.Value())
	}
	return *schema, nil
}

func (s *ConfigService) saveAndPublish(ctx context.Context, schema *domain.Schema) error {
	events, err := s.repo.Save(ctx, schema)
	if err != nil {
		return domain.WrapError(domain.CodeDatabase, "failed to save schema", err)
	}
	return s.bus.Publish(ctx, events)
}

// ResolveAccess builds the Access for a get_config request out of the
// optional X-Configd-Source/X-Configd-Instance headers, falling back to
// domain.UnknownId() for whichever side was not identified. A caller that
// supplies neither header still produces a valid, if anonymous, Access.
func ResolveAccess(source, instance string, now time.Time) (domain.Access, error) {
	sourceID := domain.UnknownId()
	instanceID := domain.UnknownId()

	if source != "" {
		id, err := domain.NewId(source)
		if err != nil {
			return domain.Access{}, err
		}
		sourceID = id
	}
	if instance != "" {
		id, err := domain.NewId(instance)
		if err != nil {
			return domain.Access{}, err
		}
		instanceID = id
	}

	return domain.NewAccess(sourceID, instanceID, now), nil
}

// CreateConfig adds a config to the given schema. id, when empty, is
// derived from name via domain.SlugId.
func (s *ConfigService) CreateConfig(ctx context.Context, schemaID domain.Id, id, name string, data domain.Value, password *domain.Password) (domain.Config, error) {
	schema, err := s.loadSchema(ctx, schemaID)
	if err != nil {
		return domain.Config{}, err
	}

	var configID domain.Id
	if id != "" {
		configID, err = domain.NewId(id)
	} else {
		configID, err = domain.SlugId(name)
	}
	if err != nil {
		return domain.Config{}, err
	}

	if err := schema.AddConfig(configID, name, data, password, s.now()); err != nil {
		return domain.Config{}, err
	}

	if err := s.saveAndPublish(ctx, &schema); err != nil {
		return domain.Config{}, err
	}

	return schema.Configs()[configID.Value()], nil
}

// GetConfigResult bundles the config snapshot with the (possibly
// populated) view a caller actually asked for.
type GetConfigResult struct {
	Config domain.Config
	Value  domain.Value
}

// GetConfig registers an access, optionally populates the returned value
// with schema defaults and split division, and saves/publishes the
// resulting config.accessed (and possible subsequent eviction) events in
// the background: the caller already has everything it needs to respond,
// so persisting the access bump must not add latency to the read path.
func (s *ConfigService) GetConfig(ctx context.Context, schemaID, configID domain.Id, password *domain.Password, access domain.Access, populate bool) (GetConfigResult, error) {
	schema, err := s.loadSchema(ctx, schemaID)
	if err != nil {
		return GetConfigResult{}, err
	}

	config, err := schema.GetConfig(configID, access, password, s.now())
	if err != nil {
		return GetConfigResult{}, err
	}

	value := config.Data()
	if populate {
		value = schema.PopulateConfig(config)
	}

	s.saveInBackground(schema)

	return GetConfigResult{Config: config, Value: value}, nil
}

// UpdateConfig replaces a config's data, re-validating it against the
// schema's root prop.
func (s *ConfigService) UpdateConfig(ctx context.Context, schemaID, configID domain.Id, data domain.Value, password *domain.Password) (domain.Config, error) {
	schema, err := s.loadSchema(ctx, schemaID)
	if err != nil {
		return domain.Config{}, err
	}

	if err := schema.UpdateConfig(configID, data, password, s.now()); err != nil {
		return domain.Config{}, err
	}

	if err := s.saveAndPublish(ctx, &schema); err != nil {
		return domain.Config{}, err
	}

	return schema.Configs()[configID.Value()], nil
}

// ValidateConfig dry-runs root_prop.Validate without mutating or saving
// anything; used by the standalone /validate endpoint so callers can check
// a payload before committing to CreateConfig/UpdateConfig.
func (s *ConfigService) ValidateConfig(ctx context.Context, schemaID domain.Id, data domain.Value) (domain.Diff, error) {
	schema, err := s.loadSchema(ctx, schemaID)
	if err != nil {
		return domain.Diff{}, err
	}
	return schema.RootProp().Validate(data), nil
}

// ChangeConfigPassword requires the current password (nil accepted when
// the config has none yet) and replaces it with newPassword.
func (s *ConfigService) ChangeConfigPassword(ctx context.Context, schemaID, configID domain.Id, oldPassword *domain.Password, newPassword domain.Password) error {
	schema, err := s.loadSchema(ctx, schemaID)
	if err != nil {
		return err
	}

	if err := schema.ChangeConfigPassword(configID, oldPassword, newPassword, s.now()); err != nil {
		return err
	}

	return s.saveAndPublish(ctx, &schema)
}

// DeleteConfigPassword requires the current password and clears the gate.
func (s *ConfigService) DeleteConfigPassword(ctx context.Context, schemaID, configID domain.Id, password *domain.Password) error {
	schema, err := s.loadSchema(ctx, schemaID)
	if err != nil {
		return err
	}

	if err := schema.DeleteConfigPassword(configID, password, s.now()); err != nil {
		return err
	}

	return s.saveAndPublish(ctx, &schema)
}

// DeleteConfig requires the current password and removes the config from
// its schema.
func (s *ConfigService) DeleteConfig(ctx context.Context, schemaID, configID domain.Id, password *domain.Password) error {
	schema, err := s.loadSchema(ctx, schemaID)
	if err != nil {
		return err
	}

	if err := schema.DeleteConfig(configID, password, s.now()); err != nil {
		return err
	}

	return s.saveAndPublish(ctx, &schema)
}

// saveInBackground persists the aggregate and publishes its drained
// events off the request path: the caller already has everything it needs
// to respond, so the access bump must not add latency to the read.
// Callers must not rely on read-induced state being durable before the
// response returns.
func (s *ConfigService) saveInBackground(schema domain.Schema) {
	go func() {
		ctx := context.Background()
		events, err := s.repo.Save(ctx, &schema)
		if err != nil {
			s.logger.Error("failed to persist background save", "error", err, "schema_id", schema.ID().Value())
			return
		}
		if err := s.bus.Publish(ctx, events); err != nil {
			s.logger.Error("failed to publish events from background save", "error", err, "schema_id", schema.ID().Value())
		}
	}()
}
