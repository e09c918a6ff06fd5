package domain

import "time"

// Schema is the aggregate root: it binds a root Prop to a set of Configs,
// owns their mutation rules, and records domain events into an embedded
// EventCollector. It never publishes directly.
type Schema struct {
	id       Id
	name     string
	rootProp Prop
	configs  map[string]Config

	timestamps Timestamps
	version    Version

	events EventCollector
}

// NewSchema reconstitutes a Schema from already-validated components, used
// by SchemaRepository implementations.
func NewSchema(id Id, name string, rootProp Prop, configs map[string]Config, timestamps Timestamps, version Version) (Schema, error) {
	if name == "" {
		return Schema{}, NewError(CodeEmptyName, "schema name must not be empty")
	}
	if configs == nil {
		configs = map[string]Config{}
	}
	return Schema{id: id, name: name, rootProp: rootProp, configs: configs, timestamps: timestamps, version: version}, nil
}

// CreateSchema builds a brand new Schema with an empty configs map and
// records schema.created.
func CreateSchema(id Id, name string, rootProp Prop, now time.Time) (Schema, error) {
	s, err := NewSchema(id, name, rootProp, nil, CreateTimestamps(now), InitVersion())
	if err != nil {
		return Schema{}, err
	}

	propJSON, err := PropToJSON(rootProp)
	if err != nil {
		return Schema{}, err
	}
	event, err := CreateEvent(s.id.Value(), TopicSchemaCreated, SchemaCreatedPayload{
		ID: s.id.Value(), Name: s.name, RootProp: propJSON,
	}, now)
	if err != nil {
		return Schema{}, err
	}
	s.events.Record(event)

	return s, nil
}

func (s Schema) ID() Id                     { return s.id }
func (s Schema) Name() string               { return s.name }
func (s Schema) RootProp() Prop             { return s.rootProp }
func (s Schema) Configs() map[string]Config { return s.configs }
func (s Schema) Timestamps() Timestamps     { return s.timestamps }
func (s Schema) Version() Version           { return s.version }

// Events drains and returns the buffered events (queue semantics; single
// drain per save cycle).
func (s *Schema) Events() []Event { return s.events.Events() }

// ChangeRootProp replaces RootProp, re-validates every config against it
// (marking mismatches invalid), and records schema.root_prop_changed.
func (s *Schema) ChangeRootProp(prop Prop, now time.Time) error {
	s.rootProp = prop

	for id, config := range s.configs {
		diff := s.rootProp.Validate(config.Data())
		if !diff.IsEmpty() {
			config.MarkAsInvalid(now)
			s.configs[id] = config
		}
	}

	propJSON, err := PropToJSON(prop)
	if err != nil {
		return err
	}
	event, err := CreateEvent(s.id.Value(), TopicSchemaRootPropChange, SchemaRootPropChangedPayload{
		ID: s.id.Value(), RootProp: propJSON,
	}, now)
	if err != nil {
		return err
	}
	s.events.Record(event)

	s.timestamps = s.timestamps.Update(now)
	s.version = s.version.Incr()
	return nil
}

// GetConfig requires CanAccess(password), registers access on the config,
// records config.accessed, and returns a snapshot of the config.
func (s *Schema) GetConfig(id Id, access Access, password *Password, now time.Time) (Config, error) {
	config, ok := s.configs[id.Value()]
	if !ok {
		return Config{}, NewError(CodeConfigNotFound, "config not found: "+id.Value())
	}

	if !config.CanAccess(password) {
		return Config{}, NewError(CodeUnauthorized, "config password does not match")
	}

	recorded := config.RegisterAccess(access, now)
	s.configs[id.Value()] = config

	event, err := CreateEvent(config.ID().Value(), TopicConfigAccessed, ConfigAccessedPayload{
		ID: config.ID().Value(), SchemaID: s.id.Value(),
		Source: recorded.Source.Value(), Instance: recorded.Instance.Value(),
		Timestamp: recorded.Timestamp, Previous: recorded.Previous,
	}, now)
	if err != nil {
		return Config{}, err
	}
	s.events.Record(event)

	return config, nil
}

// PopulateConfig returns root_prop.Populate(config.Data(), len(accesses))
// without mutating any state.
func (s Schema) PopulateConfig(config Config) Value {
	return s.rootProp.Populate(config.Data(), int64(len(config.Accesses())))
}

// AddConfig requires id not already present and data validating against
// RootProp; records config.created.
func (s *Schema) AddConfig(id Id, name string, data Value, password *Password, now time.Time) error {
	if _, exists := s.configs[id.Value()]; exists {
		return NewError(CodeConfigAlreadyExists, "config already exists: "+id.Value())
	}

	diff := s.rootProp.Validate(data)
	if !diff.IsEmpty() {
		return NewInvalidConfigError(diff)
	}

	config, err := CreateConfig(id, name, data, true, password, now)
	if err != nil {
		return err
	}

	var hashedPassword *string
	if config.Password() != nil {
		v := config.Password().Value()
		hashedPassword = &v
	}
	event, err := CreateEvent(config.ID().Value(), TopicConfigCreated, ConfigCreatedPayload{
		ID: config.ID().Value(), SchemaID: s.id.Value(), Name: config.Name(), Data: config.Data(), Valid: config.IsValid(),
		Password: hashedPassword,
	}, now)
	if err != nil {
		return err
	}
	s.events.Record(event)

	s.configs[config.ID().Value()] = config

	s.timestamps = s.timestamps.Update(now)
	s.version = s.version.Incr()
	return nil
}

// UpdateConfig requires the config exist, CanAccess(password) and data
// validate against RootProp; records config.data_changed.
func (s *Schema) UpdateConfig(id Id, data Value, password *Password, now time.Time) error {
	config, ok := s.configs[id.Value()]
	if !ok {
		return NewError(CodeConfigNotFound, "config not found: "+id.Value())
	}

	if !config.CanAccess(password) {
		return NewError(CodeUnauthorized, "config password does not match")
	}

	diff := s.rootProp.Validate(data)
	if !diff.IsEmpty() {
		return NewInvalidConfigError(diff)
	}

	config.ChangeData(data, diff.IsEmpty(), now)

	event, err := CreateEvent(config.ID().Value(), TopicConfigDataChanged, ConfigDataChangedPayload{
		ID: config.ID().Value(), SchemaID: s.id.Value(), Data: config.Data(), Valid: config.IsValid(),
	}, now)
	if err != nil {
		return err
	}
	s.events.Record(event)

	s.configs[id.Value()] = config

	s.timestamps = s.timestamps.Update(now)
	s.version = s.version.Incr()
	return nil
}

// ChangeConfigPassword delegates to Config.ChangePassword and records
// config.password_changed.
func (s *Schema) ChangeConfigPassword(id Id, oldPassword *Password, newPassword Password, now time.Time) error {
	config, ok := s.configs[id.Value()]
	if !ok {
		return NewError(CodeConfigNotFound, "config not found: "+id.Value())
	}
	if err := config.ChangePassword(oldPassword, newPassword, now); err != nil {
		return err
	}
	s.configs[id.Value()] = config

	event, err := CreateEvent(config.ID().Value(), TopicConfigPasswordChange, ConfigPasswordChangedPayload{
		ID: config.ID().Value(), SchemaID: s.id.Value(), Password: config.Password().Value(),
	}, now)
	if err != nil {
		return err
	}
	s.events.Record(event)
	return nil
}

// DeleteConfigPassword delegates to Config.DeletePassword and records
// config.password_deleted.
func (s *Schema) DeleteConfigPassword(id Id, password *Password, now time.Time) error {
	config, ok := s.configs[id.Value()]
	if !ok {
		return NewError(CodeConfigNotFound, "config not found: "+id.Value())
	}
	if err := config.DeletePassword(password, now); err != nil {
		return err
	}
	s.configs[id.Value()] = config

	event, err := CreateEvent(config.ID().Value(), TopicConfigPasswordDelete, ConfigPasswordDeletedPayload{
		ID: config.ID().Value(), SchemaID: s.id.Value(),
	}, now)
	if err != nil {
		return err
	}
	s.events.Record(event)
	return nil
}

// CleanConfigAccesses evicts stale accesses on the given config and records
// one config.access_removed per removed access.
func (s *Schema) CleanConfigAccesses(id Id, now time.Time) error {
	config, ok := s.configs[id.Value()]
	if !ok {
		return NewError(CodeConfigNotFound, "config not found: "+id.Value())
	}

	removed := config.CleanOldAccesses(now)
	for _, access := range removed {
		event, err := CreateEvent(config.ID().Value(), TopicConfigAccessRemoved, ConfigAccessRemovedPayload{
			ID: config.ID().Value(), SchemaID: s.id.Value(),
			Source: access.Source.Value(), Instance: access.Instance.Value(),
		}, now)
		if err != nil {
			return err
		}
		s.events.Record(event)
	}

	s.configs[id.Value()] = config
	return nil
}

// DeleteConfig requires CanAccess(password); removes the config and records
// config.deleted.
func (s *Schema) DeleteConfig(id Id, password *Password, now time.Time) error {
	config, ok := s.configs[id.Value()]
	if !ok {
		return NewError(CodeConfigNotFound, "config not found: "+id.Value())
	}
	if !config.CanAccess(password) {
		return NewError(CodeUnauthorized, "config password does not match")
	}

	delete(s.configs, id.Value())

	event, err := CreateEvent(id.Value(), TopicConfigDeleted, ConfigDeletedPayload{
		ID: id.Value(), SchemaID: s.id.Value(),
	}, now)
	if err != nil {
		return err
	}
	s.events.Record(event)

	s.timestamps = s.timestamps.Update(now)
	s.version = s.version.Incr()
	return nil
}

// RevalidateConfigs re-runs RootProp.Validate on every config's data,
// flipping Valid and recording one config.revalidated per config.
func (s *Schema) RevalidateConfigs(now time.Time) error {
	for id, config := range s.configs {
		diff := s.rootProp.Validate(config.Data())
		valid := diff.IsEmpty()
		if valid != config.IsValid() {
			config.ChangeData(config.Data(), valid, now)
			s.configs[id] = config
		}

		event, err := CreateEvent(config.ID().Value(), TopicConfigRevalidated, ConfigRevalidatedPayload{
			ID: config.ID().Value(), SchemaID: s.id.Value(), Valid: valid,
		}, now)
		if err != nil {
			return err
		}
		s.events.Record(event)
	}
	return nil
}

// Delete refuses while Configs is non-empty, otherwise marks the schema
// deleted and records schema.deleted.
func (s *Schema) Delete(now time.Time) error {
	if len(s.configs) != 0 {
		return NewError(CodeSchemaContainsConfig, "schema contains configs: "+s.id.Value())
	}

	event, err := CreateEvent(s.id.Value(), TopicSchemaDeleted, SchemaDeletedPayload{ID: s.id.Value()}, now)
	if err != nil {
		return err
	}
	s.events.Record(event)

	s.timestamps = s.timestamps.Delete(now)
	return nil
}
