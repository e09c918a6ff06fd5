// Package cache is a read-through cache in front of a SchemaRepository's
// FindByID. Aggregates are stored as encoded snapshots rather than live
// values, so a cached entry can never alias state a caller is mutating.
// Two stores back it: an in-process LRU and Redis.
package cache

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/aboglioli/configd/internal/core/domain"
)

type accessSnapshot struct {
	Source    string     `json:"source"`
	Instance  string     `json:"instance"`
	Timestamp time.Time  `json:"timestamp"`
	Previous  *time.Time `json:"previous,omitempty"`
}

type configSnapshot struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Data      json.RawMessage  `json:"data"`
	Valid     bool             `json:"valid"`
	Password  *string          `json:"password,omitempty"`
	Accesses  []accessSnapshot `json:"accesses,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Version   int64            `json:"version"`
}

type schemaSnapshot struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	RootProp  json.RawMessage  `json:"root_prop"`
	Configs   []configSnapshot `json:"configs,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Version   int64            `json:"version"`
}

// encodeSchema serializes the whole aggregate (schema + configs +
// accesses) into a self-contained snapshot.
func encodeSchema(schema domain.Schema) ([]byte, error) {
	rootProp, err := json.Marshal(schema.RootProp())
	if err != nil {
		return nil, domain.WrapError(domain.CodeSerde, "failed to encode root prop", err)
	}

	snap := schemaSnapshot{
		ID:        schema.ID().Value(),
		Name:      schema.Name(),
		RootProp:  rootProp,
		CreatedAt: schema.Timestamps().CreatedAt,
		UpdatedAt: schema.Timestamps().UpdatedAt,
		Version:   schema.Version().Value(),
	}

	for _, config := range schema.Configs() {
		data, err := json.Marshal(config.Data())
		if err != nil {
			return nil, domain.WrapError(domain.CodeSerde, "failed to encode config data", err)
		}

		cs := configSnapshot{
			ID:        config.ID().Value(),
			Name:      config.Name(),
			Data:      data,
			Valid:     config.IsValid(),
			CreatedAt: config.Timestamps().CreatedAt,
			UpdatedAt: config.Timestamps().UpdatedAt,
			Version:   config.Version().Value(),
		}
		if config.Password() != nil {
			v := config.Password().Value()
			cs.Password = &v
		}
		for _, access := range config.Accesses() {
			cs.Accesses = append(cs.Accesses, accessSnapshot{
				Source:    access.Source.Value(),
				Instance:  access.Instance.Value(),
				Timestamp: access.Timestamp,
				Previous:  access.Previous,
			})
		}
		snap.Configs = append(snap.Configs, cs)
	}

	encoded, err := json.Marshal(snap)
	if err != nil {
		return nil, domain.WrapError(domain.CodeSerde, "failed to encode schema snapshot", err)
	}
	return encoded, nil
}

// decodeSchema reconstitutes an aggregate from its snapshot.
func decodeSchema(encoded []byte) (domain.Schema, error) {
	var snap schemaSnapshot
	if err := json.Unmarshal(encoded, &snap); err != nil {
		return domain.Schema{}, domain.WrapError(domain.CodeSerde, "failed to decode schema snapshot", err)
	}

	id, err := domain.NewId(snap.ID)
	if err != nil {
		return domain.Schema{}, err
	}
	rootProp, err := parseProp(snap.RootProp)
	if err != nil {
		return domain.Schema{}, err
	}
	version, err := domain.NewVersion(snap.Version)
	if err != nil {
		return domain.Schema{}, err
	}

	configs := map[string]domain.Config{}
	for _, cs := range snap.Configs {
		configID, err := domain.NewId(cs.ID)
		if err != nil {
			return domain.Schema{}, err
		}
		data, err := parseValue(cs.Data)
		if err != nil {
			return domain.Schema{}, err
		}
		var password *domain.Password
		if cs.Password != nil {
			p, err := domain.NewPassword(*cs.Password)
			if err != nil {
				return domain.Schema{}, err
			}
			password = &p
		}
		var accesses []domain.Access
		for _, as := range cs.Accesses {
			source, err := domain.NewId(as.Source)
			if err != nil {
				return domain.Schema{}, err
			}
			instance, err := domain.NewId(as.Instance)
			if err != nil {
				return domain.Schema{}, err
			}
			accesses = append(accesses, domain.Access{
				Source: source, Instance: instance, Timestamp: as.Timestamp, Previous: as.Previous,
			})
		}
		configVersion, err := domain.NewVersion(cs.Version)
		if err != nil {
			return domain.Schema{}, err
		}
		config, err := domain.NewConfig(configID, cs.Name, data, cs.Valid, password, accesses,
			domain.Timestamps{CreatedAt: cs.CreatedAt, UpdatedAt: cs.UpdatedAt}, configVersion)
		if err != nil {
			return domain.Schema{}, err
		}
		configs[configID.Value()] = config
	}

	return domain.NewSchema(id, snap.Name, rootProp, configs,
		domain.Timestamps{CreatedAt: snap.CreatedAt, UpdatedAt: snap.UpdatedAt}, version)
}

func parseProp(raw []byte) (domain.Prop, error) {
	decoded, err := decodeJSON(raw)
	if err != nil {
		return domain.Prop{}, err
	}
	return domain.PropFromJSON(decoded)
}

func parseValue(raw []byte) (domain.Value, error) {
	decoded, err := decodeJSON(raw)
	if err != nil {
		return domain.Value{}, err
	}
	return domain.ValueFromJSON(decoded)
}

// decodeJSON keeps numbers as json.Number so integral values reconstitute
// as Ints instead of degrading to Floats.
func decodeJSON(raw []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, domain.WrapError(domain.CodeSerde, "invalid snapshot JSON", err)
	}
	return out, nil
}
