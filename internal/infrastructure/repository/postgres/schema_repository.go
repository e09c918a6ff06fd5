// Package postgres implements the event-sourced SchemaRepository backend on
// PostgreSQL via pgx: Save drains the aggregate's event collector and
// executes one SQL statement per event against the schemas/configs/accesses
// tables. Per-statement atomicity comes from the connection pool; no
// multi-statement transaction is required by the contract.
package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aboglioli/configd/internal/core/domain"
)

// SchemaRepository is the PostgreSQL-backed, event-sourced repository.
type SchemaRepository struct {
	pool *pgxpool.Pool
}

// Open connects a pgx pool to the database at url, verifies the connection
// and applies any pending migrations.
func Open(ctx context.Context, url string) (*SchemaRepository, error) {
	pool, err := NewPool(ctx, url)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(url); err != nil {
		pool.Close()
		return nil, err
	}

	return &SchemaRepository{pool: pool}, nil
}

// NewRepository wraps an existing pool, for callers (and tests) that manage
// the pool and migrations themselves.
func NewRepository(pool *pgxpool.Pool) *SchemaRepository {
	return &SchemaRepository{pool: pool}
}

func (r *SchemaRepository) Close() { r.pool.Close() }

func (r *SchemaRepository) Find(ctx context.Context, offset, limit int) (domain.Page[domain.Schema], error) {
	limit = domain.NormalizeLimit(limit)
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM schemas").Scan(&total); err != nil {
		return domain.Page[domain.Schema]{}, dbError("count schemas", err)
	}

	rows, err := r.pool.Query(ctx,
		"SELECT id FROM schemas ORDER BY id LIMIT $1 OFFSET $2", limit, offset)
	if err != nil {
		return domain.Page[domain.Schema]{}, dbError("list schemas", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return domain.Page[domain.Schema]{}, dbError("scan schema ids", err)
	}

	var schemas []domain.Schema
	for _, raw := range ids {
		id, err := domain.NewId(raw)
		if err != nil {
			return domain.Page[domain.Schema]{}, err
		}
		schema, err := r.FindByID(ctx, id)
		if err != nil {
			return domain.Page[domain.Schema]{}, err
		}
		if schema != nil {
			schemas = append(schemas, *schema)
		}
	}

	return domain.NewPage(offset, limit, total, schemas)
}

func (r *SchemaRepository) FindByID(ctx context.Context, id domain.Id) (*domain.Schema, error) {
	var (
		name               string
		rootPropRaw        []byte
		createdAt, updated time.Time
		version            int64
	)
	err := r.pool.QueryRow(ctx,
		"SELECT name, root_prop, created_at, updated_at, version FROM schemas WHERE id = $1",
		id.Value(),
	).Scan(&name, &rootPropRaw, &createdAt, &updated, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, dbError("find schema", err)
	}

	rootProp, err := parseProp(rootPropRaw)
	if err != nil {
		return nil, err
	}
	ver, err := domain.NewVersion(version)
	if err != nil {
		return nil, err
	}

	configs, err := r.loadConfigs(ctx, id)
	if err != nil {
		return nil, err
	}

	schema, err := domain.NewSchema(id, name, rootProp, configs,
		domain.Timestamps{CreatedAt: createdAt, UpdatedAt: updated}, ver)
	if err != nil {
		return nil, err
	}
	return &schema, nil
}

func (r *SchemaRepository) loadConfigs(ctx context.Context, schemaID domain.Id) (map[string]domain.Config, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT id, name, data, valid, password, created_at, updated_at, version FROM configs WHERE schema_id = $1",
		schemaID.Value())
	if err != nil {
		return nil, dbError("list configs", err)
	}
	defer rows.Close()

	configs := map[string]domain.Config{}
	for rows.Next() {
		var (
			rawID, name        string
			dataRaw            []byte
			valid              bool
			password           *string
			createdAt, updated time.Time
			version            int64
		)
		if err := rows.Scan(&rawID, &name, &dataRaw, &valid, &password, &createdAt, &updated, &version); err != nil {
			return nil, dbError("scan config", err)
		}

		id, err := domain.NewId(rawID)
		if err != nil {
			return nil, err
		}
		data, err := parseValue(dataRaw)
		if err != nil {
			return nil, err
		}
		var pw *domain.Password
		if password != nil {
			p, err := domain.NewPassword(*password)
			if err != nil {
				return nil, err
			}
			pw = &p
		}
		ver, err := domain.NewVersion(version)
		if err != nil {
			return nil, err
		}
		accesses, err := r.loadAccesses(ctx, schemaID, id)
		if err != nil {
			return nil, err
		}

		config, err := domain.NewConfig(id, name, data, valid, pw, accesses,
			domain.Timestamps{CreatedAt: createdAt, UpdatedAt: updated}, ver)
		if err != nil {
			return nil, err
		}
		configs[id.Value()] = config
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate configs", err)
	}
	return configs, nil
}

func (r *SchemaRepository) loadAccesses(ctx context.Context, schemaID, configID domain.Id) ([]domain.Access, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT source, instance, timestamp, previous FROM accesses WHERE schema_id = $1 AND id = $2 ORDER BY timestamp",
		schemaID.Value(), configID.Value())
	if err != nil {
		return nil, dbError("list accesses", err)
	}
	defer rows.Close()

	var accesses []domain.Access
	for rows.Next() {
		var (
			source, instance string
			timestamp        time.Time
			previous         *time.Time
		)
		if err := rows.Scan(&source, &instance, &timestamp, &previous); err != nil {
			return nil, dbError("scan access", err)
		}

		sourceID, err := domain.NewId(source)
		if err != nil {
			return nil, err
		}
		instanceID, err := domain.NewId(instance)
		if err != nil {
			return nil, err
		}
		accesses = append(accesses, domain.Access{
			Source: sourceID, Instance: instanceID, Timestamp: timestamp, Previous: previous,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate accesses", err)
	}
	return accesses, nil
}

func (r *SchemaRepository) Exists(ctx context.Context, id domain.Id) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM schemas WHERE id = $1)", id.Value()).Scan(&exists)
	if err != nil {
		return false, dbError("check schema existence", err)
	}
	return exists, nil
}

// Save drains the event collector and projects each event with one SQL
// statement, in order. The database owns the schema version counter in
// this mode.
func (r *SchemaRepository) Save(ctx context.Context, schema *domain.Schema) ([]domain.Event, error) {
	events := schema.Events()
	for _, event := range events {
		if err := r.apply(ctx, event); err != nil {
			return nil, err
		}
	}
	return events, nil
}

func (r *SchemaRepository) apply(ctx context.Context, event domain.Event) error {
	at := event.Timestamp

	switch event.Topic {
	case domain.TopicSchemaCreated:
		var p domain.SchemaCreatedPayload
		if err := event.DeserializePayload(&p); err != nil {
			return err
		}
		rootProp, err := json.Marshal(p.RootProp)
		if err != nil {
			return domain.WrapError(domain.CodeSerde, "failed to serialize root prop", err)
		}
		_, err = r.pool.Exec(ctx,
			"INSERT INTO schemas (id, name, root_prop, created_at, updated_at, version) VALUES ($1, $2, $3, $4, $4, 1)",
			p.ID, p.Name, rootProp, at)
		return dbError("insert schema", err)

	case domain.TopicSchemaRootPropChange:
		var p domain.SchemaRootPropChangedPayload
		if err := event.DeserializePayload(&p); err != nil {
			return err
		}
		rootProp, err := json.Marshal(p.RootProp)
		if err != nil {
			return domain.WrapError(domain.CodeSerde, "failed to serialize root prop", err)
		}
		_, err = r.pool.Exec(ctx,
			"UPDATE schemas SET root_prop = $1, updated_at = $2, version = version + 1 WHERE id = $3",
			rootProp, at, p.ID)
		return dbError("update schema root prop", err)

	case domain.TopicSchemaDeleted:
		var p domain.SchemaDeletedPayload
		if err := event.DeserializePayload(&p); err != nil {
			return err
		}
		_, err := r.pool.Exec(ctx, "DELETE FROM schemas WHERE id = $1", p.ID)
		return dbError("delete schema", err)

	case domain.TopicConfigCreated:
		var p domain.ConfigCreatedPayload
		if err := event.DeserializePayload(&p); err != nil {
			return err
		}
		data, err := json.Marshal(p.Data)
		if err != nil {
			return domain.WrapError(domain.CodeSerde, "failed to serialize config data", err)
		}
		if _, err := r.pool.Exec(ctx,
			"INSERT INTO configs (schema_id, id, name, data, valid, password, created_at, updated_at, version) VALUES ($1, $2, $3, $4, $5, $6, $7, $7, 1)",
			p.SchemaID, p.ID, p.Name, data, p.Valid, p.Password, at); err != nil {
			return dbError("insert config", err)
		}
		return r.touchSchema(ctx, p.SchemaID, at, true)

	case domain.TopicConfigDataChanged:
		var p domain.ConfigDataChangedPayload
		if err := event.DeserializePayload(&p); err != nil {
			return err
		}
		data, err := json.Marshal(p.Data)
		if err != nil {
			return domain.WrapError(domain.CodeSerde, "failed to serialize config data", err)
		}
		if _, err := r.pool.Exec(ctx,
			"UPDATE configs SET data = $1, valid = $2, updated_at = $3, version = version + 1 WHERE schema_id = $4 AND id = $5",
			data, p.Valid, at, p.SchemaID, p.ID); err != nil {
			return dbError("update config data", err)
		}
		return r.touchSchema(ctx, p.SchemaID, at, true)

	case domain.TopicConfigRevalidated:
		var p domain.ConfigRevalidatedPayload
		if err := event.DeserializePayload(&p); err != nil {
			return err
		}
		if _, err := r.pool.Exec(ctx,
			"UPDATE configs SET valid = $1, updated_at = $2, version = version + 1 WHERE schema_id = $3 AND id = $4",
			p.Valid, at, p.SchemaID, p.ID); err != nil {
			return dbError("update config validity", err)
		}
		return r.touchSchema(ctx, p.SchemaID, at, false)

	case domain.TopicConfigPasswordChange:
		var p domain.ConfigPasswordChangedPayload
		if err := event.DeserializePayload(&p); err != nil {
			return err
		}
		if _, err := r.pool.Exec(ctx,
			"UPDATE configs SET password = $1, updated_at = $2, version = version + 1 WHERE schema_id = $3 AND id = $4",
			p.Password, at, p.SchemaID, p.ID); err != nil {
			return dbError("update config password", err)
		}
		return r.touchSchema(ctx, p.SchemaID, at, false)

	case domain.TopicConfigPasswordDelete:
		var p domain.ConfigPasswordDeletedPayload
		if err := event.DeserializePayload(&p); err != nil {
			return err
		}
		if _, err := r.pool.Exec(ctx,
			"UPDATE configs SET password = NULL, updated_at = $1, version = version + 1 WHERE schema_id = $2 AND id = $3",
			at, p.SchemaID, p.ID); err != nil {
			return dbError("delete config password", err)
		}
		return r.touchSchema(ctx, p.SchemaID, at, false)

	case domain.TopicConfigDeleted:
		var p domain.ConfigDeletedPayload
		if err := event.DeserializePayload(&p); err != nil {
			return err
		}
		if _, err := r.pool.Exec(ctx,
			"DELETE FROM accesses WHERE schema_id = $1 AND id = $2", p.SchemaID, p.ID); err != nil {
			return dbError("delete config accesses", err)
		}
		if _, err := r.pool.Exec(ctx,
			"DELETE FROM configs WHERE schema_id = $1 AND id = $2", p.SchemaID, p.ID); err != nil {
			return dbError("delete config", err)
		}
		return r.touchSchema(ctx, p.SchemaID, at, true)

	case domain.TopicConfigAccessed:
		var p domain.ConfigAccessedPayload
		if err := event.DeserializePayload(&p); err != nil {
			return err
		}
		if p.Previous != nil {
			if _, err := r.pool.Exec(ctx,
				"UPDATE accesses SET timestamp = $1, previous = $2 WHERE schema_id = $3 AND id = $4 AND source = $5 AND instance = $6",
				p.Timestamp, p.Previous, p.SchemaID, p.ID, p.Source, p.Instance); err != nil {
				return dbError("update access", err)
			}
		} else {
			if _, err := r.pool.Exec(ctx,
				`INSERT INTO accesses (schema_id, id, source, instance, timestamp, previous) VALUES ($1, $2, $3, $4, $5, NULL)
				 ON CONFLICT (schema_id, id, source, instance) DO UPDATE SET timestamp = EXCLUDED.timestamp, previous = NULL`,
				p.SchemaID, p.ID, p.Source, p.Instance, p.Timestamp); err != nil {
				return dbError("insert access", err)
			}
		}
		return r.touchSchema(ctx, p.SchemaID, at, false)

	case domain.TopicConfigAccessRemoved:
		var p domain.ConfigAccessRemovedPayload
		if err := event.DeserializePayload(&p); err != nil {
			return err
		}
		if _, err := r.pool.Exec(ctx,
			"DELETE FROM accesses WHERE schema_id = $1 AND id = $2 AND source = $3 AND instance = $4",
			p.SchemaID, p.ID, p.Source, p.Instance); err != nil {
			return dbError("delete access", err)
		}
		return r.touchSchema(ctx, p.SchemaID, at, false)

	default:
		return domain.NewError(domain.CodeInvalidEvent, "unknown event topic: "+event.Topic)
	}
}

func (r *SchemaRepository) touchSchema(ctx context.Context, schemaID string, at time.Time, bump bool) error {
	stmt := "UPDATE schemas SET updated_at = $1 WHERE id = $2"
	if bump {
		stmt = "UPDATE schemas SET updated_at = $1, version = version + 1 WHERE id = $2"
	}
	_, err := r.pool.Exec(ctx, stmt, at, schemaID)
	return dbError("touch schema", err)
}

func (r *SchemaRepository) Delete(ctx context.Context, id domain.Id) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM accesses WHERE schema_id = $1", id.Value()); err != nil {
		return dbError("delete schema accesses", err)
	}
	if _, err := r.pool.Exec(ctx, "DELETE FROM configs WHERE schema_id = $1", id.Value()); err != nil {
		return dbError("delete schema configs", err)
	}
	if _, err := r.pool.Exec(ctx, "DELETE FROM schemas WHERE id = $1", id.Value()); err != nil {
		return dbError("delete schema", err)
	}
	return nil
}

func dbError(op string, err error) error {
	if err == nil {
		return nil
	}
	return domain.WrapError(domain.CodeDatabase, "postgres: failed to "+op, err)
}

// decodeJSON parses raw JSON keeping numbers as json.Number, so integral
// values survive the round trip as Ints instead of degrading to Floats.
func decodeJSON(raw []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, domain.WrapError(domain.CodeSerde, "invalid stored JSON", err)
	}
	return out, nil
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
