// Package sqlite implements the event-sourced SchemaRepository backend on
// SQLite: Save drains the aggregate's event collector and executes one SQL
// statement per event against the schemas/configs/accesses tables, so the
// database is a projection of the event stream rather than a snapshot.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aboglioli/configd/internal/core/domain"
)

const ddl = `
CREATE TABLE IF NOT EXISTS schemas (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	root_prop  TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	version    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS configs (
	schema_id  TEXT NOT NULL,
	id         TEXT NOT NULL,
	name       TEXT NOT NULL,
	data       TEXT NOT NULL,
	valid      INTEGER NOT NULL,
	password   TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	version    INTEGER NOT NULL,
	PRIMARY KEY (schema_id, id)
);

CREATE TABLE IF NOT EXISTS accesses (
	schema_id TEXT NOT NULL,
	id        TEXT NOT NULL,
	source    TEXT NOT NULL,
	instance  TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	previous  TEXT,
	PRIMARY KEY (schema_id, id, source, instance)
);
`

// SchemaRepository is the SQLite-backed, event-sourced repository.
type SchemaRepository struct {
	db *sql.DB
}

// Open opens (or creates) the database at filename and ensures the three
// projection tables exist. An empty filename opens an in-memory database.
func Open(filename string) (*SchemaRepository, error) {
	if filename == "" {
		filename = ":memory:"
	}

	if filename != ":memory:" {
		if dir := filepath.Dir(filename); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// A single connection serializes every statement, which keeps
	// per-statement atomicity trivial; readers queue behind a projection
	// being applied.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set sqlite pragmas: %w", err)
	}

	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sqlite tables: %w", err)
	}

	return &SchemaRepository{db: db}, nil
}

func (r *SchemaRepository) Close() error { return r.db.Close() }

func (r *SchemaRepository) Find(ctx context.Context, offset, limit int) (domain.Page[domain.Schema], error) {
	limit = domain.NormalizeLimit(limit)
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schemas").Scan(&total); err != nil {
		return domain.Page[domain.Schema]{}, dbError("count schemas", err)
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM schemas ORDER BY id LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return domain.Page[domain.Schema]{}, dbError("list schemas", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return domain.Page[domain.Schema]{}, dbError("scan schema id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return domain.Page[domain.Schema]{}, dbError("iterate schemas", err)
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
		name, rootPropRaw, createdAt, updatedAt string
		version                                 int64
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT name, root_prop, created_at, updated_at, version FROM schemas WHERE id = ?",
		id.Value(),
	).Scan(&name, &rootPropRaw, &createdAt, &updatedAt, &version)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, dbError("find schema", err)
	}

	rootProp, err := parseProp(rootPropRaw)
	if err != nil {
		return nil, err
	}
	timestamps, err := parseTimestamps(createdAt, updatedAt)
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

	schema, err := domain.NewSchema(id, name, rootProp, configs, timestamps, ver)
	if err != nil {
		return nil, err
	}
	return &schema, nil
}

func (r *SchemaRepository) loadConfigs(ctx context.Context, schemaID domain.Id) (map[string]domain.Config, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, data, valid, password, created_at, updated_at, version FROM configs WHERE schema_id = ?",
		schemaID.Value())
	if err != nil {
		return nil, dbError("list configs", err)
	}
	defer rows.Close()

	configs := map[string]domain.Config{}
	for rows.Next() {
		var (
			rawID, name, dataRaw, createdAt, updatedAt string
			valid                                      int
			password                                   sql.NullString
			version                                    int64
		)
		if err := rows.Scan(&rawID, &name, &dataRaw, &valid, &password, &createdAt, &updatedAt, &version); err != nil {
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
		if password.Valid {
			p, err := domain.NewPassword(password.String)
			if err != nil {
				return nil, err
			}
			pw = &p
		}
		timestamps, err := parseTimestamps(createdAt, updatedAt)
		if err != nil {
			return nil, err
		}
		ver, err := domain.NewVersion(version)
		if err != nil {
			return nil, err
		}
		config, err := domain.NewConfig(id, name, data, valid != 0, pw, nil, timestamps, ver)
		if err != nil {
			return nil, err
		}
		configs[id.Value()] = config
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate configs", err)
	}

	// Accesses are queried only once the config rows are drained: the
	// single pooled connection is held by rows until then.
	for key, config := range configs {
		accesses, err := r.loadAccesses(ctx, schemaID, config.ID())
		if err != nil {
			return nil, err
		}
		configs[key], err = domain.NewConfig(config.ID(), config.Name(), config.Data(), config.IsValid(),
			config.Password(), accesses, config.Timestamps(), config.Version())
		if err != nil {
			return nil, err
		}
	}
	return configs, nil
}

func (r *SchemaRepository) loadAccesses(ctx context.Context, schemaID, configID domain.Id) ([]domain.Access, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT source, instance, timestamp, previous FROM accesses WHERE schema_id = ? AND id = ? ORDER BY timestamp",
		schemaID.Value(), configID.Value())
	if err != nil {
		return nil, dbError("list accesses", err)
	}
	defer rows.Close()

	var accesses []domain.Access
	for rows.Next() {
		var (
			source, instance, timestamp string
			previous                    sql.NullString
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
		ts, err := parseTime(timestamp)
		if err != nil {
			return nil, err
		}

		access := domain.Access{Source: sourceID, Instance: instanceID, Timestamp: ts}
		if previous.Valid {
			prev, err := parseTime(previous.String)
			if err != nil {
				return nil, err
			}
			access.Previous = &prev
		}
		accesses = append(accesses, access)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate accesses", err)
	}
	return accesses, nil
}

func (r *SchemaRepository) Exists(ctx context.Context, id domain.Id) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM schemas WHERE id = ?", id.Value()).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, dbError("check schema existence", err)
	}
	return true, nil
}

// Save drains the event collector and projects each event with one SQL
// statement, in order. The database owns the schema version counter in
// this mode: events that change persistent schema state bump it with
// version = version + 1, and every event refreshes updated_at.
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
	at := formatTime(event.Timestamp)

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
		_, err = r.db.ExecContext(ctx,
			"INSERT INTO schemas (id, name, root_prop, created_at, updated_at, version) VALUES (?, ?, ?, ?, ?, 1)",
			p.ID, p.Name, string(rootProp), at, at)
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
		_, err = r.db.ExecContext(ctx,
			"UPDATE schemas SET root_prop = ?, updated_at = ?, version = version + 1 WHERE id = ?",
			string(rootProp), at, p.ID)
		return dbError("update schema root prop", err)

	case domain.TopicSchemaDeleted:
		var p domain.SchemaDeletedPayload
		if err := event.DeserializePayload(&p); err != nil {
			return err
		}
		_, err := r.db.ExecContext(ctx, "DELETE FROM schemas WHERE id = ?", p.ID)
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
		if _, err := r.db.ExecContext(ctx,
			"INSERT INTO configs (schema_id, id, name, data, valid, password, created_at, updated_at, version) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)",
			p.SchemaID, p.ID, p.Name, string(data), boolToInt(p.Valid), p.Password, at, at); err != nil {
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
		if _, err := r.db.ExecContext(ctx,
			"UPDATE configs SET data = ?, valid = ?, updated_at = ?, version = version + 1 WHERE schema_id = ? AND id = ?",
			string(data), boolToInt(p.Valid), at, p.SchemaID, p.ID); err != nil {
			return dbError("update config data", err)
		}
		return r.touchSchema(ctx, p.SchemaID, at, true)

	case domain.TopicConfigRevalidated:
		var p domain.ConfigRevalidatedPayload
		if err := event.DeserializePayload(&p); err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx,
			"UPDATE configs SET valid = ?, updated_at = ?, version = version + 1 WHERE schema_id = ? AND id = ?",
			boolToInt(p.Valid), at, p.SchemaID, p.ID); err != nil {
			return dbError("update config validity", err)
		}
		return r.touchSchema(ctx, p.SchemaID, at, false)

	case domain.TopicConfigPasswordChange:
		var p domain.ConfigPasswordChangedPayload
		if err := event.DeserializePayload(&p); err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx,
			"UPDATE configs SET password = ?, updated_at = ?, version = version + 1 WHERE schema_id = ? AND id = ?",
			p.Password, at, p.SchemaID, p.ID); err != nil {
			return dbError("update config password", err)
		}
		return r.touchSchema(ctx, p.SchemaID, at, false)

	case domain.TopicConfigPasswordDelete:
		var p domain.ConfigPasswordDeletedPayload
		if err := event.DeserializePayload(&p); err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx,
			"UPDATE configs SET password = NULL, updated_at = ?, version = version + 1 WHERE schema_id = ? AND id = ?",
			at, p.SchemaID, p.ID); err != nil {
			return dbError("delete config password", err)
		}
		return r.touchSchema(ctx, p.SchemaID, at, false)

	case domain.TopicConfigDeleted:
		var p domain.ConfigDeletedPayload
		if err := event.DeserializePayload(&p); err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx,
			"DELETE FROM accesses WHERE schema_id = ? AND id = ?", p.SchemaID, p.ID); err != nil {
			return dbError("delete config accesses", err)
		}
		if _, err := r.db.ExecContext(ctx,
			"DELETE FROM configs WHERE schema_id = ? AND id = ?", p.SchemaID, p.ID); err != nil {
			return dbError("delete config", err)
		}
		return r.touchSchema(ctx, p.SchemaID, at, true)

	case domain.TopicConfigAccessed:
		var p domain.ConfigAccessedPayload
		if err := event.DeserializePayload(&p); err != nil {
			return err
		}
		if p.Previous != nil {
			prev := formatTime(*p.Previous)
			if _, err := r.db.ExecContext(ctx,
				"UPDATE accesses SET timestamp = ?, previous = ? WHERE schema_id = ? AND id = ? AND source = ? AND instance = ?",
				formatTime(p.Timestamp), prev, p.SchemaID, p.ID, p.Source, p.Instance); err != nil {
				return dbError("update access", err)
			}
		} else {
			if _, err := r.db.ExecContext(ctx,
				"INSERT OR REPLACE INTO accesses (schema_id, id, source, instance, timestamp, previous) VALUES (?, ?, ?, ?, ?, NULL)",
				p.SchemaID, p.ID, p.Source, p.Instance, formatTime(p.Timestamp)); err != nil {
				return dbError("insert access", err)
			}
		}
		return r.touchSchema(ctx, p.SchemaID, at, false)

	case domain.TopicConfigAccessRemoved:
		var p domain.ConfigAccessRemovedPayload
		if err := event.DeserializePayload(&p); err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx,
			"DELETE FROM accesses WHERE schema_id = ? AND id = ? AND source = ? AND instance = ?",
			p.SchemaID, p.ID, p.Source, p.Instance); err != nil {
			return dbError("delete access", err)
		}
		return r.touchSchema(ctx, p.SchemaID, at, false)

	default:
		return domain.NewError(domain.CodeInvalidEvent, "unknown event topic: "+event.Topic)
	}
}

// touchSchema refreshes the schema row on every projected event; bump also
// advances the version counter for events that change persistent schema
// state.
func (r *SchemaRepository) touchSchema(ctx context.Context, schemaID, at string, bump bool) error {
	stmt := "UPDATE schemas SET updated_at = ? WHERE id = ?"
	if bump {
		stmt = "UPDATE schemas SET updated_at = ?, version = version + 1 WHERE id = ?"
	}
	_, err := r.db.ExecContext(ctx, stmt, at, schemaID)
	return dbError("touch schema", err)
}

func (r *SchemaRepository) Delete(ctx context.Context, id domain.Id) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM accesses WHERE schema_id = ?", id.Value()); err != nil {
		return dbError("delete schema accesses", err)
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM configs WHERE schema_id = ?", id.Value()); err != nil {
		return dbError("delete schema configs", err)
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM schemas WHERE id = ?", id.Value()); err != nil {
		return dbError("delete schema", err)
	}
	return nil
}

func dbError(op string, err error) error {
	if err == nil {
		return nil
	}
	return domain.WrapError(domain.CodeDatabase, "sqlite: failed to "+op, err)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, domain.WrapError(domain.CodeSerde, "invalid stored timestamp", err)
	}
	return t, nil
}

func parseTimestamps(createdAt, updatedAt string) (domain.Timestamps, error) {
	created, err := parseTime(createdAt)
	if err != nil {
		return domain.Timestamps{}, err
	}
	updated, err := parseTime(updatedAt)
	if err != nil {
		return domain.Timestamps{}, err
	}
	return domain.Timestamps{CreatedAt: created, UpdatedAt: updated}, nil
}

// decodeJSON parses raw JSON keeping numbers as json.Number, so integral
// values survive the round trip as Ints instead of degrading to Floats.
func decodeJSON(raw string) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var out interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, domain.WrapError(domain.CodeSerde, "invalid stored JSON", err)
	}
	return out, nil
}

func parseProp(raw string) (domain.Prop, error) {
	decoded, err := decodeJSON(raw)
	if err != nil {
		return domain.Prop{}, err
	}
	return domain.PropFromJSON(decoded)
}

func parseValue(raw string) (domain.Value, error) {
	decoded, err := decodeJSON(raw)
	if err != nil {
		return domain.Value{}, err
	}
	return domain.ValueFromJSON(decoded)
}
