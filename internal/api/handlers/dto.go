// Package handlers implements configd's HTTP surface: thin
// adapters that decode a request, call an application service, and encode
// the result — all domain logic lives in internal/core/services.
package handlers

import (
	"time"

	"github.com/aboglioli/configd/internal/core/domain"
)

// createSchemaRequest is the POST /schemas body.
type createSchemaRequest struct {
	ID     string      `json:"id"`
	Name   string      `json:"name" validate:"required,min=1,max=128"`
	Schema domain.Prop `json:"schema"`
}

// createSchemaResponse is the 201 body: {id}.
type createSchemaResponse struct {
	ID string `json:"id"`
}

// timestampsDTO renders domain.Timestamps for API responses.
type timestampsDTO struct {
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

func renderTimestamps(t domain.Timestamps) timestampsDTO {
	return timestampsDTO{CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt, DeletedAt: t.DeletedAt}
}

// schemaResponse is the GET /schemas/{id} body.
type schemaResponse struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	RootProp   domain.Prop   `json:"root_prop"`
	NumConfigs int           `json:"num_configs"`
	Timestamps timestampsDTO `json:"timestamps"`
	Version    int64         `json:"version"`
}

func renderSchema(s domain.Schema) schemaResponse {
	return schemaResponse{
		ID:         s.ID().Value(),
		Name:       s.Name(),
		RootProp:   s.RootProp(),
		NumConfigs: len(s.Configs()),
		Timestamps: renderTimestamps(s.Timestamps()),
		Version:    s.Version().Value(),
	}
}

// schemaSummary is the per-item shape in the GET /schemas list.
type schemaSummary struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	NumConfigs int           `json:"num_configs"`
	Timestamps timestampsDTO `json:"timestamps"`
	Version    int64         `json:"version"`
}

func renderSchemaSummary(s domain.Schema) schemaSummary {
	return schemaSummary{
		ID:         s.ID().Value(),
		Name:       s.Name(),
		NumConfigs: len(s.Configs()),
		Timestamps: renderTimestamps(s.Timestamps()),
		Version:    s.Version().Value(),
	}
}

// pageResponse is the GET /schemas list envelope.
type pageResponse struct {
	Offset int             `json:"offset"`
	Limit  int             `json:"limit"`
	Total  int             `json:"total"`
	Data   []schemaSummary `json:"data"`
}

// updateRootPropRequest is the PUT /schemas/{id} body.
type updateRootPropRequest struct {
	Schema domain.Prop `json:"schema"`
}

// createConfigRequest is the POST /schemas/{id}/configs body.
type createConfigRequest struct {
	ID       string       `json:"id"`
	Name     string       `json:"name" validate:"required,min=1,max=128"`
	Data     domain.Value `json:"data"`
	Password *string      `json:"password,omitempty"`
}

// createConfigResponse is the 201 body.
type createConfigResponse struct {
	SchemaID string `json:"schema_id"`
	ConfigID string `json:"config_id"`
}

// configResponse is the GET/PUT /schemas/{sid}/configs/{cid} body.
type configResponse struct {
	ID          string        `json:"id"`
	SchemaID    string        `json:"schema_id"`
	Name        string        `json:"name"`
	Data        domain.Value  `json:"data"`
	Valid       bool          `json:"valid"`
	HasPassword bool          `json:"has_password"`
	Accesses    int           `json:"num_accesses"`
	Timestamps  timestampsDTO `json:"timestamps"`
	Version     int64         `json:"version"`
}

func renderConfig(schemaID string, c domain.Config, data domain.Value) configResponse {
	return configResponse{
		ID:          c.ID().Value(),
		SchemaID:    schemaID,
		Name:        c.Name(),
		Data:        data,
		Valid:       c.IsValid(),
		HasPassword: c.Password() != nil,
		Accesses:    len(c.Accesses()),
		Timestamps:  renderTimestamps(c.Timestamps()),
		Version:     c.Version().Value(),
	}
}

// updateConfigRequest is the PUT /schemas/{sid}/configs/{cid} body.
type updateConfigRequest struct {
	Data domain.Value `json:"data"`
}

// setPasswordRequest is the POST .../password body.
type setPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required"`
}

// validateRequest is the POST /schemas/{id}/validate body.
type validateRequest struct {
	Data domain.Value `json:"data"`
}

// validateResponse carries the dry-run Diff, keyed by dotted locator:
// {"diffs": {"$.env": ["not_allowed_value"]}}.
type validateResponse struct {
	Diffs map[string][]domain.Reason `json:"diffs"`
}
