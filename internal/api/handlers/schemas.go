package handlers

import (
	"net/http"

	"github.com/aboglioli/configd/internal/api/middleware"
	"github.com/aboglioli/configd/internal/core/domain"
)

// CreateSchema handles POST /schemas.
func (h *Handlers) CreateSchema(w http.ResponseWriter, r *http.Request) {
	var req createSchemaRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if err := middleware.ValidateStruct(req); err != nil {
		h.writeError(w, r, domain.NewError(domain.CodeEmptyName, "schema name must not be empty"))
		return
	}

	schema, err := h.schemas.CreateSchema(r.Context(), req.ID, req.Name, req.Schema)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, createSchemaResponse{ID: schema.ID().Value()})
}

// ListSchemas handles GET /schemas?offset=&limit=.
func (h *Handlers) ListSchemas(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := domain.NormalizeLimit(queryInt(r, "limit", domain.DefaultLimit))

	page, err := h.schemas.ListSchemas(r.Context(), offset, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	data := make([]schemaSummary, 0, len(page.Data))
	for _, s := range page.Data {
		data = append(data, renderSchemaSummary(s))
	}

	h.writeJSON(w, http.StatusOK, pageResponse{
		Offset: page.Offset,
		Limit:  page.Limit,
		Total:  page.Total,
		Data:   data,
	})
}

// GetSchema handles GET /schemas/{schema_id}.
func (h *Handlers) GetSchema(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "schema_id")
	if !ok {
		return
	}

	schema, err := h.schemas.GetSchema(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, renderSchema(schema))
}

// UpdateSchema handles PUT /schemas/{schema_id}, replacing its root prop.
func (h *Handlers) UpdateSchema(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "schema_id")
	if !ok {
		return
	}

	var req updateRootPropRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	schema, err := h.schemas.ChangeRootProp(r.Context(), id, req.Schema)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, renderSchema(schema))
}

// DeleteSchema handles DELETE /schemas/{schema_id}.
func (h *Handlers) DeleteSchema(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "schema_id")
	if !ok {
		return
	}

	if err := h.schemas.DeleteSchema(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ValidateConfig handles POST /schemas/{schema_id}/validate, a dry run of
// root_prop.Validate against an arbitrary payload.
func (h *Handlers) ValidateConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "schema_id")
	if !ok {
		return
	}

	var req validateRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	diff, err := h.configs.ValidateConfig(r.Context(), id, req.Data)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, validateResponse{Diffs: diff.Diffs()})
}
