package handlers

import (
	"net/http"
	"time"

	"github.com/aboglioli/configd/internal/api/middleware"
	"github.com/aboglioli/configd/internal/core/domain"
	"github.com/aboglioli/configd/internal/core/services"
)

// CreateConfig handles POST /schemas/{schema_id}/configs.
func (h *Handlers) CreateConfig(w http.ResponseWriter, r *http.Request) {
	schemaID, ok := h.pathID(w, r, "schema_id")
	if !ok {
		return
	}

	var req createConfigRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if err := middleware.ValidateStruct(req); err != nil {
		h.writeError(w, r, domain.NewError(domain.CodeEmptyName, "config name must not be empty"))
		return
	}

	var password *domain.Password
	if req.Password != nil && *req.Password != "" {
		pw, err := domain.NewPassword(*req.Password)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		password = &pw
	}

	config, err := h.configs.CreateConfig(r.Context(), schemaID, req.ID, req.Name, req.Data, password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, createConfigResponse{
		SchemaID: schemaID.Value(),
		ConfigID: config.ID().Value(),
	})
}

// GetConfig handles GET /schemas/{schema_id}/configs/{config_id}, honoring
// the X-Configd-Source/Instance/Password headers and ?populate=true.
func (h *Handlers) GetConfig(w http.ResponseWriter, r *http.Request) {
	schemaID, ok := h.pathID(w, r, "schema_id")
	if !ok {
		return
	}
	configID, ok := h.pathID(w, r, "config_id")
	if !ok {
		return
	}

	password, err := optionalPassword(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	access, err := services.ResolveAccess(r.Header.Get(middleware.SourceHeader), r.Header.Get(middleware.InstanceHeader), time.Now())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	populate := queryBool(r, "populate")

	result, err := h.configs.GetConfig(r.Context(), schemaID, configID, password, access, populate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, renderConfig(schemaID.Value(), result.Config, result.Value))
}

// UpdateConfig handles PUT /schemas/{schema_id}/configs/{config_id}.
func (h *Handlers) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	schemaID, ok := h.pathID(w, r, "schema_id")
	if !ok {
		return
	}
	configID, ok := h.pathID(w, r, "config_id")
	if !ok {
		return
	}

	password, err := optionalPassword(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req updateConfigRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	config, err := h.configs.UpdateConfig(r.Context(), schemaID, configID, req.Data, password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, renderConfig(schemaID.Value(), config, config.Data()))
}

// DeleteConfig handles DELETE /schemas/{schema_id}/configs/{config_id}.
func (h *Handlers) DeleteConfig(w http.ResponseWriter, r *http.Request) {
	schemaID, ok := h.pathID(w, r, "schema_id")
	if !ok {
		return
	}
	configID, ok := h.pathID(w, r, "config_id")
	if !ok {
		return
	}

	password, err := optionalPassword(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.configs.DeleteConfig(r.Context(), schemaID, configID, password); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SetConfigPassword handles POST /schemas/{schema_id}/configs/{config_id}/password.
// The current password, when the config has one, is read from
// X-Configd-Password; the new one comes from the body.
func (h *Handlers) SetConfigPassword(w http.ResponseWriter, r *http.Request) {
	schemaID, ok := h.pathID(w, r, "schema_id")
	if !ok {
		return
	}
	configID, ok := h.pathID(w, r, "config_id")
	if !ok {
		return
	}

	oldPassword, err := optionalPassword(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req setPasswordRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	newPassword, err := domain.NewPassword(req.NewPassword)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.configs.ChangeConfigPassword(r.Context(), schemaID, configID, oldPassword, newPassword); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DeleteConfigPassword handles DELETE /schemas/{schema_id}/configs/{config_id}/password.
func (h *Handlers) DeleteConfigPassword(w http.ResponseWriter, r *http.Request) {
	schemaID, ok := h.pathID(w, r, "schema_id")
	if !ok {
		return
	}
	configID, ok := h.pathID(w, r, "config_id")
	if !ok {
		return
	}

	password, err := optionalPassword(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.configs.DeleteConfigPassword(r.Context(), schemaID, configID, password); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
