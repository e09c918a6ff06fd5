package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aboglioli/configd/internal/api/middleware"
	apierrors "github.com/aboglioli/configd/internal/api/errors"
	"github.com/aboglioli/configd/internal/core/domain"
	"github.com/aboglioli/configd/internal/core/services"
)

// Handlers implements configd's HTTP surface on top of the application
// services: decode, delegate, encode.
type Handlers struct {
	schemas *services.SchemaService
	configs *services.ConfigService
	logger  *slog.Logger
}

func New(schemas *services.SchemaService, configs *services.ConfigService, logger *slog.Logger) *Handlers {
	return &Handlers{schemas: schemas, configs: configs, logger: logger}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			h.logger.Error("failed to encode response body", "error", err)
		}
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	apierrors.WriteDomainError(w, err, requestID)
}

func (h *Handlers) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, r, domain.WrapError(domain.CodeSerde, "malformed request body", err))
		return false
	}
	return true
}

func (h *Handlers) pathID(w http.ResponseWriter, r *http.Request, name string) (domain.Id, bool) {
	raw, ok := pathParam(r, name)
	if !ok {
		h.writeError(w, r, domain.NewError(domain.CodeEmptyID, name+" must not be empty"))
		return domain.Id{}, false
	}
	id, err := domain.NewId(raw)
	if err != nil {
		h.writeError(w, r, err)
		return domain.Id{}, false
	}
	return id, true
}

// optionalPassword reads the X-Configd-Password header, returning nil when
// absent so CanAccess treats the request as unauthenticated rather than as
// a present-but-empty password.
func optionalPassword(r *http.Request) (*domain.Password, error) {
	raw := r.Header.Get(middleware.PasswordHeader)
	if raw == "" {
		return nil, nil
	}
	pw, err := domain.NewPassword(raw)
	if err != nil {
		return nil, err
	}
	return &pw, nil
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func queryBool(r *http.Request, name string) bool {
	raw := r.URL.Query().Get(name)
	v, _ := strconv.ParseBool(raw)
	return v
}
