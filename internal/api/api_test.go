package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aboglioli/configd/internal/api/handlers"
	"github.com/aboglioli/configd/internal/api/middleware"
	"github.com/aboglioli/configd/internal/core/domain"
	"github.com/aboglioli/configd/internal/core/services"
	"github.com/aboglioli/configd/internal/infrastructure/eventbus"
	infrahandlers "github.com/aboglioli/configd/internal/infrastructure/handlers"
	"github.com/aboglioli/configd/internal/infrastructure/repository/memory"
)

type testServer struct {
	router http.Handler
	repo   *memory.SchemaRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repo := memory.New()
	bus := eventbus.New()

	schemaService := services.NewSchemaService(repo, bus, logger)
	configService := services.NewConfigService(repo, bus, logger)

	maintenance := infrahandlers.New(repo, bus, logger)
	maintenance.Register()

	h := handlers.New(schemaService, configService, logger)

	config := DefaultRouterConfig(logger)
	config.EnableRateLimit = false

	return &testServer{router: NewRouter(h, config), repo: repo}
}

func (s *testServer) do(t *testing.T, method, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest))
}

// waitForAccesses blocks until the config's persisted access count reaches
// want; GetConfig persists its access bump in the background.
func (s *testServer) waitForAccesses(t *testing.T, schemaID, configID string, want int) {
	t.Helper()
	id, err := domain.NewId(schemaID)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		schema, err := s.repo.FindByID(context.Background(), id)
		if err != nil || schema == nil {
			return false
		}
		config, ok := schema.Configs()[configID]
		return ok && len(config.Accesses()) >= want
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateSchemaAndGetConfig(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/schemas",
		`{"name":"API","schema":{"env":{"$schema":{"kind":"string","required":true,"allowed_values":["dev","stg","prod"]}}}}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID string `json:"id"`
	}
	decode(t, rec, &created)
	assert.Equal(t, "api", created.ID)

	// Duplicate name collides on the slugged id.
	rec = s.do(t, http.MethodPost, "/schemas",
		`{"name":"API","schema":{"env":{"$schema":{"kind":"string","required":true}}}}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/schemas/api/configs", `{"name":"C1","data":{"env":"dev"}}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var createdConfig struct {
		SchemaID string `json:"schema_id"`
		ConfigID string `json:"config_id"`
	}
	decode(t, rec, &createdConfig)
	assert.Equal(t, "api", createdConfig.SchemaID)
	assert.Equal(t, "c1", createdConfig.ConfigID)

	rec = s.do(t, http.MethodGet, "/schemas/api/configs/c1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var config struct {
		Data    map[string]interface{} `json:"data"`
		Valid   bool                   `json:"valid"`
		Version int64                  `json:"version"`
	}
	decode(t, rec, &config)
	assert.Equal(t, "dev", config.Data["env"])
	assert.True(t, config.Valid)
	assert.Equal(t, int64(1), config.Version)

	rec = s.do(t, http.MethodGet, "/schemas/missing/configs/c1", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvalidConfigRejectedWithDiffs(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/schemas",
		`{"name":"API","schema":{"env":{"$schema":{"kind":"string","required":true,"allowed_values":["dev","stg","prod"]}}}}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/schemas/api/configs", `{"name":"Bad","data":{"env":"local"}}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var apiErr struct {
		Code  string                `json:"code"`
		Diffs map[string][]string   `json:"diffs"`
	}
	decode(t, rec, &apiErr)
	assert.Equal(t, "invalid_config", apiErr.Code)
	assert.Equal(t, []string{"not_allowed_value"}, apiErr.Diffs["$.env"])
}

func TestDefaultsPopulatedWithSplit(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/schemas",
		`{"name":"Workers","schema":{"workers":{"$schema":{"kind":"int","required":false,"default_value":12,"split":true}}}}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/schemas/workers/configs", `{"name":"C","data":{"workers":null}}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// First consumer registers its access.
	rec = s.do(t, http.MethodGet, "/schemas/workers/configs/c", "", map[string]string{
		middleware.SourceHeader: "consumer-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	s.waitForAccesses(t, "workers", "c", 1)

	// Second consumer asks for the populated view: 12 split across 2.
	rec = s.do(t, http.MethodGet, "/schemas/workers/configs/c?populate=true", "", map[string]string{
		middleware.SourceHeader: "consumer-2",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var config struct {
		Data map[string]interface{} `json:"data"`
	}
	decode(t, rec, &config)
	assert.Equal(t, float64(6), config.Data["workers"])
}

func TestPasswordGate(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/schemas",
		`{"name":"API","schema":{"env":{"$schema":{"kind":"string","required":true}}}}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/schemas/api/configs", `{"name":"C1","data":{"env":"dev"},"password":"p"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/schemas/api/configs/c1", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var apiErr struct {
		Code string `json:"code"`
	}
	decode(t, rec, &apiErr)
	assert.Equal(t, "unauthorized", apiErr.Code)

	rec = s.do(t, http.MethodGet, "/schemas/api/configs/c1", "", map[string]string{
		middleware.PasswordHeader: "p",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Mutations are gated too.
	rec = s.do(t, http.MethodPut, "/schemas/api/configs/c1", `{"data":{"env":"stg"}}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.do(t, http.MethodPut, "/schemas/api/configs/c1", `{"data":{"env":"stg"}}`, map[string]string{
		middleware.PasswordHeader: "p",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Clearing the password reopens the config.
	rec = s.do(t, http.MethodDelete, "/schemas/api/configs/c1/password", "", map[string]string{
		middleware.PasswordHeader: "p",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, "/schemas/api/configs/c1", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRootPropChangeRevalidatesConfigs(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/schemas",
		`{"name":"Limits","schema":{"n":{"$schema":{"kind":"int","required":true,"interval":{"min":1,"max":10}}}}}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/schemas/limits/configs", `{"name":"C","data":{"n":5}}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPut, "/schemas/limits",
		`{"schema":{"n":{"$schema":{"kind":"int","required":true,"interval":{"min":8,"max":10}}}}}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/schemas/limits/configs/c", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var config struct {
		Valid bool `json:"valid"`
	}
	decode(t, rec, &config)
	assert.False(t, config.Valid, "config outside the new interval must be invalid")
}

func TestValidateDryRun(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/schemas",
		`{"name":"API","schema":{"env":{"$schema":{"kind":"string","required":true,"allowed_values":["dev"]}}}}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/schemas/api/validate", `{"data":{"env":"prod"}}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var result struct {
		Diffs map[string][]string `json:"diffs"`
	}
	decode(t, rec, &result)
	assert.Equal(t, []string{"not_allowed_value"}, result.Diffs["$.env"])

	rec = s.do(t, http.MethodPost, "/schemas/api/validate", `{"data":{"env":"dev"}}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	result.Diffs = nil // json.Unmarshal would otherwise merge into the previous map
	decode(t, rec, &result)
	assert.Empty(t, result.Diffs)
}

func TestDeleteSchemaRefusesWhileConfigsRemain(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/schemas",
		`{"name":"API","schema":{"env":{"$schema":{"kind":"string","required":true}}}}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = s.do(t, http.MethodPost, "/schemas/api/configs", `{"name":"C1","data":{"env":"dev"}}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodDelete, "/schemas/api", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var apiErr struct {
		Code string `json:"code"`
	}
	decode(t, rec, &apiErr)
	assert.Equal(t, "schema_contains_configs", apiErr.Code)

	rec = s.do(t, http.MethodDelete, "/schemas/api/configs/c1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodDelete, "/schemas/api", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
