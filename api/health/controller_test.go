package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ordercore/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, c *Controller, path string) (int, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	c.RegisterRoutes(r.Group("/api/v1"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func up() Pinger   { return PingFunc(func(context.Context) error { return nil }) }
func down() Pinger { return PingFunc(func(context.Context) error { return errors.New("connection refused") }) }

func TestHealthStatus(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "production", Version: "1.2.0"}}

	tests := []struct {
		name       string
		deps       []Dependency
		wantCode   int
		wantStatus string
	}{
		{"all up", []Dependency{Critical("database", up()), Optional("redis", up())}, http.StatusOK, StatusHealthy},
		{"cache down", []Dependency{Critical("database", up()), Optional("redis", down())}, http.StatusOK, StatusDegraded},
		{"database down", []Dependency{Critical("database", down()), Optional("redis", up())}, http.StatusServiceUnavailable, StatusUnhealthy},
		{"nil pinger skipped", []Dependency{Critical("database", up()), Optional("redis", nil)}, http.StatusOK, StatusHealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := serve(t, NewController(cfg, tt.deps...), "/api/v1/health")
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, body["status"])
			assert.Equal(t, "1.2.0", body["version"])
			assert.Nil(t, body["system"])
		})
	}
}

func TestReadinessIgnoresOptional(t *testing.T) {
	cfg := &config.Config{}

	code, body := serve(t, NewController(cfg, Critical("database", up()), Optional("redis", down())), "/api/v1/health/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", body["status"])

	code, body = serve(t, NewController(cfg, Critical("database", down())), "/api/v1/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "database not available", body["message"])
}
