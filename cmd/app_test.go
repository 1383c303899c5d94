package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	orderapp "ordercore/application/order"
	"ordercore/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("ORDERCORE_APP_ENV", "test")
	t.Setenv("ORDERCORE_DATABASE_TYPE", "memory")
	t.Setenv("ORDERCORE_DATABASE_SEED_DEMO", "true")
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestBuildServesCheckout(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	app, err := NewBuilder(cfg).WithoutLoggerInit().Build(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Components().Close(ctx) })
	assert.True(t, app.runsBackground(), "memory backend runs the sweeper in-process")

	body, _ := json.Marshal(map[string]any{
		"items":            []map[string]any{{"sku": "LINEN-SHIRT-M", "quantity": 1}},
		"shipping_address": map[string]any{"line1": "4 Park Street", "city": "Kolkata", "postal_code": "700016"},
		"payment_method":   "phonepe",
		"contact":          map[string]any{"name": "Mira", "email": "mira@example.com"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "u-42")
	w := httptest.NewRecorder()
	app.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var env struct {
		Data orderapp.CreateOrderResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NotNil(t, env.Data.Session)
	assert.Equal(t, "phonepe", env.Data.Session.Provider)

	redirect, err := url.Parse(env.Data.Session.RedirectURL)
	require.NoError(t, err)
	w = httptest.NewRecorder()
	app.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, redirect.RequestURI(), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	relayed, err := app.Components().Relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, relayed, "order.placed and order.status_changed")

	swept, err := app.Components().Sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, swept.Expired, "paid order is not swept")
}

func TestRunBackgroundStopsWithContext(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sweeper.Interval = 10 * time.Millisecond
	cfg.Worker.PollInterval = 10 * time.Millisecond

	backend, err := OpenBackend(context.Background(), cfg)
	require.NoError(t, err)
	c, err := Assemble(cfg, backend)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	RunBackground(ctx, &wg, cfg, c)
	time.Sleep(30 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("background jobs did not stop")
	}
	assert.NoError(t, c.Close(context.Background()))
}

func TestOpenBackendRejectsUnknownType(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Type = "cassandra"
	_, err := OpenBackend(context.Background(), cfg)
	assert.Error(t, err)
}

func TestRunOnceDrainsOutbox(t *testing.T) {
	cfg := testConfig(t)
	cfg.Worker.BatchSize = 1
	ctx := context.Background()
	app, err := NewBuilder(cfg).WithoutLoggerInit().Build(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Components().Close(ctx) })

	for _, email := range []string{"a@example.com", "b@example.com"} {
		body, _ := json.Marshal(map[string]any{
			"items":            []map[string]any{{"sku": "LINEN-SHIRT-M", "quantity": 1}},
			"shipping_address": map[string]any{"line1": "4 Park Street", "city": "Kolkata", "postal_code": "700016"},
			"payment_method":   "phonepe",
			"contact":          map[string]any{"name": "Mira", "email": email},
		})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-ID", "u-"+email)
		w := httptest.NewRecorder()
		app.Handler().ServeHTTP(w, req)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	require.NoError(t, RunOnce(ctx, cfg, app.Components()))
	n, err := app.Components().Relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "batch size 1 still drains both order.placed events")
}
