package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	config "supermart-analytics/configs"
	"supermart-analytics/internal/logger"
	"supermart-analytics/pkg/handlers"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	// テスト環境の設定
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func testConfig(t *testing.T, apiKey string) *config.Config {
	t.Helper()
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("API_KEY", apiKey)
	return config.LoadConfig()
}

func TestBuildDependenciesWithoutModel(t *testing.T) {
	cfg := testConfig(t, "")
	deps, err := handlers.BuildDependencies(cfg, logger.Nop())
	require.NoError(t, err)
	assert.False(t, deps.Predictor.ModelLoaded())
	assert.FileExists(t, cfg.DBPath)
	assert.DirExists(t, cfg.ChartsDir)
	assert.DirExists(t, cfg.OutputsDir)
}

func TestRouterSetup(t *testing.T) {
	deps, err := handlers.BuildDependencies(testConfig(t, ""), logger.Nop())
	require.NoError(t, err)
	r := handlers.NewRouter(deps)

	routes := map[string]bool{}
	for _, ri := range r.Routes() {
		routes[ri.Method+" "+ri.Path] = true
	}
	for _, want := range []string{
		"GET /health",
		"GET /api/v1/overview",
		"GET /api/v1/sql",
		"POST /api/v1/filter",
		"GET /api/v1/predict/options",
		"POST /api/v1/predict",
		"GET /api/v1/predictions",
		"GET /api/v1/predictions/export",
		"GET /api/v1/monitoring/logs",
		"GET /outputs/:file",
	} {
		assert.True(t, routes[want], want)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/predict", nil)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code, "empty JSON body")
}

func TestChartsAreServed(t *testing.T) {
	deps, err := handlers.BuildDependencies(testConfig(t, ""), logger.Nop())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(deps.Charts.ChartsDir(), "sales_by_store.png"), []byte("png"), 0o644))
	r := handlers.NewRouter(deps)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/charts/sales_by_store.png", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyMiddleware(t *testing.T) {
	deps, err := handlers.BuildDependencies(testConfig(t, "secret"), logger.Nop())
	require.NoError(t, err)
	r := handlers.NewRouter(deps)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/overview", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/api/v1/overview", nil)
	req.Header.Set("X-API-KEY", "secret")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "health is not behind the key")
}
