package services

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestLoggingMiddlewareRecordsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewMonitoringService(testLogger())

	router := gin.New()
	router.Use(svc.LoggingMiddleware())
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/v1/monitoring/logs", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/ok", "/ok", "/boom", "/missing", "/health", "/api/v1/monitoring/logs"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(w, req)
	}

	data := svc.GetDashboardData(1)
	assert.Equal(t, 4, data.TotalRequests, "health and monitoring excluded")
	assert.Equal(t, map[string]int{"/ok": 2, "/boom": 1, "/missing": 1}, data.Endpoints)
	assert.Len(t, data.RequestsOverTime, 1)
	assert.Equal(t, 4, data.RequestsOverTime[0]["requests"])
	assert.Equal(t, []map[string]interface{}{
		{"name": "2xx Success", "value": 2},
		{"name": "4xx Client Error", "value": 1},
		{"name": "5xx Server Error", "value": 1},
	}, data.StatusCodes)
	if assert.Len(t, data.RecentErrors, 1) {
		assert.Equal(t, "/boom", data.RecentErrors[0].Path)
	}
}

func TestDashboardDataExcludesOldEntries(t *testing.T) {
	svc := NewMonitoringService(testLogger())
	now := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	svc.LogRequest(LogEntry{Timestamp: now.Add(-2 * time.Hour), Path: "/a", StatusCode: 200})
	svc.LogRequest(LogEntry{Timestamp: now.Add(-48 * time.Hour), Path: "/b", StatusCode: 200})

	data := svc.GetDashboardData(24)
	assert.Equal(t, 1, data.TotalRequests)
	assert.Equal(t, 1, data.RequestsOverTime[21]["requests"])
	assert.Equal(t, "05-01 10:00", data.RequestsOverTime[21]["time"])
}

func TestLogRequestIsBounded(t *testing.T) {
	svc := NewMonitoringService(testLogger())
	now := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		svc.LogRequest(LogEntry{Timestamp: now, Path: "/old", StatusCode: http.StatusOK})
	}
	for i := 0; i < maxLogEntries-2; i++ {
		svc.LogRequest(LogEntry{Timestamp: now, Path: "/new", StatusCode: http.StatusOK})
	}
	svc.LogRequest(LogEntry{Timestamp: now, Path: "/first-error", StatusCode: http.StatusInternalServerError})
	svc.LogRequest(LogEntry{Timestamp: now, Path: "/last-error", StatusCode: http.StatusBadGateway})

	assert.Len(t, svc.logs, maxLogEntries)

	data := svc.GetDashboardData(1)
	assert.Equal(t, maxLogEntries, data.TotalRequests)
	assert.Equal(t, map[string]int{"/new": maxLogEntries - 2, "/first-error": 1, "/last-error": 1}, data.Endpoints)
	if assert.Len(t, data.RecentErrors, 2) {
		assert.Equal(t, "/last-error", data.RecentErrors[0].Path)
		assert.Equal(t, "/first-error", data.RecentErrors[1].Path)
	}
}
