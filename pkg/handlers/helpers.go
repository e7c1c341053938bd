package handlers

import (
	"errors"
	"net/http"
	"strings"

	"supermart-analytics/pkg/services"

	"github.com/gin-gonic/gin"
)

// URL prefixes under which chart images are served.
const (
	ChartsURL  = "/charts"
	OutputsURL = "/outputs"
)

// HealthCheck ヘルスチェック
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// statusFor maps the service error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrPredictionFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrDataUnavailable):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError エラーレスポンスを返す
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   message,
	})
}

// isJSON reports whether the request carries a JSON body.
func isJSON(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), gin.MIMEJSON)
}

// emptyIfNil keeps JSON arrays as [] instead of null.
func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
