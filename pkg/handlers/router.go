package handlers

import (
	"context"
	"fmt"
	"net/http"
	"os"

	config "supermart-analytics/configs"
	"supermart-analytics/internal/logger"
	"supermart-analytics/pkg/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Dependencies is everything the router needs, built once at startup.
type Dependencies struct {
	Config     *config.Config
	Log        *logger.Logger
	Monitoring *services.MonitoringService
	Predictor  *services.Predictor
	Store      *services.ReportStore
	Charts     *services.ChartService
}

// BuildDependencies loads the inference context and prepares the reporting
// store and chart directories. A missing model is not an error.
func BuildDependencies(cfg *config.Config, log *logger.Logger) (*Dependencies, error) {
	ic, err := services.LoadInferenceContext(cfg.ModelPath, cfg.FeaturesPath, log)
	if err != nil {
		return nil, err
	}
	store := services.NewReportStore(cfg.DBPath, log)
	if err := store.Migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("migrate report store: %w", err)
	}
	for _, dir := range []string{cfg.ChartsDir, cfg.OutputsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return &Dependencies{
		Config:     cfg,
		Log:        log,
		Monitoring: services.NewMonitoringService(log),
		Predictor:  services.NewPredictor(ic, log),
		Store:      store,
		Charts:     services.NewChartService(cfg.ChartsDir, cfg.OutputsDir, services.NewStatisticsService(log), log),
	}, nil
}

// AuthMiddleware 認証ミドルウェア（APIキー未設定時は素通し）
func AuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}
		if c.GetHeader("X-API-KEY") != apiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// NewRouter registers every route of the analytics API.
func NewRouter(deps *Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(deps.Monitoring.LoggingMiddleware())
	r.Use(cors.Default())

	predictionHandler := NewPredictionHandler(deps.Predictor, deps.Store, deps.Charts, deps.Log)
	reportHandler := NewReportHandler(deps.Store, deps.Charts, deps.Predictor, deps.Log)
	monitoringHandler := NewMonitoringHandler(deps.Monitoring)

	// ヘルスチェックエンドポイント
	r.GET("/health", HealthCheck)

	// グラフ画像
	r.Static(ChartsURL, deps.Charts.ChartsDir())
	r.GET(OutputsURL+"/:file", reportHandler.ServeOutput)

	// APIバージョン1のルートグループ
	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(deps.Config.APIKey))
	{
		v1.GET("/overview", reportHandler.GetOverview)
		v1.GET("/sql", reportHandler.GetSQLOverview)
		v1.POST("/filter", reportHandler.FilterSales)

		// 推論API
		v1.GET("/predict/options", predictionHandler.GetOptions)
		v1.POST("/predict", predictionHandler.Predict)
		v1.GET("/predictions", predictionHandler.ListPredictions)
		v1.GET("/predictions/export", predictionHandler.ExportPredictions)

		// モニタリングAPI
		monitoring := v1.Group("/monitoring")
		{
			monitoring.GET("/logs", monitoringHandler.GetLogs)
		}
	}

	return r
}
