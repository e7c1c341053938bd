package main

import (
	"fmt"
	"os"

	config "supermart-analytics/configs"
	"supermart-analytics/internal/logger"
	"supermart-analytics/pkg/handlers"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .envファイルを読み込み
	envErr := godotenv.Load()

	// 設定の読み込み
	cfg := config.LoadConfig()

	log, err := logger.New(cfg.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	if envErr != nil {
		log.Warn(".env file not found or could not be loaded", "error", envErr)
	}

	deps, err := handlers.BuildDependencies(cfg, log)
	if err != nil {
		log.Fatal("failed to initialise services", "error", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := handlers.NewRouter(deps)

	addr := ":" + cfg.Port
	log.Info("starting Supermart analytics server", "addr", addr, "model_loaded", deps.Predictor.ModelLoaded())
	if err := r.Run(addr); err != nil {
		log.Fatal("failed to start server", "error", err)
	}
}
