package handler

import (
	"net/http"
	"sync"

	config "supermart-analytics/configs"
	"supermart-analytics/internal/logger"
	"supermart-analytics/pkg/handlers"

	"github.com/gin-gonic/gin"
)

var (
	app     *gin.Engine
	initErr error
	once    sync.Once
)

// setupApp はGinアプリケーションを初期化します。
// サーバーレス環境では、リクエストごとに初期化が走らないようsync.Onceで一度だけ実行します。
func setupApp() (*gin.Engine, error) {
	once.Do(func() {
		// .envファイルはVercelの環境変数設定から読み込まれるため、ここではgodotenvを呼び出しません。
		cfg := config.LoadConfig()

		log, err := logger.New(cfg.Environment)
		if err != nil {
			initErr = err
			return
		}
		deps, err := handlers.BuildDependencies(cfg, log)
		if err != nil {
			log.Error("serverless init failed", "error", err)
			initErr = err
			return
		}
		gin.SetMode(gin.ReleaseMode)
		app = handlers.NewRouter(deps)
		log.Info("serverless app initialised", "model_loaded", deps.Predictor.ModelLoaded())
	})
	return app, initErr
}

// Handler はVercelからのすべてのリクエストを処理するエントリーポイントです。
func Handler(w http.ResponseWriter, r *http.Request) {
	// Ginアプリケーションをセットアップ（初回のみ実行される）
	engine, err := setupApp()
	if err != nil {
		http.Error(w, `{"success":false,"error":"service unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	engine.ServeHTTP(w, r)
}
