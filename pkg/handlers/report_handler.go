package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"supermart-analytics/internal/logger"
	"supermart-analytics/pkg/models"
	"supermart-analytics/pkg/services"

	"github.com/gin-gonic/gin"
)

// ReportHandler 売上レポート関連のハンドラ
type ReportHandler struct {
	store     *services.ReportStore
	charts    *services.ChartService
	predictor *services.Predictor
	log       *logger.Logger
}

// NewReportHandler 新しいReportHandlerを作成
func NewReportHandler(store *services.ReportStore, charts *services.ChartService, predictor *services.Predictor, log *logger.Logger) *ReportHandler {
	return &ReportHandler{
		store:     store,
		charts:    charts,
		predictor: predictor,
		log:       log.With("handler", "ReportHandler"),
	}
}

// GetOverview returns the exploration charts, the raw row count and the
// loaded model's run metadata.
func (h *ReportHandler) GetOverview(c *gin.Context) {
	rows, err := h.store.CountRaw(c.Request.Context())
	if err != nil {
		h.log.Warn("raw row count unavailable", "error", err)
	}
	var model gin.H
	if a := h.predictor.Model(); a != nil {
		model = gin.H{
			"run_id":     a.RunID,
			"target":     a.Target,
			"trained_at": a.TrainedAt,
			"mae":        a.MAE,
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"charts":       services.ListCharts(h.charts.ChartsDir(), ChartsURL),
		"raw_rows":     rows,
		"model_loaded": h.predictor.ModelLoaded(),
		"model":        model,
	})
}

// GetSQLOverview 集計クエリの結果を返す
func (h *ReportHandler) GetSQLOverview(c *gin.Context) {
	ov := h.store.Overview(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"success":                 true,
		"top_stores":              emptyIfNil(ov.TopStores),
		"monthly_sales":           emptyIfNil(ov.MonthlySales),
		"top_products":            emptyIfNil(ov.TopProducts),
		"avg_unit_price_by_store": emptyIfNil(ov.AvgPriceStores),
	})
}

// FilterSales 年・商品・店舗で売上データを絞り込む
func (h *ReportHandler) FilterSales(c *gin.Context) {
	var f models.RawFilter
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&f); err != nil {
			respondError(c, http.StatusBadRequest, "リクエストの形式が不正です: "+err.Error())
			return
		}
	}
	rows, kpis, err := h.store.FilterRaw(c.Request.Context(), f)
	if err != nil {
		h.log.Error("filter sales failed", "error", err)
		respondError(c, http.StatusInternalServerError, "売上データの取得に失敗しました。")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"rows":    emptyIfNil(rows),
		"kpis":    kpis,
		"filters": f,
	})
}

// ServeOutput serves a generated chart from the outputs directory. Only a
// plain file name is accepted.
func (h *ReportHandler) ServeOutput(c *gin.Context) {
	name := c.Param("file")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		respondError(c, http.StatusBadRequest, "不正なファイル名です。")
		return
	}
	full := filepath.Join(h.charts.OutputsDir(), name)
	if info, err := os.Stat(full); err != nil || info.IsDir() {
		respondError(c, http.StatusNotFound, "ファイルが見つかりません。")
		return
	}
	c.File(full)
}
