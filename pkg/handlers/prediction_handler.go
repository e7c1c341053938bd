package handlers

import (
	"bytes"
	"net/http"
	"path"
	"path/filepath"
	"time"

	"supermart-analytics/internal/logger"
	"supermart-analytics/pkg/models"
	"supermart-analytics/pkg/services"

	"github.com/gin-gonic/gin"
)

// ExportFileName is the attachment name of the predictions export.
const ExportFileName = "supermart_predictions.csv"

// PredictionHandler 推論と推論履歴のハンドラ
type PredictionHandler struct {
	predictor *services.Predictor
	store     *services.ReportStore
	charts    *services.ChartService
	log       *logger.Logger
	now       func() time.Time
}

// NewPredictionHandler 新しいPredictionHandlerを作成
func NewPredictionHandler(predictor *services.Predictor, store *services.ReportStore, charts *services.ChartService, log *logger.Logger) *PredictionHandler {
	return &PredictionHandler{
		predictor: predictor,
		store:     store,
		charts:    charts,
		log:       log.With("handler", "PredictionHandler"),
		now:       time.Now,
	}
}

// GetOptions returns the dropdown values for the prediction form.
func (h *PredictionHandler) GetOptions(c *gin.Context) {
	ctx := c.Request.Context()
	stores, err := h.store.Distinct(ctx, "store_location")
	if err != nil {
		h.log.Warn("store options unavailable", "error", err)
	}
	products, err := h.store.Distinct(ctx, "product")
	if err != nil {
		h.log.Warn("product options unavailable", "error", err)
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"stores":       emptyIfNil(stores),
		"products":     emptyIfNil(products),
		"model_loaded": h.predictor.ModelLoaded(),
	})
}

// Predict 推論を実行して結果を保存する
func (h *PredictionHandler) Predict(c *gin.Context) {
	var req models.PredictionRequest
	var err error
	if isJSON(c) {
		err = c.ShouldBindJSON(&req)
	} else {
		err = c.ShouldBind(&req)
	}
	if err != nil {
		respondError(c, http.StatusBadRequest, "リクエストの形式が不正です: "+err.Error())
		return
	}

	pred, err := h.predictor.Predict(services.FromRequest(req))
	if err != nil {
		h.log.Warn("prediction rejected", "error", err, "product", req.Product, "store", req.StoreLocation)
		respondError(c, statusFor(err), err.Error())
		return
	}

	rec := &models.PredictionRecord{
		Timestamp:      h.now().UTC().Format(time.RFC3339),
		Product:        req.Product,
		StoreLocation:  req.StoreLocation,
		Date:           req.Date,
		Year:           pred.Year,
		Quantity:       services.NumberOrZero(req.Quantity.String()),
		UnitPrice:      services.NumberOrZero(req.UnitPrice.String()),
		PredictedTotal: pred.Total,
	}
	if err := h.store.SavePrediction(c.Request.Context(), rec); err != nil {
		h.log.Error("prediction not persisted", "error", err)
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"predicted_total": pred.Total,
		"record":          rec,
		"fallbacks":       emptyIfNil(pred.Features.Fallbacks),
		"chart":           h.refreshTrendChart(c, req),
	})
}

// refreshTrendChart writes the monthly trend chart for the request's product
// (or store). Failures are logged and yield an empty URL.
func (h *PredictionHandler) refreshTrendChart(c *gin.Context, req models.PredictionRequest) string {
	key := req.Product
	if key == "" {
		key = req.StoreLocation
	}
	points, err := h.store.MonthlyTrend(c.Request.Context())
	if err != nil {
		h.log.Warn("trend data unavailable", "error", err)
		return ""
	}
	if len(points) == 0 {
		return ""
	}
	file, err := h.charts.GenerateTrendChart(key, points)
	if err != nil {
		h.log.Warn("trend chart failed", "error", err, "key", key)
		return ""
	}
	return path.Join(OutputsURL, filepath.Base(file))
}

// ListPredictions 推論履歴とKPIを返す
func (h *PredictionHandler) ListPredictions(c *gin.Context) {
	var f models.PredictionFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	rows, kpis, err := h.store.ListPredictions(c.Request.Context(), f)
	if err != nil {
		h.log.Error("list predictions failed", "error", err)
		respondError(c, http.StatusInternalServerError, "推論履歴の取得に失敗しました。")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"predictions": emptyIfNil(rows),
		"kpis":        kpis,
		"filters":     f,
		"charts":      services.GroupOutputCharts(h.charts.OutputsDir(), OutputsURL),
	})
}

// ExportPredictions 全推論履歴をCSVでダウンロード
func (h *PredictionHandler) ExportPredictions(c *gin.Context) {
	rows, err := h.store.AllPredictions(c.Request.Context())
	if err != nil {
		h.log.Error("export predictions failed", "error", err)
		respondError(c, http.StatusInternalServerError, "推論履歴の取得に失敗しました。")
		return
	}
	if len(rows) == 0 {
		respondError(c, http.StatusNotFound, "エクスポートする推論履歴がありません。")
		return
	}

	var buf bytes.Buffer
	if err := services.WritePredictionsCSV(&buf, rows); err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+ExportFileName+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
