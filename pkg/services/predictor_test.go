package services

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"supermart-analytics/pkg/ml"
	"supermart-analytics/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredictWithoutModel(t *testing.T) {
	p := NewPredictor(NewInferenceContext(nil, trainedColumns), testLogger())
	assert.False(t, p.ModelLoaded())

	_, err := p.Predict(milkRequest())
	assert.True(t, errors.Is(err, ErrModelUnavailable))
}

func TestLoadInferenceContextWithoutArtifacts(t *testing.T) {
	dir := t.TempDir()
	ic, err := LoadInferenceContext(filepath.Join(dir, "model.gob"), filepath.Join(dir, "cols.json"), testLogger())
	require.NoError(t, err)
	assert.False(t, ic.ModelLoaded())
	assert.Empty(t, ic.Columns())
}

func fittedArtifact(t *testing.T, width int) *ModelArtifact {
	t.Helper()
	X := make([][]float64, 40)
	y := make([]float64, 40)
	for i := range X {
		X[i] = make([]float64, width)
		for j := range X[i] {
			X[i][j] = float64(i + j)
		}
		y[i] = float64(i)
	}
	pipe := ml.NewPipeline(ml.NewRandomForestRegressor(ml.WithNEstimators(3)))
	require.NoError(t, pipe.Fit(context.Background(), X, y))
	return &ModelArtifact{RunID: "test", Target: "total", TrainedAt: time.Now(), Pipeline: pipe}
}

func TestPredictSchemaDriftIsSurfaced(t *testing.T) {
	ic := NewInferenceContext(fittedArtifact(t, 4), trainedColumns)
	_, err := NewPredictor(ic, testLogger()).Predict(milkRequest())
	assert.True(t, errors.Is(err, ErrPredictionFailed))
}

func TestPredictFallbackLayout(t *testing.T) {
	ic := NewInferenceContext(fittedArtifact(t, 4), nil)
	pred, err := NewPredictor(ic, testLogger()).Predict(milkRequest())
	require.NoError(t, err)
	assert.Equal(t, FallbackColumns, pred.Features.Columns)
	assert.Equal(t, 2023, pred.Year)
}

func TestPredictRoundsToCents(t *testing.T) {
	ic := NewInferenceContext(fittedArtifact(t, len(trainedColumns)), trainedColumns)
	pred, err := NewPredictor(ic, testLogger()).Predict(milkRequest())
	require.NoError(t, err)
	assert.Equal(t, math.Round(pred.Total*100)/100, pred.Total)
}

// Full pipeline: 3 stores x 11 products x 730 days, train, load, predict, persist.
func TestEndToEndPredictionIsPersisted(t *testing.T) {
	if testing.Short() {
		t.Skip("trains on the full synthetic dataset")
	}
	dir := t.TempDir()
	gen := DefaultGeneratorConfig()
	gen.Stores = []string{"Downtown", "Mall", "Uptown"}
	gen.ProductsPerDay = len(gen.Products)
	ds := generatedDataset(t, gen)
	require.Equal(t, 3*11*730, ds.Len())

	cfg := testTrainerConfig(dir)
	cfg.NEstimators = 5
	_, err := NewTrainer(cfg, testLogger()).Train(context.Background(), ds)
	require.NoError(t, err)

	ic, err := LoadInferenceContext(cfg.ModelPath, cfg.FeaturesPath, testLogger())
	require.NoError(t, err)
	require.True(t, ic.ModelLoaded())

	req := FeatureInput{Product: "Milk", StoreLocation: "Downtown", Date: "2023-06-15", Quantity: "5", UnitPrice: "2.0"}
	pred, err := NewPredictor(ic, testLogger()).Predict(req)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, pred.Total, 0.0)
	assert.Equal(t, 2023, pred.Year)

	store := NewReportStore(filepath.Join(dir, "supermart.db"), testLogger())
	require.NoError(t, store.Migrate(context.Background()))
	rec := &models.PredictionRecord{
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		Product:        req.Product,
		StoreLocation:  req.StoreLocation,
		Date:           req.Date,
		Year:           pred.Year,
		Quantity:       5,
		UnitPrice:      2,
		PredictedTotal: pred.Total,
	}
	require.NoError(t, store.SavePrediction(context.Background(), rec))

	rows, kpis, err := store.ListPredictions(context.Background(), models.PredictionFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Milk", rows[0].Product)
	assert.Equal(t, "Downtown", rows[0].StoreLocation)
	assert.Equal(t, "2023-06-15", rows[0].Date)
	assert.Equal(t, 2023, rows[0].Year)
	assert.Equal(t, pred.Total, rows[0].PredictedTotal)
	assert.Equal(t, int64(1), kpis.Transactions)
}
