package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	config "supermart-analytics/configs"
	"supermart-analytics/internal/logger"
	"supermart-analytics/pkg/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDataset(t *testing.T, path string, days int) {
	t.Helper()
	gen := services.DefaultGeneratorConfig()
	gen.Start = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	gen.End = gen.Start.AddDate(0, 0, days-1)
	gen.Stores = gen.Stores[:2]
	records, err := services.GenerateDataset(gen)
	require.NoError(t, err)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, services.WriteRecordsCSV(f, records))
}

func TestRunBuildsAllArtifacts(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)
	cfg := config.LoadConfig()
	cfg.NEstimators = 5
	writeDataset(t, cfg.DatasetPath, 60)

	require.NoError(t, run(context.Background(), cfg, true, logger.Nop()))

	assert.FileExists(t, cfg.CleanedPath)
	assert.FileExists(t, cfg.ModelPath)
	assert.FileExists(t, cfg.FeaturesPath)
	assert.FileExists(t, filepath.Join(cfg.ChartsDir, "sales_by_store.png"))

	store := services.NewReportStore(cfg.DBPath, logger.Nop())
	n, err := store.CountRaw(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(60*2*5), n)

	ic, err := services.LoadInferenceContext(cfg.ModelPath, cfg.FeaturesPath, logger.Nop())
	require.NoError(t, err)
	assert.True(t, ic.ModelLoaded())
}

func TestRunMissingDataset(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	cfg := config.LoadConfig()
	err := run(context.Background(), cfg, false, logger.Nop())
	assert.ErrorIs(t, err, services.ErrDataUnavailable)
	assert.NoFileExists(t, cfg.ModelPath)
}

func TestRunBuildsStoreWhenTrainingFails(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)
	cfg := config.LoadConfig()
	csv := "date,store_location,product,quantity,unit_price\n" +
		"2023-01-01,Mall,Milk,1,2\n2023-01-02,Mall,Bread,2,1.5\n2023-01-03,Uptown,Milk,3,2\n"
	require.NoError(t, os.WriteFile(cfg.DatasetPath, []byte(csv), 0o644))

	for i := 0; i < 20; i++ {
		err := run(context.Background(), cfg, false, logger.Nop())
		require.ErrorIs(t, err, services.ErrInsufficientData)

		n, err := services.NewReportStore(cfg.DBPath, logger.Nop()).CountRaw(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(3), n, "run %d", i)
	}
	assert.NoFileExists(t, cfg.ModelPath)
}
