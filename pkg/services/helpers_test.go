package services

import (
	"bytes"
	"testing"
	"time"

	"supermart-analytics/internal/logger"
	"supermart-analytics/pkg/models"

	"github.com/stretchr/testify/require"
)

func testLogger() *logger.Logger { return logger.Nop() }

// cleanedDataset loads CSV text through the ingestion service.
func cleanedDataset(t *testing.T, csvText string) *models.Dataset {
	t.Helper()
	svc := NewIngestionService(testLogger())
	ds, err := svc.LoadReader("test.csv", bytes.NewBufferString(csvText))
	require.NoError(t, err)
	return svc.Clean(ds)
}

// generatedDataset renders synthetic records to CSV and cleans them.
func generatedDataset(t *testing.T, cfg GeneratorConfig) *models.Dataset {
	t.Helper()
	records, err := GenerateDataset(cfg)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, WriteRecordsCSV(&buf, records))
	return cleanedDataset(t, buf.String())
}

func smallGeneratorConfig(days int) GeneratorConfig {
	cfg := DefaultGeneratorConfig()
	cfg.Start = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg.End = cfg.Start.AddDate(0, 0, days-1)
	cfg.Stores = []string{"Downtown", "Mall", "Uptown"}
	return cfg
}
