package services

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"supermart-analytics/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertPNG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, chartWidth, cfg.Width)
	assert.Equal(t, chartHeight, cfg.Height)
}

func TestRenderCharts(t *testing.T) {
	dir := t.TempDir()
	points := []models.ChartPoint{{Label: "Mall", Value: 120}, {Label: "Uptown", Value: 80.5}, {Label: "Airport", Value: 0}}

	bar := filepath.Join(dir, "bar.png")
	require.NoError(t, RenderBarChart(bar, "bars", points))
	assertPNG(t, bar)

	line := filepath.Join(dir, "line.png")
	require.NoError(t, RenderLineChart(line, "line", points[:1]))
	assertPNG(t, line)

	heat := filepath.Join(dir, "heat.png")
	require.NoError(t, RenderHeatmap(heat, "heat", []string{"a", "b"}, [][]float64{{1, -0.5}, {-0.5, 1}}))
	assertPNG(t, heat)

	assert.Error(t, RenderBarChart(filepath.Join(dir, "empty.png"), "empty", nil))
	assert.Error(t, RenderHeatmap(filepath.Join(dir, "h1.png"), "one", []string{"a"}, [][]float64{{1}}))
}

func TestGenerateExplorationCharts(t *testing.T) {
	dir := t.TempDir()
	svc := NewChartService(filepath.Join(dir, "charts"), filepath.Join(dir, "outputs"), NewStatisticsService(testLogger()), testLogger())
	ds := generatedDataset(t, smallGeneratorConfig(45))

	written := svc.GenerateExplorationCharts(ds)
	assert.Len(t, written, 4)
	assert.Equal(t, []string{
		"charts/correlation_heatmap.png",
		"charts/quantity_by_product.png",
		"charts/sales_by_month.png",
		"charts/sales_by_store.png",
	}, ListCharts(svc.ChartsDir(), "charts"))
}

func TestGenerateTrendChartAndGroups(t *testing.T) {
	dir := t.TempDir()
	svc := NewChartService(filepath.Join(dir, "charts"), filepath.Join(dir, "outputs"), NewStatisticsService(testLogger()), testLogger())
	points := []models.ChartPoint{{Label: "2023-01", Value: 10}, {Label: "2023-02", Value: 12}}

	path, err := svc.GenerateTrendChart("Milk", points)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "outputs", "Milk_trend.png"), path)
	_, err = svc.GenerateTrendChart("Tooth paste/../x", points)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(svc.OutputsDir(), "Milk_extra.png"), []byte("x"), 0o644))

	groups := GroupOutputCharts(svc.OutputsDir(), "outputs")
	assert.Equal(t, []string{"outputs/Milk_trend.png", "outputs/Milk_extra.png"}, groups["Milk"])
	assert.Equal(t, []string{"outputs/Tooth-paste-x_trend.png"}, groups["Tooth-paste-x"])
}

func TestChartKey(t *testing.T) {
	assert.Equal(t, "Milk", ChartKey("Milk"))
	assert.Equal(t, "Fresh-Milk-2L", ChartKey(" Fresh_Milk 2L "))
	assert.Equal(t, "all", ChartKey("../"))
}

func TestListChartsMissingDir(t *testing.T) {
	assert.Empty(t, ListCharts(filepath.Join(t.TempDir(), "nope"), "charts"))
	assert.Empty(t, GroupOutputCharts(filepath.Join(t.TempDir(), "nope"), "outputs"))
}
