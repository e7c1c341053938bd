package services

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"supermart-analytics/internal/logger"
	"supermart-analytics/pkg/models"

	"github.com/fogleman/gg"
)

const (
	chartWidth   = 900
	chartHeight  = 480
	chartMargin  = 60
	chartTopBars = 12
)

var (
	colBackground = color.White
	colAxis       = color.RGBA{60, 60, 60, 255}
	colGrid       = color.RGBA{225, 225, 225, 255}
	colBar        = color.RGBA{52, 120, 190, 255}
	colLine       = color.RGBA{220, 90, 40, 255}
)

// ChartService renders PNG charts for the exploration and prediction pages.
type ChartService struct {
	chartsDir  string
	outputsDir string
	stats      *StatisticsService
	log        *logger.Logger
}

// NewChartService グラフ描画サービスを作成
func NewChartService(chartsDir, outputsDir string, stats *StatisticsService, log *logger.Logger) *ChartService {
	return &ChartService{
		chartsDir:  chartsDir,
		outputsDir: outputsDir,
		stats:      stats,
		log:        log.With("service", "ChartService"),
	}
}

// ChartsDir returns the exploration chart directory.
func (s *ChartService) ChartsDir() string { return s.chartsDir }

// OutputsDir returns the per-prediction chart directory.
func (s *ChartService) OutputsDir() string { return s.outputsDir }

// GenerateExplorationCharts renders the dataset overview charts into the
// charts directory. Individual chart failures are logged and skipped.
func (s *ChartService) GenerateExplorationCharts(ds *models.Dataset) []string {
	if err := os.MkdirAll(s.chartsDir, 0o755); err != nil {
		s.log.Warn("charts dir unavailable", "dir", s.chartsDir, "error", err)
		return nil
	}
	var written []string
	try := func(name string, render func(path string) error) {
		path := filepath.Join(s.chartsDir, name)
		if err := render(path); err != nil {
			s.log.Warn("chart skipped", "chart", name, "error", err)
			return
		}
		written = append(written, path)
	}

	try("sales_by_store.png", func(p string) error {
		return RenderBarChart(p, "Top store locations by sales", s.stats.GroupSum(ds, "store_location", "total", chartTopBars))
	})
	try("quantity_by_product.png", func(p string) error {
		return RenderBarChart(p, "Top products by quantity", s.stats.GroupSum(ds, "product", "quantity", chartTopBars))
	})
	try("sales_by_month.png", func(p string) error {
		return RenderLineChart(p, "Sales by month", s.stats.MonthlySum(ds, "total"))
	})
	try("correlation_heatmap.png", func(p string) error {
		names, m := s.stats.CorrelationMatrix(ds)
		return RenderHeatmap(p, "Correlation matrix", names, m)
	})
	s.log.Info("exploration charts rendered", "count", len(written), "dir", s.chartsDir)
	return written
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9-]+`)

// ChartKey turns a product or store name into a file-name prefix.
// Underscores are replaced so the prefix survives GroupOutputCharts.
func ChartKey(name string) string {
	key := strings.Trim(unsafeKeyChars.ReplaceAllString(name, "-"), "-")
	if key == "" {
		return "all"
	}
	return key
}

// GenerateTrendChart writes "<key>_trend.png" into the outputs directory.
func (s *ChartService) GenerateTrendChart(key string, points []models.ChartPoint) (string, error) {
	if err := os.MkdirAll(s.outputsDir, 0o755); err != nil {
		return "", err
	}
	key = ChartKey(key)
	path := filepath.Join(s.outputsDir, key+"_trend.png")
	if err := RenderLineChart(path, "Monthly sales trend - "+key, points); err != nil {
		return "", err
	}
	return path, nil
}

// ListCharts returns "<urlPrefix>/<file>" for each PNG in dir, sorted by name.
// A missing directory yields an empty list.
func ListCharts(dir, urlPrefix string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return []string{}
	}
	out := []string{}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".png") {
			out = append(out, urlPrefix+"/"+e.Name())
		}
	}
	sort.Strings(out)
	return out
}

// GroupOutputCharts groups output PNGs by the file-name prefix before the
// first "_", each group in reverse name order.
func GroupOutputCharts(dir, urlPrefix string) map[string][]string {
	groups := map[string][]string{}
	charts := ListCharts(dir, urlPrefix)
	for i := len(charts) - 1; i >= 0; i-- {
		name := filepath.Base(charts[i])
		key := strings.SplitN(name, "_", 2)[0]
		groups[key] = append(groups[key], charts[i])
	}
	return groups
}

func newCanvas(title string) *gg.Context {
	dc := gg.NewContext(chartWidth, chartHeight)
	dc.SetColor(colBackground)
	dc.Clear()
	dc.SetColor(colAxis)
	dc.DrawStringAnchored(title, chartWidth/2, chartMargin/2, 0.5, 0.5)
	return dc
}

func drawAxes(dc *gg.Context, maxV float64) {
	x0, y0 := float64(chartMargin), float64(chartHeight-chartMargin)
	x1, y1 := float64(chartWidth-chartMargin/2), float64(chartMargin)
	for i := 0; i <= 4; i++ {
		y := y0 - (y0-y1)*float64(i)/4
		dc.SetColor(colGrid)
		dc.DrawLine(x0, y, x1, y)
		dc.Stroke()
		dc.SetColor(colAxis)
		dc.DrawStringAnchored(shortNumber(maxV*float64(i)/4), x0-6, y, 1, 0.5)
	}
	dc.SetColor(colAxis)
	dc.SetLineWidth(1.5)
	dc.DrawLine(x0, y0, x1, y0)
	dc.DrawLine(x0, y0, x0, y1)
	dc.Stroke()
}

func maxValue(points []models.ChartPoint) float64 {
	m := 0.0
	for _, p := range points {
		if p.Value > m {
			m = p.Value
		}
	}
	if m == 0 {
		m = 1
	}
	return m
}

// RenderBarChart draws one bar per point.
func RenderBarChart(path, title string, points []models.ChartPoint) error {
	if len(points) == 0 {
		return fmt.Errorf("bar chart %q: no data", title)
	}
	dc := newCanvas(title)
	maxV := maxValue(points)
	drawAxes(dc, maxV)

	plotW := float64(chartWidth - chartMargin - chartMargin/2)
	plotH := float64(chartHeight - 2*chartMargin)
	slot := plotW / float64(len(points))
	for i, p := range points {
		h := plotH * math.Max(p.Value, 0) / maxV
		x := float64(chartMargin) + slot*float64(i) + slot*0.15
		y := float64(chartHeight-chartMargin) - h
		dc.SetColor(colBar)
		dc.DrawRectangle(x, y, slot*0.7, h)
		dc.Fill()
		dc.SetColor(colAxis)
		dc.DrawStringAnchored(truncateLabel(p.Label, slot), x+slot*0.35, float64(chartHeight-chartMargin)+14, 0.5, 0.5)
	}
	return dc.SavePNG(path)
}

// RenderLineChart draws points in order, connected, with a marker per point.
func RenderLineChart(path, title string, points []models.ChartPoint) error {
	if len(points) == 0 {
		return fmt.Errorf("line chart %q: no data", title)
	}
	dc := newCanvas(title)
	maxV := maxValue(points)
	drawAxes(dc, maxV)

	plotW := float64(chartWidth - chartMargin - chartMargin/2)
	plotH := float64(chartHeight - 2*chartMargin)
	step := plotW
	if len(points) > 1 {
		step = plotW / float64(len(points)-1)
	}
	labelEvery := int(math.Ceil(float64(len(points)) / 12))
	xy := func(i int, v float64) (float64, float64) {
		x := float64(chartMargin)
		if len(points) > 1 {
			x += step * float64(i)
		} else {
			x += plotW / 2
		}
		return x, float64(chartHeight-chartMargin) - plotH*math.Max(v, 0)/maxV
	}

	dc.SetColor(colLine)
	dc.SetLineWidth(2)
	for i, p := range points {
		x, y := xy(i, p.Value)
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
	dc.Stroke()
	for i, p := range points {
		x, y := xy(i, p.Value)
		dc.SetColor(colLine)
		dc.DrawCircle(x, y, 3)
		dc.Fill()
		if i%labelEvery == 0 {
			dc.SetColor(colAxis)
			dc.DrawStringAnchored(p.Label, x, float64(chartHeight-chartMargin)+14, 0.5, 0.5)
		}
	}
	return dc.SavePNG(path)
}

// RenderHeatmap draws a square matrix with values in [-1, 1]; NaN cells are grey.
func RenderHeatmap(path, title string, names []string, m [][]float64) error {
	if len(names) < 2 {
		return fmt.Errorf("heatmap %q: need at least two numeric columns", title)
	}
	dc := newCanvas(title)
	size := float64(chartHeight - 2*chartMargin)
	cell := size / float64(len(names))
	left := float64(chartWidth)/2 - size/2 + 40
	top := float64(chartMargin)
	for i := range names {
		for j := range names {
			v := m[i][j]
			dc.SetColor(heatColor(v))
			dc.DrawRectangle(left+cell*float64(j), top+cell*float64(i), cell, cell)
			dc.Fill()
			dc.SetColor(colAxis)
			label := "n/a"
			if !math.IsNaN(v) {
				label = fmt.Sprintf("%.2f", v)
			}
			dc.DrawStringAnchored(label, left+cell*(float64(j)+0.5), top+cell*(float64(i)+0.5), 0.5, 0.5)
		}
		dc.DrawStringAnchored(names[i], left-8, top+cell*(float64(i)+0.5), 1, 0.5)
		dc.DrawStringAnchored(names[i], left+cell*(float64(i)+0.5), top+size+14, 0.5, 0.5)
	}
	return dc.SavePNG(path)
}

func heatColor(v float64) color.Color {
	if math.IsNaN(v) {
		return color.RGBA{200, 200, 200, 255}
	}
	v = math.Max(-1, math.Min(1, v))
	if v >= 0 {
		c := uint8(255 - 200*v)
		return color.RGBA{255, c, c, 255}
	}
	c := uint8(255 + 200*v)
	return color.RGBA{c, c, 255, 255}
}

func shortNumber(v float64) string {
	switch {
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fk", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

// truncateLabel fits a label into roughly width pixels of the 7px default face.
func truncateLabel(s string, width float64) string {
	maxChars := int(width / 7)
	if maxChars < 3 {
		maxChars = 3
	}
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	return string(r[:maxChars-1]) + "."
}
