package services

import (
	"fmt"
	"math"
	"sort"

	"supermart-analytics/internal/logger"
	"supermart-analytics/pkg/models"
)

// StatisticsService 探索的データ分析（列サマリー、相関、集計）
type StatisticsService struct {
	log *logger.Logger
}

// NewStatisticsService 新しい統計分析サービスを作成
func NewStatisticsService(log *logger.Logger) *StatisticsService {
	return &StatisticsService{log: log.With("service", "StatisticsService")}
}

// CalculateCorrelation 2つのデータ系列のピアソン相関係数を計算
func (s *StatisticsService) CalculateCorrelation(x, y []float64) (float64, error) {
	if len(x) != len(y) || len(x) == 0 {
		return 0, fmt.Errorf("series length mismatch or empty: %d vs %d", len(x), len(y))
	}

	n := float64(len(x))
	var sumX, sumY, sumXY, sumX2, sumY2 float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumX2 += x[i] * x[i]
		sumY2 += y[i] * y[i]
	}

	numerator := n*sumXY - sumX*sumY
	denominator := math.Sqrt((n*sumX2 - sumX*sumX) * (n*sumY2 - sumY*sumY))
	if denominator == 0 {
		return 0, fmt.Errorf("zero variance in at least one series")
	}
	return numerator / denominator, nil
}

// CalculatePValue 相関係数の両側p値（t分布）
func (s *StatisticsService) CalculatePValue(r float64, n int) float64 {
	if n < 3 {
		return 1.0
	}
	if math.Abs(r) >= 1 {
		return 0
	}
	t := r * math.Sqrt(float64(n-2)) / math.Sqrt(1-r*r)
	p := 2 * (1 - studentTCDF(math.Abs(t), float64(n-2)))
	return math.Max(0, math.Min(1, p))
}

// InterpretCorrelation renders a coefficient and its p-value as a short label.
func (s *StatisticsService) InterpretCorrelation(r, pValue float64) string {
	absR := math.Abs(r)
	var strength string
	switch {
	case absR >= 0.7:
		strength = "strong"
	case absR >= 0.4:
		strength = "moderate"
	case absR >= 0.2:
		strength = "weak"
	default:
		strength = "negligible"
	}
	direction := "positive"
	if r < 0 {
		direction = "negative"
	}
	if pValue < 0.05 {
		return fmt.Sprintf("%s %s correlation (significant)", strength, direction)
	}
	return fmt.Sprintf("%s %s correlation (not significant)", strength, direction)
}

// Summarize returns count/null figures for every column and moments for numeric ones.
func (s *StatisticsService) Summarize(ds *models.Dataset) []models.ColumnSummary {
	out := make([]models.ColumnSummary, 0, len(ds.Columns))
	for _, col := range ds.Columns {
		sum := models.ColumnSummary{Name: col.Name, Kind: col.Kind.String()}
		for i := 0; i < ds.Len(); i++ {
			if col.IsNull(i) {
				sum.Nulls++
			} else {
				sum.Count++
			}
		}
		switch col.Kind {
		case models.KindNumber:
			vals := finite(col.Numbers)
			if len(vals) > 0 {
				sum.Mean = calculateMean(vals)
				sum.Std = calculateStandardDeviation(vals)
				sum.Median = calculateMedian(vals)
				sum.Min, sum.Max = vals[0], vals[0]
				for _, v := range vals {
					sum.Min = math.Min(sum.Min, v)
					sum.Max = math.Max(sum.Max, v)
				}
			}
		case models.KindText:
			seen := map[string]bool{}
			for _, v := range col.Text {
				if v != "" {
					seen[v] = true
				}
			}
			sum.Unique = len(seen)
		}
		out = append(out, sum)
	}
	return out
}

// NumericColumns returns the names of the numeric columns in dataset order.
func (s *StatisticsService) NumericColumns(ds *models.Dataset) []string {
	var names []string
	for _, c := range ds.Columns {
		if c.Kind == models.KindNumber {
			names = append(names, c.Name)
		}
	}
	return names
}

// CorrelationMatrix computes pairwise Pearson coefficients over rows where
// both values are present. Undefined coefficients (zero variance) are NaN.
func (s *StatisticsService) CorrelationMatrix(ds *models.Dataset) ([]string, [][]float64) {
	names := s.NumericColumns(ds)
	m := make([][]float64, len(names))
	for i := range m {
		m[i] = make([]float64, len(names))
	}
	for i := range names {
		m[i][i] = 1
		for j := i + 1; j < len(names); j++ {
			x, y := pairwise(ds, names[i], names[j])
			r, err := s.CalculateCorrelation(x, y)
			if err != nil {
				r = math.NaN()
			}
			m[i][j], m[j][i] = r, r
		}
	}
	return names, m
}

// CorrelationPairs lists every numeric column pair, strongest first.
func (s *StatisticsService) CorrelationPairs(ds *models.Dataset) []models.CorrelationPair {
	names := s.NumericColumns(ds)
	var pairs []models.CorrelationPair
	for i := range names {
		for j := i + 1; j < len(names); j++ {
			x, y := pairwise(ds, names[i], names[j])
			r, err := s.CalculateCorrelation(x, y)
			if err != nil {
				s.log.Debug("correlation skipped", "x", names[i], "y", names[j], "error", err)
				continue
			}
			p := s.CalculatePValue(r, len(x))
			pairs = append(pairs, models.CorrelationPair{
				X:              names[i],
				Y:              names[j],
				Coefficient:    r,
				PValue:         p,
				SampleSize:     len(x),
				Interpretation: s.InterpretCorrelation(r, p),
			})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		return math.Abs(pairs[i].Coefficient) > math.Abs(pairs[j].Coefficient)
	})
	return pairs
}

func pairwise(ds *models.Dataset, a, b string) ([]float64, []float64) {
	var x, y []float64
	for i := 0; i < ds.Len(); i++ {
		va, vb := ds.NumberAt(a, i), ds.NumberAt(b, i)
		if math.IsNaN(va) || math.IsNaN(vb) {
			continue
		}
		x = append(x, va)
		y = append(y, vb)
	}
	return x, y
}

// GroupSum sums value per distinct key, largest first, keeping at most limit
// groups (0 = all). Empty keys and missing values are skipped.
func (s *StatisticsService) GroupSum(ds *models.Dataset, key, value string, limit int) []models.ChartPoint {
	if !ds.HasColumn(key) || !ds.HasColumn(value) {
		return nil
	}
	sums := map[string]float64{}
	for i := 0; i < ds.Len(); i++ {
		k := ds.TextAt(key, i)
		v := ds.NumberAt(value, i)
		if k == "" || math.IsNaN(v) {
			continue
		}
		sums[k] += v
	}
	points := make([]models.ChartPoint, 0, len(sums))
	for k, v := range sums {
		points = append(points, models.ChartPoint{Label: k, Value: v})
	}
	sort.Slice(points, func(i, j int) bool {
		if points[i].Value != points[j].Value {
			return points[i].Value > points[j].Value
		}
		return points[i].Label < points[j].Label
	})
	if limit > 0 && len(points) > limit {
		points = points[:limit]
	}
	return points
}

// MonthlySum sums value per calendar month ("2006-01"), oldest first.
func (s *StatisticsService) MonthlySum(ds *models.Dataset, value string) []models.ChartPoint {
	dateCol := DateColumn(ds)
	if dateCol == nil || !ds.HasColumn(value) {
		return nil
	}
	sums := map[string]float64{}
	for i, t := range dateCol.Dates {
		v := ds.NumberAt(value, i)
		if t.IsZero() || math.IsNaN(v) {
			continue
		}
		sums[t.Format("2006-01")] += v
	}
	points := make([]models.ChartPoint, 0, len(sums))
	for k, v := range sums {
		points = append(points, models.ChartPoint{Label: k, Value: v})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Label < points[j].Label })
	return points
}

// LogSummary writes the column summaries and strongest correlations to the log.
func (s *StatisticsService) LogSummary(ds *models.Dataset) {
	for _, c := range s.Summarize(ds) {
		s.log.Info("column summary", "column", c.Name, "kind", c.Kind, "count", c.Count,
			"nulls", c.Nulls, "mean", c.Mean, "std", c.Std, "unique", c.Unique)
	}
	for _, p := range s.CorrelationPairs(ds) {
		s.log.Info("correlation", "x", p.X, "y", p.Y, "r", p.Coefficient, "p", p.PValue, "note", p.Interpretation)
	}
}
