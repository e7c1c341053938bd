package services

import (
	"math"
	"testing"

	"supermart-analytics/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateCorrelation(t *testing.T) {
	s := NewStatisticsService(testLogger())

	r, err := s.CalculateCorrelation([]float64{1, 2, 3, 4}, []float64{2, 4, 6, 8})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r, 1e-12)

	r, err = s.CalculateCorrelation([]float64{1, 2, 3, 4}, []float64{8, 6, 4, 2})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, r, 1e-12)

	_, err = s.CalculateCorrelation([]float64{1, 2}, []float64{3, 3})
	assert.Error(t, err, "zero variance")

	_, err = s.CalculateCorrelation([]float64{1}, []float64{1, 2})
	assert.Error(t, err)
}

func TestCalculatePValue(t *testing.T) {
	s := NewStatisticsService(testLogger())
	assert.InDelta(t, 0.1411, s.CalculatePValue(0.5, 10), 1e-3)
	assert.InDelta(t, 0.2893, s.CalculatePValue(0.2, 30), 1e-3)
	assert.InDelta(t, 1.0, s.CalculatePValue(0, 50), 1e-9)
	assert.Less(t, s.CalculatePValue(0.9, 100), 0.001)
	assert.Equal(t, 1.0, s.CalculatePValue(0.9, 2))
}

func TestInterpretCorrelation(t *testing.T) {
	s := NewStatisticsService(testLogger())
	assert.Equal(t, "strong positive correlation (significant)", s.InterpretCorrelation(0.8, 0.01))
	assert.Equal(t, "weak negative correlation (not significant)", s.InterpretCorrelation(-0.25, 0.3))
}

func TestSummarize(t *testing.T) {
	s := NewStatisticsService(testLogger())
	ds := cleanedDataset(t, "date,product,quantity\n2023-01-01,Milk,1\n2023-01-02,Milk,3\n,Bread,\n")

	sums := s.Summarize(ds)
	require.Len(t, sums, 3, "no total column without unit_price")
	byName := map[string]models.ColumnSummary{}
	for _, c := range sums {
		byName[c.Name] = c
	}
	assert.Equal(t, 1, byName["date"].Nulls)
	assert.Equal(t, 2, byName["product"].Unique)
	q := byName["quantity"]
	assert.Equal(t, 2, q.Count)
	assert.Equal(t, 2.0, q.Mean)
	assert.Equal(t, 1.0, q.Std)
	assert.Equal(t, 1.0, q.Min)
	assert.Equal(t, 3.0, q.Max)
}

func TestCorrelationMatrixAndPairs(t *testing.T) {
	s := NewStatisticsService(testLogger())
	ds := cleanedDataset(t, "quantity,unit_price,total\n1,2,2\n2,2,4\n3,2,6\n4,2,8\n")

	names, m := s.CorrelationMatrix(ds)
	assert.Equal(t, []string{"quantity", "unit_price", "total"}, names)
	assert.InDelta(t, 1.0, m[0][2], 1e-12)
	assert.True(t, math.IsNaN(m[0][1]), "constant column has no correlation")
	assert.Equal(t, 1.0, m[1][1])

	pairs := s.CorrelationPairs(ds)
	require.Len(t, pairs, 1)
	assert.Equal(t, "quantity", pairs[0].X)
	assert.Equal(t, "total", pairs[0].Y)
	assert.Equal(t, 4, pairs[0].SampleSize)
}

func TestGroupAndMonthlySums(t *testing.T) {
	s := NewStatisticsService(testLogger())
	ds := cleanedDataset(t, "date,store_location,total\n"+
		"2023-01-01,Mall,5\n2023-01-20,Uptown,7\n2023-02-01,Mall,4\n,Airport,1\n2023-02-03,,2\n")

	assert.Equal(t, []models.ChartPoint{{Label: "Mall", Value: 9}, {Label: "Uptown", Value: 7}, {Label: "Airport", Value: 1}},
		s.GroupSum(ds, "store_location", "total", 0))
	assert.Len(t, s.GroupSum(ds, "store_location", "total", 2), 2)
	assert.Nil(t, s.GroupSum(ds, "missing", "total", 0))

	assert.Equal(t, []models.ChartPoint{{Label: "2023-01", Value: 12}, {Label: "2023-02", Value: 6}},
		s.MonthlySum(ds, "total"))
}
