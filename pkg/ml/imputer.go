package ml

import (
	"fmt"
	"math"
)

// MeanImputer replaces NaN entries with the column mean observed at fit time.
// Columns that were entirely NaN during fit impute to 0.
type MeanImputer struct {
	Means []float64
}

func NewMeanImputer() *MeanImputer { return &MeanImputer{} }

func (m *MeanImputer) Fit(X [][]float64) error {
	if len(X) == 0 {
		return ErrEmptyInput
	}
	c := len(X[0])
	sums := make([]float64, c)
	counts := make([]int, c)
	for i, row := range X {
		if len(row) != c {
			return fmt.Errorf("%w: row %d has %d columns, want %d", ErrShapeMismatch, i, len(row), c)
		}
		for j, v := range row {
			if math.IsNaN(v) {
				continue
			}
			sums[j] += v
			counts[j]++
		}
	}
	m.Means = make([]float64, c)
	for j := range sums {
		if counts[j] > 0 {
			m.Means[j] = sums[j] / float64(counts[j])
		}
	}
	return nil
}

// Transform returns a copy of X with NaN replaced.
func (m *MeanImputer) Transform(X [][]float64) ([][]float64, error) {
	if m.Means == nil {
		return nil, ErrNotFitted
	}
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != len(m.Means) {
			return nil, fmt.Errorf("%w: got %d columns, fitted on %d", ErrShapeMismatch, len(row), len(m.Means))
		}
		r := make([]float64, len(row))
		for j, v := range row {
			if math.IsNaN(v) {
				v = m.Means[j]
			}
			r[j] = v
		}
		out[i] = r
	}
	return out, nil
}
