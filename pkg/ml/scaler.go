package ml

import (
	"fmt"
	"math"
)

// StandardScaler standardizes each column to zero mean and unit variance.
// Constant columns keep a unit divisor so they map to 0.
type StandardScaler struct {
	Mean []float64
	Std  []float64
}

func NewStandardScaler() *StandardScaler { return &StandardScaler{} }

func (s *StandardScaler) Fit(X [][]float64) error {
	if len(X) == 0 {
		return ErrEmptyInput
	}
	r, c := len(X), len(X[0])
	s.Mean = make([]float64, c)
	s.Std = make([]float64, c)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			s.Mean[j] += X[i][j]
		}
		s.Mean[j] /= float64(r)
		v := 0.0
		for i := 0; i < r; i++ {
			d := X[i][j] - s.Mean[j]
			v += d * d
		}
		v /= float64(r)
		s.Std[j] = math.Sqrt(v)
		if s.Std[j] == 0 {
			s.Std[j] = 1
		}
	}
	return nil
}

func (s *StandardScaler) Transform(X [][]float64) ([][]float64, error) {
	if s.Mean == nil {
		return nil, ErrNotFitted
	}
	c := len(s.Mean)
	Y := make([][]float64, len(X))
	for i, x := range X {
		if len(x) != c {
			return nil, fmt.Errorf("%w: got %d columns, fitted on %d", ErrShapeMismatch, len(x), c)
		}
		row := make([]float64, c)
		for j := 0; j < c; j++ {
			row[j] = (x[j] - s.Mean[j]) / s.Std[j]
		}
		Y[i] = row
	}
	return Y, nil
}
