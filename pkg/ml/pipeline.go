package ml

import (
	"context"
	"fmt"
	"math"
)

// Pipeline chains mean imputation, standard scaling and a random forest.
// It is fitted and applied as one unit and persisted with gob.
type Pipeline struct {
	Imputer   *MeanImputer
	Scaler    *StandardScaler
	Forest    *RandomForestRegressor
	NFeatures int
}

func NewPipeline(forest *RandomForestRegressor) *Pipeline {
	return &Pipeline{
		Imputer: NewMeanImputer(),
		Scaler:  NewStandardScaler(),
		Forest:  forest,
	}
}

func (p *Pipeline) Fit(ctx context.Context, X [][]float64, y []float64) error {
	if len(X) == 0 {
		return ErrEmptyInput
	}
	if err := p.Imputer.Fit(X); err != nil {
		return fmt.Errorf("imputer: %w", err)
	}
	Xi, err := p.Imputer.Transform(X)
	if err != nil {
		return fmt.Errorf("imputer: %w", err)
	}
	if err := p.Scaler.Fit(Xi); err != nil {
		return fmt.Errorf("scaler: %w", err)
	}
	Xs, err := p.Scaler.Transform(Xi)
	if err != nil {
		return fmt.Errorf("scaler: %w", err)
	}
	if err := p.Forest.Fit(ctx, Xs, y); err != nil {
		return fmt.Errorf("forest: %w", err)
	}
	p.NFeatures = len(X[0])
	return nil
}

// Predict rejects matrices whose width differs from the fitted width and
// any non-finite output.
func (p *Pipeline) Predict(X [][]float64) ([]float64, error) {
	if p.NFeatures == 0 {
		return nil, ErrNotFitted
	}
	for i, row := range X {
		if len(row) != p.NFeatures {
			return nil, fmt.Errorf("%w: row %d has %d features, pipeline expects %d", ErrShapeMismatch, i, len(row), p.NFeatures)
		}
	}
	Xi, err := p.Imputer.Transform(X)
	if err != nil {
		return nil, err
	}
	Xs, err := p.Scaler.Transform(Xi)
	if err != nil {
		return nil, err
	}
	preds, err := p.Forest.Predict(Xs)
	if err != nil {
		return nil, err
	}
	for i, v := range preds {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("ml: non-finite prediction for row %d", i)
		}
	}
	return preds, nil
}
