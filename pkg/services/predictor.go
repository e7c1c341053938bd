package services

import (
	"errors"
	"fmt"
	"os"

	"supermart-analytics/internal/logger"
	"supermart-analytics/pkg/ml"

	"github.com/shopspring/decimal"
)

// InferenceContext holds the model and feature columns loaded at startup.
// It is never mutated afterwards and is shared by all requests.
type InferenceContext struct {
	artifact *ModelArtifact
	columns  []string
}

// NewInferenceContext builds a context from already-loaded parts; a nil
// artifact yields a context without a model.
func NewInferenceContext(artifact *ModelArtifact, columns []string) *InferenceContext {
	return &InferenceContext{
		artifact: artifact,
		columns:  append([]string(nil), columns...),
	}
}

// LoadInferenceContext reads the model artifact and the feature manifest.
// Missing files are not an error: the context simply reports no model.
func LoadInferenceContext(modelPath, featuresPath string, log *logger.Logger) (*InferenceContext, error) {
	ic := &InferenceContext{}

	cols, err := LoadFeatureColumns(featuresPath)
	switch {
	case err == nil:
		ic.columns = cols
	case errors.Is(err, os.ErrNotExist):
		log.Warn("feature manifest not found, using fallback layout", "path", featuresPath)
	default:
		return nil, err
	}

	artifact, err := LoadModelArtifact(modelPath)
	switch {
	case err == nil:
		ic.artifact = artifact
		log.Info("model loaded", "path", modelPath, "run_id", artifact.RunID,
			"target", artifact.Target, "mae", artifact.MAE, "features", artifact.Pipeline.NFeatures)
	case errors.Is(err, os.ErrNotExist):
		log.Warn("model artifact not found, predictions disabled", "path", modelPath)
	default:
		return nil, err
	}
	return ic, nil
}

// ModelLoaded reports whether a fitted pipeline is available.
func (ic *InferenceContext) ModelLoaded() bool {
	return ic != nil && ic.artifact != nil && ic.artifact.Pipeline != nil
}

// Columns returns a copy of the persisted feature column list.
func (ic *InferenceContext) Columns() []string {
	if ic == nil {
		return nil
	}
	return append([]string(nil), ic.columns...)
}

// Artifact returns the loaded model metadata, or nil.
func (ic *InferenceContext) Artifact() *ModelArtifact {
	if ic == nil {
		return nil
	}
	return ic.artifact
}

func (ic *InferenceContext) pipeline() *ml.Pipeline {
	if !ic.ModelLoaded() {
		return nil
	}
	return ic.artifact.Pipeline
}

// Prediction is one scalar inference with the vector it was computed from.
type Prediction struct {
	Total    float64       `json:"predicted_total"`
	Year     int           `json:"year"`
	Features FeatureVector `json:"features"`
}

// Predictor applies the loaded pipeline to request values. It has no side effects.
type Predictor struct {
	ctx      *InferenceContext
	features *FeatureBuilder
	log      *logger.Logger
}

// NewPredictor 推論器を作成
func NewPredictor(ic *InferenceContext, log *logger.Logger) *Predictor {
	return &Predictor{
		ctx:      ic,
		features: NewFeatureBuilder(),
		log:      log.With("service", "Predictor"),
	}
}

// ModelLoaded reports whether predictions can be served.
func (p *Predictor) ModelLoaded() bool { return p.ctx.ModelLoaded() }

// Model returns the metadata of the loaded artifact, or nil.
func (p *Predictor) Model() *ModelArtifact { return p.ctx.Artifact() }

// Predict builds the feature vector with the persisted columns and applies
// the pipeline. The result is rounded half away from zero to 2 dp.
func (p *Predictor) Predict(in FeatureInput) (*Prediction, error) {
	pipe := p.ctx.pipeline()
	if pipe == nil {
		return nil, ErrModelUnavailable
	}

	vec := p.features.Build(in, p.ctx.Columns())
	if len(vec.Fallbacks) > 0 {
		p.log.Debug("feature fallbacks applied", "fallbacks", vec.Fallbacks)
	}

	out, err := pipe.Predict([][]float64{vec.Values})
	if err != nil {
		p.log.Error("pipeline rejected feature vector", "error", err, "width", len(vec.Values))
		return nil, fmt.Errorf("%w: %v", ErrPredictionFailed, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: expected 1 output, got %d", ErrPredictionFailed, len(out))
	}

	total, _ := decimal.NewFromFloat(out[0]).Round(2).Float64()
	return &Prediction{
		Total:    total,
		Year:     p.features.Year(in.Date),
		Features: vec,
	}, nil
}
