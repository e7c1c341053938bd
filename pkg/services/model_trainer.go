package services

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"supermart-analytics/internal/logger"
	"supermart-analytics/pkg/ml"
	"supermart-analytics/pkg/models"

	"github.com/google/uuid"
)

// TrainerConfig トレーニング設定
type TrainerConfig struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	TopN            int
	TestRatio       float64
	Seed            int64
	MinRows         int
	ModelPath       string
	FeaturesPath    string
}

// DefaultTrainerConfig returns the reference training setup.
func DefaultTrainerConfig(modelPath, featuresPath string) TrainerConfig {
	return TrainerConfig{
		NEstimators:     150,
		MinSamplesSplit: 2,
		TopN:            DefaultTopN,
		TestRatio:       0.2,
		Seed:            42,
		MinRows:         10,
		ModelPath:       modelPath,
		FeaturesPath:    featuresPath,
	}
}

// ModelArtifact is the persisted model file: the fitted pipeline plus run metadata.
type ModelArtifact struct {
	RunID     string
	Target    string
	TrainedAt time.Time
	MAE       float64
	Pipeline  *ml.Pipeline
}

// Trainer fits the regression pipeline and persists its artifacts.
type Trainer struct {
	cfg      TrainerConfig
	features *FeatureBuilder
	log      *logger.Logger
}

// NewTrainer 新しいトレーナーを作成
func NewTrainer(cfg TrainerConfig, log *logger.Logger) *Trainer {
	if cfg.MinRows <= 0 {
		cfg.MinRows = 10
	}
	if cfg.TestRatio <= 0 || cfg.TestRatio >= 1 {
		cfg.TestRatio = 0.2
	}
	if cfg.NEstimators <= 0 {
		cfg.NEstimators = 150
	}
	return &Trainer{
		cfg:      cfg,
		features: NewFeatureBuilder(),
		log:      log.With("service", "Trainer"),
	}
}

// TargetColumn picks "total", else "quantity".
func TargetColumn(ds *models.Dataset) (string, error) {
	for _, name := range []string{"total", "quantity"} {
		if ds.HasColumn(name) {
			return name, nil
		}
	}
	return "", ErrNoTargetColumn
}

// Train fits on a cleaned dataset. Artifacts are only written when the fit
// succeeds; on any error the previous model and manifest stay in place.
func (t *Trainer) Train(ctx context.Context, ds *models.Dataset) (*models.TrainingReport, error) {
	target, err := TargetColumn(ds)
	if err != nil {
		return nil, err
	}

	enc := t.features.BulkEncode(ds, t.cfg.TopN)
	var X [][]float64
	var y []float64
	for i, row := range enc.Rows {
		if hasNaN(row) {
			continue
		}
		v := ds.NumberAt(target, i)
		if math.IsNaN(v) {
			v = 0
		}
		X = append(X, row)
		y = append(y, v)
	}

	report := &models.TrainingReport{
		RunID:      uuid.NewString(),
		Target:     target,
		Columns:    enc.Columns,
		TotalRows:  ds.Len(),
		UsableRows: len(X),
	}
	if len(X) < t.cfg.MinRows {
		return nil, fmt.Errorf("%w: %d usable rows, need at least %d", ErrInsufficientData, len(X), t.cfg.MinRows)
	}
	if len(enc.Columns) == 0 {
		return nil, fmt.Errorf("%w: no feature columns could be derived", ErrInsufficientData)
	}

	XTrain, XTest, yTrain, yTest := ml.TrainTestSplit(X, y, t.cfg.TestRatio, t.cfg.Seed)
	report.TrainRows, report.TestRows = len(XTrain), len(XTest)

	t.log.Info("training started", "run_id", report.RunID, "target", target,
		"features", len(enc.Columns), "train_rows", len(XTrain), "test_rows", len(XTest))

	pipe := ml.NewPipeline(ml.NewRandomForestRegressor(
		ml.WithNEstimators(t.cfg.NEstimators),
		ml.WithForestMaxDepth(t.cfg.MaxDepth),
		ml.WithForestMinSamplesSplit(t.cfg.MinSamplesSplit),
		ml.WithSeed(t.cfg.Seed),
	))
	if err := pipe.Fit(ctx, XTrain, yTrain); err != nil {
		return nil, fmt.Errorf("fit pipeline: %w", err)
	}
	if len(XTest) > 0 {
		preds, err := pipe.Predict(XTest)
		if err != nil {
			return nil, fmt.Errorf("evaluate pipeline: %w", err)
		}
		report.MAE = ml.MAE(yTest, preds)
	}
	report.TrainedAt = time.Now().UTC()

	artifact := &ModelArtifact{
		RunID:     report.RunID,
		Target:    target,
		TrainedAt: report.TrainedAt,
		MAE:       report.MAE,
		Pipeline:  pipe,
	}
	if err := saveArtifacts(t.cfg.ModelPath, t.cfg.FeaturesPath, artifact, enc.Columns); err != nil {
		return nil, err
	}

	t.log.Info("training finished", "run_id", report.RunID, "mae", report.MAE,
		"model", t.cfg.ModelPath, "features", t.cfg.FeaturesPath)
	return report, nil
}

func hasNaN(row []float64) bool {
	for _, v := range row {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// SaveModelArtifact writes the artifact as gob, atomically.
func SaveModelArtifact(path string, a *ModelArtifact) error {
	return writeFileAtomic(path, encodeArtifact(a))
}

func encodeArtifact(a *ModelArtifact) func(io.Writer) error {
	return func(w io.Writer) error { return gob.NewEncoder(w).Encode(a) }
}

// saveArtifacts stages the model and the manifest side by side and renames
// them into place only after both were written.
func saveArtifacts(modelPath, featuresPath string, a *ModelArtifact, columns []string) error {
	modelTmp, err := stageFile(modelPath, encodeArtifact(a))
	if err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	defer os.Remove(modelTmp)
	colsTmp, err := stageFile(featuresPath, encodeColumns(columns))
	if err != nil {
		return fmt.Errorf("save feature columns: %w", err)
	}
	defer os.Remove(colsTmp)

	if err := os.Rename(modelTmp, modelPath); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	if err := os.Rename(colsTmp, featuresPath); err != nil {
		return fmt.Errorf("save feature columns: %w", err)
	}
	return nil
}

// LoadModelArtifact reads an artifact written by SaveModelArtifact.
func LoadModelArtifact(path string) (*ModelArtifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var a ModelArtifact
	if err := gob.NewDecoder(f).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if a.Pipeline == nil || a.Pipeline.Forest == nil || a.Pipeline.NFeatures == 0 {
		return nil, fmt.Errorf("decode model %s: incomplete artifact", path)
	}
	return &a, nil
}

// SaveFeatureColumns writes the ordered column list as an indented JSON array.
func SaveFeatureColumns(path string, columns []string) error {
	return writeFileAtomic(path, encodeColumns(columns))
}

func encodeColumns(columns []string) func(io.Writer) error {
	if columns == nil {
		columns = []string{}
	}
	return func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(columns)
	}
}

// LoadFeatureColumns reads the manifest written by SaveFeatureColumns.
func LoadFeatureColumns(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cols []string
	if err := json.Unmarshal(b, &cols); err != nil {
		return nil, fmt.Errorf("parse feature columns %s: %w", path, err)
	}
	return cols, nil
}

// writeFileAtomic writes to a temp file in the target directory and renames
// it over path, so readers never observe a partial file.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	tmp, err := stageFile(path, write)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)
	return os.Rename(tmp, path)
}

// stageFile writes a complete temp file next to path and returns its name.
// The caller renames or removes it.
func stageFile(path string, write func(io.Writer) error) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", err
	}
	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
