package services

import "errors"

// Error taxonomy shared by the pipeline and the request surface.
// Callers wrap these with context and test them with errors.Is.
var (
	// ErrDataUnavailable source file missing or unreadable
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrNoTargetColumn neither "total" nor "quantity" present
	ErrNoTargetColumn = errors.New("no target column")
	// ErrInsufficientData fewer usable rows than the trainer requires
	ErrInsufficientData = errors.New("insufficient data")
	// ErrModelUnavailable no fitted pipeline has been persisted/loaded
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrPredictionFailed the pipeline rejected the constructed feature vector
	ErrPredictionFailed = errors.New("prediction failed")
	// ErrSaveFailed a prediction record could not be persisted
	ErrSaveFailed = errors.New("save failed")
)
