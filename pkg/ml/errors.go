package ml

import "errors"

var (
	// ErrEmptyInput is returned when a fit is attempted on no rows.
	ErrEmptyInput = errors.New("ml: empty input")
	// ErrShapeMismatch is returned when a matrix does not have the fitted width
	// or X and y disagree on length.
	ErrShapeMismatch = errors.New("ml: shape mismatch")
	// ErrNotFitted is returned when Transform/Predict runs before Fit.
	ErrNotFitted = errors.New("ml: not fitted")
)
