package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Input validation errors. The statistical engine assumes pre-validated
	// input; these are raised by the service layer before any math runs.
	ErrTooFewStudies    = errors.New("at least two studies required")
	ErrInvalidStudyData = errors.New("invalid study data")
	ErrUnknownMeasure   = errors.New("unknown effect measure")
	ErrUnknownModel     = errors.New("unknown pooling model")
	ErrMeasureMismatch  = errors.New("measure incompatible with study data")
	ErrMissingCovariate = errors.New("covariate missing for meta-regression")

	// Derived-analysis preconditions
	ErrTooFewForEggers     = errors.New("eggers test requires at least three studies")
	ErrTooFewForRegression = errors.New("meta-regression requires at least three studies")
	ErrNotBinaryOutcome    = errors.New("analysis requires a binary-outcome measure")

	// Import errors
	ErrEmptyDataset   = errors.New("no studies found in data file")
	ErrUnknownLayout  = errors.New("unrecognized study sheet layout")
	ErrFileNotFound   = errors.New("data file not found")
	ErrUnsupportedExt = errors.New("unsupported file type")
)

// Error constructors with context
func NewValidationError(study string, reason string) error {
	return fmt.Errorf("%w: study %q: %s", ErrInvalidStudyData, study, reason)
}

func NewMeasureMismatchError(measure string, study string) error {
	return fmt.Errorf("%w: measure %s, study %q", ErrMeasureMismatch, measure, study)
}

// Error checking helpers
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidStudyData) ||
		errors.Is(err, ErrTooFewStudies) ||
		errors.Is(err, ErrUnknownMeasure) ||
		errors.Is(err, ErrUnknownModel) ||
		errors.Is(err, ErrMeasureMismatch) ||
		errors.Is(err, ErrMissingCovariate) ||
		errors.Is(err, ErrNotBinaryOutcome) ||
		errors.Is(err, ErrEmptyDataset) ||
		errors.Is(err, ErrUnknownLayout) ||
		errors.Is(err, ErrUnsupportedExt)
}
