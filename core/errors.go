package core

import (
	"errors"
	"fmt"
)

// ErrLowQualityLocation marks a surface location dropped because its stack
// holds fewer than half the configured looks. It is a skip, not a failure.
var ErrLowQualityLocation = errors.New("low quality surface location")

// MissingCalibrationDataError reports that a calibration table required by
// an enabled correction is absent or malformed.
type MissingCalibrationDataError struct {
	Variable string
	Record   int
}

func (e *MissingCalibrationDataError) Error() string {
	return fmt.Sprintf("missing calibration data %q for record %d", e.Variable, e.Record)
}

// GeometryDegenerateError reports a zero-length vector in an angle
// computation.
type GeometryDegenerateError struct {
	Op string
}

func (e *GeometryDegenerateError) Error() string {
	return fmt.Sprintf("degenerate geometry in %s: zero-length vector", e.Op)
}

// InsufficientInputError reports that a run ended without producing a
// single surface location.
type InsufficientInputError struct {
	Bursts int
}

func (e *InsufficientInputError) Error() string {
	return fmt.Sprintf("insufficient input: %d bursts produced no surface location", e.Bursts)
}
