package pipeline

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/sartorproj/rrdiag/timeseries"
)

// Stage names one step of the per-source analysis.
type Stage string

// Stages in execution order.
const (
	StageInterpolate  Stage = "interpolate"
	StageDetect       Stage = "detect"
	StageDifference   Stage = "difference"
	StageStationarity Stage = "stationarity"
	StageDecompose    Stage = "decompose"
	StageCorrelation  Stage = "correlation"
)

// StageError is a failure of one stage for one source. Other sources are
// unaffected.
type StageError struct {
	Source string
	Stage  Stage
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Kind maps an error to a short label for metrics and logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, timeseries.ErrInvalidResample):
		return "invalid_resample"
	case errors.Is(err, timeseries.ErrInvalidPeriod):
		return "invalid_period"
	case errors.Is(err, timeseries.ErrInvalidOrder):
		return "invalid_order"
	case errors.Is(err, timeseries.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, timeseries.ErrInvalidStep):
		return "invalid_step"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}
