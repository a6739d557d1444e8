package timeseries

import "github.com/pkg/errors"

// Error kinds raised by the ingestion and diagnostic stages. Stages wrap them
// with context, so callers should classify with errors.Is.
var (
	// ErrInvalidResample is returned when the requested step is finer than the
	// native step of the data.
	ErrInvalidResample = errors.New("invalid resample step")

	// ErrInvalidPeriod is returned when a period is shorter than two steps or
	// is not an exact multiple of the step.
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrInvalidOrder is returned when differencing would empty the series or
	// when a seasonal lag below 2 is combined with a seasonal order.
	ErrInvalidOrder = errors.New("invalid differencing order")

	// ErrInsufficientData is returned when a series is too short (or too
	// sparse) for the requested computation.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidStep is returned when a series is built with a non-positive step.
	ErrInvalidStep = errors.New("invalid step")
)
