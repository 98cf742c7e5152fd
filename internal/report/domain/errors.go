package report

import (
	"errors"
	"strings"
)

var (
	// ErrNoData is returned when no tracked area has data for a period.
	ErrNoData = errors.New("report: no data available for period")
	// ErrInvalidRange is returned for misordered or oversized month ranges.
	ErrInvalidRange = errors.New("report: invalid month range")
	// ErrUnknownArea is returned when an area key is not registered.
	ErrUnknownArea = errors.New("report: unknown area")
	// ErrCompositeArea is returned when a single-meter operation is
	// requested for a composite area.
	ErrCompositeArea = errors.New("report: composite area has no single meter reading")
)

// ConfigError reports required cost configuration fields that are
// absent. It is fatal to the request that triggered the computation.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return "report: missing cost config fields: " + strings.Join(e.Missing, ", ")
}
