package telemetry

import "context"

// SeriesReader loads hourly-aligned raw series per sensor id for a
// window. Implementations must not forward-fill or interpolate: gaps
// surface as missing samples so downstream repair can distinguish "no
// data" from "value unchanged". A single sensor's query failure yields
// an empty series for that sensor only, never an error for the window.
type SeriesReader interface {
	QuerySensors(ctx context.Context, sensorIDs []string, window Window) (map[string]Series, error)
}
