package influx

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxapi "github.com/influxdata/influxdb-client-go/v2/api"

	"home-energy/internal/observability/metrics"
	telemetry "home-energy/internal/telemetry/domain"
)

// Reader queries hourly meter series from InfluxDB. Each sensor is
// queried individually; merging happens on the shared hour grid. The
// per-hour value is the first sample observed within the hour, which
// is the right pick for cumulative meters.
type Reader struct {
	client   influxdb2.Client
	queryAPI influxapi.QueryAPI
	bucket   string
	loc      *time.Location
	logger   *log.Logger
}

// NewReader constructs a reader.
func NewReader(url, token, org, bucket string, loc *time.Location, logger *log.Logger) (*Reader, error) {
	if url == "" {
		return nil, errors.New("influx reader: empty url")
	}
	if bucket == "" {
		return nil, errors.New("influx reader: empty bucket")
	}
	if loc == nil {
		return nil, errors.New("influx reader: nil location")
	}
	client := influxdb2.NewClient(url, token)
	return &Reader{
		client:   client,
		queryAPI: client.QueryAPI(org),
		bucket:   bucket,
		loc:      loc,
		logger:   logger,
	}, nil
}

// Close releases the underlying client.
func (r *Reader) Close() {
	if r != nil && r.client != nil {
		r.client.Close()
	}
}

// QuerySensors loads one series per sensor id. A sensor whose query
// fails or returns nothing contributes an empty series; the window as
// a whole only fails on invalid arguments.
func (r *Reader) QuerySensors(ctx context.Context, sensorIDs []string, window telemetry.Window) (map[string]telemetry.Series, error) {
	if r == nil || r.queryAPI == nil {
		return nil, errors.New("influx reader: nil query api")
	}
	if window.Hours() <= 0 {
		return nil, errors.New("influx reader: empty window")
	}

	result := make(map[string]telemetry.Series, len(sensorIDs))
	for _, sensorID := range sensorIDs {
		if sensorID == "" {
			continue
		}
		series, err := r.querySensor(ctx, sensorID, window)
		if err != nil {
			if r.logger != nil {
				r.logger.Printf("influx query failed for %s: %v", sensorID, err)
			}
			metrics.IncTelemetryQueryError(sensorID)
			series = telemetry.NewSeries(window.Start, window.Hours())
		}
		result[sensorID] = series
	}
	return result, nil
}

func (r *Reader) querySensor(ctx context.Context, sensorID string, window telemetry.Window) (telemetry.Series, error) {
	series := telemetry.NewSeries(window.Start, window.Hours())

	domain, entity := splitEntityID(sensorID)
	flux := fmt.Sprintf(`
from(bucket: %q)
	|> range(start: %s, stop: %s)
	|> filter(fn: (r) => r["entity_id"] == %q)
	|> filter(fn: (r) => r["_field"] == "value")
	|> filter(fn: (r) => r["domain"] == %q)
	|> window(every: 1h)
	|> first()
	|> duplicate(column: "_start", as: "_time")
	|> window(every: inf)
`, r.bucket, window.Start.UTC().Format(time.RFC3339), window.End.UTC().Format(time.RFC3339), entity, domain)

	rows, err := r.queryAPI.Query(ctx, flux)
	if err != nil {
		return series, err
	}
	for rows.Next() {
		record := rows.Record()
		value, ok := numericValue(record.Value())
		if !ok {
			continue
		}
		idx := int(record.Time().Sub(window.Start) / time.Hour)
		if idx < 0 || idx >= series.Len() {
			continue
		}
		// First value per hour wins; later duplicates are ignored.
		if !series.Samples[idx].Valid {
			series.Set(idx, value)
		}
	}
	if err := rows.Err(); err != nil {
		return series, err
	}
	return series, nil
}

// splitEntityID splits "sensor.outdoor" into its domain and entity
// parts, defaulting the domain to "sensor".
func splitEntityID(entityID string) (string, string) {
	if i := strings.Index(entityID, "."); i >= 0 {
		return entityID[:i], entityID[i+1:]
	}
	return "sensor", entityID
}

func numericValue(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}
