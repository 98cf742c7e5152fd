package telemetry

import (
	"testing"
	"time"
)

func TestWindowHours(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	window := Window{Start: start, End: start.Add(72 * time.Hour)}
	if got := window.Hours(); got != 72 {
		t.Fatalf("hours = %d, want 72", got)
	}
	if got := (Window{Start: start, End: start}).Hours(); got != 0 {
		t.Fatalf("empty window hours = %d, want 0", got)
	}
}

func TestSeriesGenuineBounds(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	series := NewSeries(start, 5)
	if _, _, ok := series.GenuineBounds(); ok {
		t.Fatal("empty series must have no bounds")
	}

	series.Set(1, 10)
	series.Set(3, 12)
	first, last, ok := series.GenuineBounds()
	if !ok || first != 1 || last != 3 {
		t.Fatalf("bounds = (%d,%d,%v), want (1,3,true)", first, last, ok)
	}
}

func TestSeriesCloneIsIndependent(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	series := NewSeries(start, 3)
	series.Set(0, 1)

	clone := series.Clone()
	clone.Set(0, 99)
	clone.Set(1, 2)

	if series.Samples[0].Value != 1 || series.Samples[1].Valid {
		t.Fatal("clone mutation leaked into the original")
	}
}

func TestSeriesHourAt(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	series := NewSeries(start, 3)
	if got := series.HourAt(2); !got.Equal(start.Add(2 * time.Hour)) {
		t.Fatalf("hour at 2 = %v", got)
	}
}
