package signal

import (
	"math"
	"testing"
	"time"

	telemetry "home-energy/internal/telemetry/domain"
)

var seriesStart = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

// buildSeries treats NaN entries as missing hours.
func buildSeries(values []float64) telemetry.Series {
	series := telemetry.NewSeries(seriesStart, len(values))
	for i, v := range values {
		if !math.IsNaN(v) {
			series.Set(i, v)
		}
	}
	return series
}

func valueAt(t *testing.T, c Cleaned, i int) float64 {
	t.Helper()
	if !c.Series.Samples[i].Valid {
		t.Fatalf("slot %d is missing after repair", i)
	}
	return c.Series.Samples[i].Value
}

func TestRepair_ZeroTreatedAsMissing(t *testing.T) {
	raw := buildSeries([]float64{100, 0, 102})
	cleaned := Repair(raw, false)

	if !cleaned.HasGenuine {
		t.Fatal("expected genuine data")
	}
	// A zero on a cumulative meter is an outage artifact; the hour
	// carries the previous reading so no phantom consumption appears.
	if got := valueAt(t, cleaned, 1); math.Abs(got-100) > 1e-9 {
		t.Fatalf("expected zero hour carried forward as 100, got %v", got)
	}
}

func TestRepair_GapCarriesLastReading(t *testing.T) {
	raw := buildSeries([]float64{100, math.NaN(), math.NaN(), math.NaN(), 104})
	cleaned := Repair(raw, false)

	want := []float64{100, 100, 100, 100, 104}
	for i, expected := range want {
		if got := valueAt(t, cleaned, i); math.Abs(got-expected) > 1e-9 {
			t.Fatalf("slot %d: expected %v, got %v", i, expected, got)
		}
	}
}

func TestRepair_OutlierGapInterpolated(t *testing.T) {
	// Removing the garbage reading leaves an interior gap that is
	// spread linearly between its anchors.
	raw := buildSeries([]float64{150, 151, 350, 153, 154, 155, 156, 157})
	cleaned := Repair(raw, true)

	if got := valueAt(t, cleaned, 2); math.Abs(got-152) > 1e-9 {
		t.Fatalf("expected outlier hour interpolated to 152, got %v", got)
	}
}

func TestRepair_BimodalGarbageRemoved(t *testing.T) {
	// A meter that mostly reports a low garbage value with the genuine
	// high cluster at the end. The garbage cluster dominates the median,
	// so only the neighborhood of the max survives.
	raw := buildSeries([]float64{927, 927, 926, 930, 929, 11600, 11610, 11620})
	cleaned := Repair(raw, true)

	for i := range cleaned.Series.Samples {
		got := valueAt(t, cleaned, i)
		if got < 0.5*11620 {
			t.Fatalf("slot %d: garbage value %v survived cleaning", i, got)
		}
	}
}

func TestRepair_RateSpikeRemoved(t *testing.T) {
	// Median diff is 1 kWh/h so the limit clamps to the 50 kWh floor;
	// the +108 jump is discarded and re-interpolated.
	raw := buildSeries([]float64{50, 51, 52, 160, 53, 54, 55, 56, 57, 58})
	cleaned := Repair(raw, true)

	if got := valueAt(t, cleaned, 3); got > 60 {
		t.Fatalf("expected spike repaired, got %v", got)
	}
	assertMonotonic(t, cleaned)
}

func TestRepair_MonotonicEnforced(t *testing.T) {
	raw := buildSeries([]float64{100, 99, 105})
	cleaned := Repair(raw, false)

	if got := valueAt(t, cleaned, 1); got != 100 {
		t.Fatalf("expected decrease replaced with 100, got %v", got)
	}
	assertMonotonic(t, cleaned)
}

func TestRepair_EstimatedMarksSynthesizedEdges(t *testing.T) {
	raw := buildSeries([]float64{math.NaN(), math.NaN(), 100, 101, math.NaN()})
	cleaned := Repair(raw, false)

	wantEstimated := []bool{true, true, false, false, true}
	for i, expected := range wantEstimated {
		if cleaned.Estimated[i] != expected {
			t.Fatalf("slot %d: estimated=%v, want %v", i, cleaned.Estimated[i], expected)
		}
	}
	// Edges are still filled with usable values.
	if got := valueAt(t, cleaned, 0); got != 100 {
		t.Fatalf("expected leading edge backfilled to 100, got %v", got)
	}
	if got := valueAt(t, cleaned, 4); got != 101 {
		t.Fatalf("expected trailing edge forward-filled to 101, got %v", got)
	}
}

func TestRepair_AllMissing(t *testing.T) {
	raw := buildSeries([]float64{math.NaN(), math.NaN(), math.NaN()})
	cleaned := Repair(raw, true)

	if cleaned.HasGenuine {
		t.Fatal("expected no genuine data")
	}
	for i, estimated := range cleaned.Estimated {
		if !estimated {
			t.Fatalf("slot %d should be estimated", i)
		}
	}
}

func TestRepair_DoesNotMutateInput(t *testing.T) {
	raw := buildSeries([]float64{100, 0, 102})
	Repair(raw, false)

	if !raw.Samples[1].Valid || raw.Samples[1].Value != 0 {
		t.Fatal("input series was mutated")
	}
}

func assertMonotonic(t *testing.T, c Cleaned) {
	t.Helper()
	var prev float64
	var seen bool
	for i, sample := range c.Series.Samples {
		if !sample.Valid {
			continue
		}
		if seen && sample.Value < prev {
			t.Fatalf("slot %d: series decreases from %v to %v", i, prev, sample.Value)
		}
		prev = sample.Value
		seen = true
	}
}
