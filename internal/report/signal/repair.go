// Package signal repairs raw cumulative-meter series: zeros reported
// during sensor outages, spikes from garbage readings, non-monotonic
// resets and reporting gaps of differing frequency.
package signal

import (
	"sort"

	telemetry "home-energy/internal/telemetry/domain"
)

// Outlier thresholds are empirically tuned against historical meter
// data. Changing them changes historical report output.
const (
	bimodalRatio  = 10.0
	bimodalMinKWh = 1000.0
	bimodalLower  = 0.5
	bimodalUpper  = 1.5

	unimodalMinKWh = 100.0
	unimodalLower  = 0.01
	unimodalUpper  = 2.0

	rateFactor   = 20.0
	rateFloorKWh = 50.0
)

// Cleaned is a repaired cumulative series. Estimated marks hours
// before the first or after the last genuine sample: those values were
// synthesized, not measured.
type Cleaned struct {
	Series     telemetry.Series
	Estimated  []bool
	HasGenuine bool
}

// Repair runs the full pipeline on one sensor's raw series. The outlier
// passes only run for sensors flagged as needing cleaning (composite or
// known-noisy meters). The result keeps fractional values on synthesized
// hours on purpose; rounding would hide that the hour was estimated.
func Repair(raw telemetry.Series, removeOutliers bool) Cleaned {
	series := raw.Clone()
	n := series.Len()

	zeroAsMissing(&series)

	// Estimated bounds are taken before any fill so fills never count
	// as genuine samples.
	first, last, hasGenuine := series.GenuineBounds()
	estimated := make([]bool, n)
	for i := range estimated {
		estimated[i] = !hasGenuine || i < first || i > last
	}
	if !hasGenuine {
		return Cleaned{Series: series, Estimated: estimated}
	}

	forwardFill(&series)
	if removeOutliers {
		dropAbsoluteOutliers(&series)
		dropRateOutliers(&series)
	}
	interpolate(&series)
	forwardFill(&series)
	backwardFill(&series)
	enforceMonotonic(&series)

	return Cleaned{Series: series, Estimated: estimated, HasGenuine: true}
}

// zeroAsMissing reinterprets exact zeros as missing samples. A
// cumulative meter reporting zero is a reset or outage artifact, not a
// reading.
func zeroAsMissing(s *telemetry.Series) {
	for i, sample := range s.Samples {
		if sample.Valid && sample.Value == 0 {
			s.Unset(i)
		}
	}
}

// forwardFill propagates the last genuine value across gaps. Valid for
// cumulative meters, which hold their value between polls.
func forwardFill(s *telemetry.Series) {
	var lastValue float64
	var seen bool
	for i, sample := range s.Samples {
		if sample.Valid {
			lastValue = sample.Value
			seen = true
			continue
		}
		if seen {
			s.Set(i, lastValue)
		}
	}
}

func backwardFill(s *telemetry.Series) {
	var nextValue float64
	var seen bool
	for i := s.Len() - 1; i >= 0; i-- {
		sample := s.Samples[i]
		if sample.Valid {
			nextValue = sample.Value
			seen = true
			continue
		}
		if seen {
			s.Set(i, nextValue)
		}
	}
}

// dropAbsoluteOutliers discards values implausibly far from the bulk of
// the series. A bimodal series (genuine high cluster plus low garbage)
// keeps only the neighborhood of the max; otherwise moderate unimodal
// bounds around the median apply.
func dropAbsoluteOutliers(s *telemetry.Series) {
	values := validValues(*s)
	if len(values) == 0 {
		return
	}
	med := median(values)
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}

	var low, high float64
	switch {
	case max > bimodalRatio*med && max > bimodalMinKWh:
		low, high = bimodalLower*max, bimodalUpper*max
	case med > unimodalMinKWh:
		low, high = unimodalLower*med, unimodalUpper*med
	default:
		return
	}

	for i, sample := range s.Samples {
		if sample.Valid && (sample.Value < low || sample.Value > high) {
			s.Unset(i)
		}
	}
}

// dropRateOutliers discards hours whose jump from the previous hour is
// implausible for a single hour of consumption.
func dropRateOutliers(s *telemetry.Series) {
	var diffs []float64
	for i := 1; i < s.Len(); i++ {
		prev, cur := s.Samples[i-1], s.Samples[i]
		if prev.Valid && cur.Valid && cur.Value > prev.Value {
			diffs = append(diffs, cur.Value-prev.Value)
		}
	}
	if len(diffs) == 0 {
		return
	}
	limit := rateFactor * median(diffs)
	if limit < rateFloorKWh {
		limit = rateFloorKWh
	}

	for i := 1; i < s.Len(); i++ {
		prev, cur := s.Samples[i-1], s.Samples[i]
		if prev.Valid && cur.Valid && cur.Value-prev.Value > limit {
			s.Unset(i)
		}
	}
}

// interpolate fills interior gaps linearly across time, spreading gap
// consumption evenly over the missing hours.
func interpolate(s *telemetry.Series) {
	n := s.Len()
	i := 0
	for i < n {
		if s.Samples[i].Valid {
			i++
			continue
		}
		gapStart := i
		for i < n && !s.Samples[i].Valid {
			i++
		}
		// Edges without both anchors are left to forward/backward fill.
		if gapStart == 0 || i == n {
			continue
		}
		left := s.Samples[gapStart-1].Value
		right := s.Samples[i].Value
		span := float64(i - gapStart + 1)
		for j := gapStart; j < i; j++ {
			frac := float64(j-gapStart+1) / span
			s.Set(j, left+(right-left)*frac)
		}
	}
}

// enforceMonotonic replaces any decrease with the preceding value; a
// cumulative meter can never go backwards.
func enforceMonotonic(s *telemetry.Series) {
	var prev float64
	var seen bool
	for i, sample := range s.Samples {
		if !sample.Valid {
			continue
		}
		if seen && sample.Value < prev {
			s.Set(i, prev)
			continue
		}
		prev = sample.Value
		seen = true
	}
}

func validValues(s telemetry.Series) []float64 {
	var out []float64
	for _, sample := range s.Samples {
		if sample.Valid {
			out = append(out, sample.Value)
		}
	}
	return out
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
