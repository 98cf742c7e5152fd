package telemetry

import "time"

// Sample is a single hourly observation from a sensor. Valid is false
// when the store produced no reading for that hour; callers must not
// treat a missing hour as zero.
type Sample struct {
	Value float64
	Valid bool
}

// Window is a half-open [Start, End) query window on the hourly grid.
// Both boundaries are instants in the service's local timezone.
type Window struct {
	Start time.Time
	End   time.Time
}

// Hours returns the number of hour slots covered by the window.
func (w Window) Hours() int {
	if !w.End.After(w.Start) {
		return 0
	}
	return int(w.End.Sub(w.Start) / time.Hour)
}

// Series holds hourly samples aligned to a window's hour grid starting
// at Start. Index i corresponds to the hour Start + i*1h.
type Series struct {
	Start   time.Time
	Samples []Sample
}

// NewSeries allocates an all-missing series of the given length.
func NewSeries(start time.Time, hours int) Series {
	if hours < 0 {
		hours = 0
	}
	return Series{Start: start, Samples: make([]Sample, hours)}
}

// Len returns the number of hour slots.
func (s Series) Len() int { return len(s.Samples) }

// HourAt returns the wall-clock hour for slot i.
func (s Series) HourAt(i int) time.Time {
	return s.Start.Add(time.Duration(i) * time.Hour)
}

// Set records a genuine sample at slot i.
func (s *Series) Set(i int, value float64) {
	if i < 0 || i >= len(s.Samples) {
		return
	}
	s.Samples[i] = Sample{Value: value, Valid: true}
}

// Unset marks slot i as missing.
func (s *Series) Unset(i int) {
	if i < 0 || i >= len(s.Samples) {
		return
	}
	s.Samples[i] = Sample{}
}

// IsEmpty reports whether the series carries no valid sample at all.
func (s Series) IsEmpty() bool {
	for _, sample := range s.Samples {
		if sample.Valid {
			return false
		}
	}
	return true
}

// GenuineBounds returns the first and last valid slot indexes.
func (s Series) GenuineBounds() (first, last int, ok bool) {
	first = -1
	for i, sample := range s.Samples {
		if !sample.Valid {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	if first < 0 {
		return 0, 0, false
	}
	return first, last, true
}

// Clone returns a deep copy.
func (s Series) Clone() Series {
	out := Series{Start: s.Start, Samples: make([]Sample, len(s.Samples))}
	copy(out.Samples, s.Samples)
	return out
}
