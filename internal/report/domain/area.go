package report

import "errors"

// ResidualKey names the implicit category for consumption implied by
// the total meter but not attributed to any tracked area.
const ResidualKey = "ovrigt"

// AreaDefinition describes one metered sub-area of the property.
// Composite areas (more than one sensor) derive consumption as the sum
// of per-sensor diffs and never expose a single meter reading.
type AreaDefinition struct {
	Key           string
	Name          string
	Sensors       []string
	NeedsCleaning bool
}

// SingleSensor reports whether the area is backed by exactly one meter.
func (a AreaDefinition) SingleSensor() bool { return len(a.Sensors) == 1 }

// AreaRegistry is the immutable set of tracked areas, defined once at
// process start.
type AreaRegistry struct {
	ordered []AreaDefinition
	byKey   map[string]AreaDefinition
}

// NewAreaRegistry validates and freezes the area definitions.
func NewAreaRegistry(areas []AreaDefinition) (*AreaRegistry, error) {
	if len(areas) == 0 {
		return nil, errors.New("report: no areas defined")
	}
	byKey := make(map[string]AreaDefinition, len(areas))
	ordered := make([]AreaDefinition, 0, len(areas))
	for _, area := range areas {
		if area.Key == "" {
			return nil, errors.New("report: area with empty key")
		}
		if area.Key == ResidualKey {
			return nil, errors.New("report: area key " + ResidualKey + " is reserved")
		}
		if _, exists := byKey[area.Key]; exists {
			return nil, errors.New("report: duplicate area key " + area.Key)
		}
		if len(area.Sensors) == 0 {
			return nil, errors.New("report: area " + area.Key + " has no sensors")
		}
		for _, sensor := range area.Sensors {
			if sensor == "" {
				return nil, errors.New("report: area " + area.Key + " has an empty sensor id")
			}
		}
		byKey[area.Key] = area
		ordered = append(ordered, area)
	}
	return &AreaRegistry{ordered: ordered, byKey: byKey}, nil
}

// All returns the areas in definition order.
func (r *AreaRegistry) All() []AreaDefinition {
	out := make([]AreaDefinition, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Get looks up one area by key.
func (r *AreaRegistry) Get(key string) (AreaDefinition, bool) {
	area, ok := r.byKey[key]
	return area, ok
}

// SensorIDs returns the distinct sensor ids across all areas, in
// definition order.
func (r *AreaRegistry) SensorIDs() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, area := range r.ordered {
		for _, sensor := range area.Sensors {
			if _, ok := seen[sensor]; ok {
				continue
			}
			seen[sensor] = struct{}{}
			out = append(out, sensor)
		}
	}
	return out
}
