package application

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"home-energy/internal/observability/metrics"
	report "home-energy/internal/report/domain"
	"home-energy/internal/report/signal"
	telemetry "home-energy/internal/telemetry/domain"
)

const (
	// lookbackHours pads the query window before the month so the
	// first month hour has a previous value to diff against and
	// estimated-boundary detection sees pre-month samples.
	lookbackHours = 48

	// normalizeToleranceKWh is the allowed divergence between an
	// area's hourly consumption sum and its authoritative meter delta
	// before the month is rescaled.
	normalizeToleranceKWh = 0.5
)

// Sensors names the property-wide sensors outside the area registry.
type Sensors struct {
	// ElectricityPrice reports the hourly retail price, VAT inclusive.
	ElectricityPrice string
	// TotalMeter is the authoritative cumulative meter for the whole
	// property.
	TotalMeter string
}

// MonthService computes monthly consumption and cost reports. A single
// request runs the full pipeline sequentially: repair, consumption,
// reconciliation, allocation. Concurrent requests share the cache; a
// redundant computation for the same uncached month is harmless.
type MonthService struct {
	reader  telemetry.SeriesReader
	areas   *report.AreaRegistry
	sensors Sensors
	costs   report.CostConfig
	cache   *MonthCache
	clock   Clock
	loc     *time.Location
	logger  *log.Logger
}

// NewMonthService constructs the service.
func NewMonthService(
	reader telemetry.SeriesReader,
	areas *report.AreaRegistry,
	sensors Sensors,
	costs report.CostConfig,
	cache *MonthCache,
	clock Clock,
	loc *time.Location,
	logger *log.Logger,
) (*MonthService, error) {
	if reader == nil {
		return nil, errors.New("month service: nil series reader")
	}
	if areas == nil {
		return nil, errors.New("month service: nil area registry")
	}
	if sensors.TotalMeter == "" {
		return nil, errors.New("month service: total meter sensor required")
	}
	if loc == nil {
		return nil, errors.New("month service: nil location")
	}
	if cache == nil {
		cache = NewMonthCache()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &MonthService{
		reader:  reader,
		areas:   areas,
		sensors: sensors,
		costs:   costs,
		cache:   cache,
		clock:   clock,
		loc:     loc,
		logger:  logger,
	}, nil
}

// Areas exposes the registry for handlers.
func (s *MonthService) Areas() *report.AreaRegistry { return s.areas }

// Costs exposes the rate configuration for handlers.
func (s *MonthService) Costs() report.CostConfig { return s.costs }

// SensorIDs returns every sensor id the service queries.
func (s *MonthService) SensorIDs() []string {
	ids := s.areas.SensorIDs()
	if s.sensors.ElectricityPrice != "" {
		ids = append(ids, s.sensors.ElectricityPrice)
	}
	ids = append(ids, s.sensors.TotalMeter)
	return ids
}

// ClearCache empties the month cache and returns the entry count.
func (s *MonthService) ClearCache() int {
	count := s.cache.Clear()
	if s.logger != nil {
		s.logger.Printf("cleared %d cached month entries", count)
	}
	return count
}

// ComputeMonth returns the monthly report for a calendar month,
// serving it from cache when the freshness rules allow.
func (s *MonthService) ComputeMonth(ctx context.Context, month YearMonth) (*MonthResult, error) {
	if err := s.costs.Validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now().In(s.loc)
	isCurrent := month.Contains(now)

	cached, noData, status := s.cache.Lookup(month, isCurrent, now)
	metrics.IncCacheLookup(string(status))
	if status == LookupHit {
		if noData {
			return nil, report.ErrNoData
		}
		return cached, nil
	}

	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveReportCompute(result, time.Since(start))
	}()

	computed, err := s.computeMonth(ctx, month, now, isCurrent)
	if err != nil {
		result = metrics.ResultError
		if errors.Is(err, report.ErrNoData) {
			s.cache.StoreNoData(month, isCurrent, now)
		}
		return nil, err
	}
	s.cache.Store(month, computed, now)
	if s.logger != nil {
		s.logger.Printf("computed month %s: %d areas, total %.1f kWh", month, len(computed.Areas), computed.TotalMeterDelta)
	}
	return computed, nil
}

func (s *MonthService) computeMonth(ctx context.Context, month YearMonth, now time.Time, isCurrent bool) (*MonthResult, error) {
	monthStart := month.Start(s.loc)
	end := month.Next().Start(s.loc)
	if isCurrent {
		end = now.Truncate(time.Hour).Add(time.Hour)
	}
	window := telemetry.Window{Start: monthStart.Add(-lookbackHours * time.Hour), End: end}

	gridHours := window.Hours()
	monthHours := gridHours - lookbackHours
	if monthHours <= 0 {
		return nil, report.ErrNoData
	}

	raw, err := s.reader.QuerySensors(ctx, s.SensorIDs(), window)
	if err != nil {
		return nil, err
	}
	seriesFor := func(id string) telemetry.Series {
		if series, ok := raw[id]; ok && series.Len() == gridHours {
			return series
		}
		return telemetry.NewSeries(window.Start, gridHours)
	}

	empty := true
	for _, id := range s.SensorIDs() {
		if !seriesFor(id).IsEmpty() {
			empty = false
			break
		}
	}
	if empty {
		return nil, report.ErrNoData
	}

	totalClean := signal.Repair(seriesFor(s.sensors.TotalMeter), false)
	if !totalClean.HasGenuine {
		return nil, report.ErrNoData
	}

	price := priceValues(seriesFor(s.sensors.ElectricityPrice), lookbackHours, monthHours)
	markupInclVAT := s.costs.Supplier.MarkupPerKWhExVAT * (1 + s.costs.VATRate)

	areas := make(map[string]*AreaMetrics)
	for _, def := range s.areas.All() {
		areaMetrics, ok := s.buildAreaMetrics(def, seriesFor, gridHours, monthHours, price, markupInclVAT)
		if !ok {
			if s.logger != nil {
				s.logger.Printf("area %s has no usable data for %s; excluded", def.Key, month)
			}
			continue
		}
		areas[def.Key] = areaMetrics
	}
	if len(areas) == 0 {
		return nil, report.ErrNoData
	}

	totalDiff := make([]float64, monthHours)
	for i := range totalDiff {
		totalDiff[i] = clippedDiff(totalClean.Series, lookbackHours+i)
	}

	s.normalize(areas, month)

	residual := residualMetrics(areas, totalDiff, price, markupInclVAT)

	totalBaseline := totalClean.Series.Samples[lookbackHours-1].Value
	totalReading := totalClean.Series.Samples[gridHours-1].Value
	totalDelta := totalReading - totalBaseline

	var spotTotal, markupTotal float64
	for i, diff := range totalDiff {
		spotTotal += diff * (price[i] - markupInclVAT)
		markupTotal += diff * markupInclVAT
	}

	invoices := make(map[string]report.AreaInvoice, len(areas)+1)
	for key, areaMetrics := range areas {
		invoices[key] = report.BuildAreaInvoice(
			areaMetrics.TotalConsumptionKWh(),
			areaMetrics.TotalCostInclVAT(),
			s.costs.AreaRatesFor(key),
			s.costs,
		)
	}
	invoices[report.ResidualKey] = report.BuildAreaInvoice(
		residual.TotalConsumptionKWh(),
		residual.TotalCostInclVAT(),
		report.AreaRates{},
		s.costs,
	)

	meterReadings := make(map[string]float64)
	for key, areaMetrics := range areas {
		if areaMetrics.MeterReading != nil {
			meterReadings[key] = *areaMetrics.MeterReading
		}
	}

	hours := make([]time.Time, monthHours)
	for i := range hours {
		hours[i] = monthStart.Add(time.Duration(i) * time.Hour)
	}

	return &MonthResult{
		Year:              month.Year,
		Month:             month.Month,
		Start:             monthStart,
		End:               end,
		Hours:             hours,
		Price:             price,
		Areas:             areas,
		Residual:          residual,
		TotalMeterDelta:   totalDelta,
		TotalMeterReading: totalReading,
		Invoices:          invoices,
		Total:             report.BuildTotalInvoice(totalDelta, spotTotal, markupTotal, s.costs),
		MeterReadings:     meterReadings,
		AvgSpotExVAT:      averageSpotExVAT(totalDiff, price, markupInclVAT, s.costs.VATRate),
	}, nil
}

// buildAreaMetrics repairs an area's constituent series and derives its
// hourly consumption and cost columns. An area with any constituent
// entirely missing after repair is downgraded: ok is false and the
// area is excluded from the month.
func (s *MonthService) buildAreaMetrics(
	def report.AreaDefinition,
	seriesFor func(string) telemetry.Series,
	gridHours, monthHours int,
	price []float64,
	markupInclVAT float64,
) (*AreaMetrics, bool) {
	cleaned := make([]signal.Cleaned, len(def.Sensors))
	for i, sensorID := range def.Sensors {
		cleaned[i] = signal.Repair(seriesFor(sensorID), def.NeedsCleaning)
		if !cleaned[i].HasGenuine {
			return nil, false
		}
	}

	areaMetrics := newAreaMetrics(def, monthHours)
	for i := 0; i < monthHours; i++ {
		grid := lookbackHours + i
		var consumption float64
		estimated := false
		for _, c := range cleaned {
			consumption += clippedDiff(c.Series, grid)
			if c.Estimated[grid] {
				estimated = true
			}
		}
		spot := consumption * (price[i] - markupInclVAT)
		markup := consumption * markupInclVAT
		areaMetrics.Consumption[i] = consumption
		areaMetrics.Spot[i] = spot
		areaMetrics.Markup[i] = markup
		areaMetrics.Cost[i] = spot + markup
		areaMetrics.Estimated[i] = estimated
	}

	if def.SingleSensor() {
		baseline := cleaned[0].Series.Samples[lookbackHours-1].Value
		reading := cleaned[0].Series.Samples[gridHours-1].Value
		areaMetrics.Baseline = &baseline
		areaMetrics.MeterReading = &reading
	}
	return areaMetrics, true
}

// normalize rescales each single-sensor area so the hourly sum matches
// the authoritative meter delta. Cost columns scale by the same
// factor, which assumes cost-per-kWh is uniform across the rescaled
// hours; an inherited approximation kept on purpose.
func (s *MonthService) normalize(areas map[string]*AreaMetrics, month YearMonth) {
	for key, areaMetrics := range areas {
		if areaMetrics.Baseline == nil || areaMetrics.MeterReading == nil {
			continue
		}
		authoritative := *areaMetrics.MeterReading - *areaMetrics.Baseline
		hourlySum := areaMetrics.TotalConsumptionKWh()
		if authoritative <= 0 || hourlySum <= 0 {
			continue
		}
		if math.Abs(hourlySum-authoritative) <= normalizeToleranceKWh {
			continue
		}
		factor := authoritative / hourlySum
		scale(areaMetrics.Consumption, factor)
		scale(areaMetrics.Spot, factor)
		scale(areaMetrics.Markup, factor)
		scale(areaMetrics.Cost, factor)
		if s.logger != nil {
			s.logger.Printf("normalized %s for %s: hourly sum %.2f kWh vs meter delta %.2f kWh (factor %.4f)",
				key, month, hourlySum, authoritative, factor)
		}
	}
}

// residualMetrics derives the unallocated category from the total
// meter's hourly diffs minus the (normalized) area sums, floored at
// zero. Recomputed after normalization so reconciliation holds.
func residualMetrics(areas map[string]*AreaMetrics, totalDiff, price []float64, markupInclVAT float64) *AreaMetrics {
	residual := newAreaMetrics(report.AreaDefinition{Key: report.ResidualKey, Name: "Övrigt"}, len(totalDiff))
	for i := range totalDiff {
		var allocated float64
		for _, areaMetrics := range areas {
			allocated += areaMetrics.Consumption[i]
		}
		rest := totalDiff[i] - allocated
		if rest < 0 {
			rest = 0
		}
		spot := rest * (price[i] - markupInclVAT)
		markup := rest * markupInclVAT
		residual.Consumption[i] = rest
		residual.Spot[i] = spot
		residual.Markup[i] = markup
		residual.Cost[i] = spot + markup
	}
	return residual
}

// averageSpotExVAT is the consumption-weighted spot price ex VAT over
// hours with positive consumption.
func averageSpotExVAT(totalDiff, price []float64, markupInclVAT, vatRate float64) *float64 {
	var weighted, kwh float64
	for i, diff := range totalDiff {
		if diff <= 0 {
			continue
		}
		weighted += (price[i] - markupInclVAT) / (1 + vatRate) * diff
		kwh += diff
	}
	if kwh <= 0 {
		return nil
	}
	avg := weighted / kwh
	return &avg
}

// clippedDiff returns the hourly consumption at a grid slot, floored
// at zero: residual negative noise is zeroed rather than allowed to
// cancel against unrelated hours.
func clippedDiff(series telemetry.Series, i int) float64 {
	if i <= 0 || i >= series.Len() {
		return 0
	}
	prev, cur := series.Samples[i-1], series.Samples[i]
	if !prev.Valid || !cur.Valid {
		return 0
	}
	diff := cur.Value - prev.Value
	if diff < 0 {
		return 0
	}
	return diff
}

// priceValues forward/backward-fills the price series over the grid
// and returns the month slice. An unconfigured or silent price sensor
// yields zero prices rather than failing the month.
func priceValues(series telemetry.Series, offset, monthHours int) []float64 {
	filled := series.Clone()
	var last float64
	var seen bool
	for i, sample := range filled.Samples {
		if sample.Valid {
			last = sample.Value
			seen = true
			continue
		}
		if seen {
			filled.Set(i, last)
		}
	}
	var next float64
	seen = false
	for i := filled.Len() - 1; i >= 0; i-- {
		if filled.Samples[i].Valid {
			next = filled.Samples[i].Value
			seen = true
			continue
		}
		if seen {
			filled.Set(i, next)
		}
	}

	price := make([]float64, monthHours)
	for i := 0; i < monthHours; i++ {
		if idx := offset + i; idx < filled.Len() && filled.Samples[idx].Valid {
			price[i] = filled.Samples[idx].Value
		}
	}
	return price
}
