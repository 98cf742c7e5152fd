package application

import (
	"time"

	report "home-energy/internal/report/domain"
)

// AreaMetrics is the derived per-area record for one month: hourly
// consumption and its spot/markup/cost decomposition, aligned to the
// month's hour grid. Baseline and MeterReading are set for
// single-sensor areas only.
type AreaMetrics struct {
	Definition  report.AreaDefinition
	Consumption []float64
	Spot        []float64
	Markup      []float64
	Cost        []float64
	Estimated   []bool

	Baseline     *float64
	MeterReading *float64
}

func newAreaMetrics(def report.AreaDefinition, hours int) *AreaMetrics {
	return &AreaMetrics{
		Definition:  def,
		Consumption: make([]float64, hours),
		Spot:        make([]float64, hours),
		Markup:      make([]float64, hours),
		Cost:        make([]float64, hours),
		Estimated:   make([]bool, hours),
	}
}

// TotalConsumptionKWh sums the hourly consumption.
func (m *AreaMetrics) TotalConsumptionKWh() float64 { return sum(m.Consumption) }

// TotalCostInclVAT sums the hourly supplier cost, VAT inclusive.
func (m *AreaMetrics) TotalCostInclVAT() float64 { return sum(m.Cost) }

// TotalSpotInclVAT sums the hourly spot component, VAT inclusive.
func (m *AreaMetrics) TotalSpotInclVAT() float64 { return sum(m.Spot) }

// TotalMarkupInclVAT sums the hourly markup component, VAT inclusive.
func (m *AreaMetrics) TotalMarkupInclVAT() float64 { return sum(m.Markup) }

// MonthResult is the complete monthly computation: the working table
// plus derived invoices. Results are shared through the cache and must
// be treated as read-only by callers.
type MonthResult struct {
	Year  int
	Month time.Month
	Start time.Time
	End   time.Time

	Hours []time.Time
	Price []float64

	Areas    map[string]*AreaMetrics
	Residual *AreaMetrics

	TotalMeterDelta   float64
	TotalMeterReading float64

	// Invoices holds one invoice per available area plus the residual
	// category under report.ResidualKey.
	Invoices map[string]report.AreaInvoice
	Total    report.TotalInvoice

	// MeterReadings are terminal cleaned readings for single-sensor
	// areas, unrounded.
	MeterReadings map[string]float64

	AvgSpotExVAT *float64
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func scale(values []float64, factor float64) {
	for i := range values {
		values[i] *= factor
	}
}
