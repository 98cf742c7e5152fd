package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"home-energy/internal/observability/metrics"
	report "home-energy/internal/report/domain"
)

// maxRangeMonths bounds an invoice range request.
const maxRangeMonths = 24

var monthNamesSV = [12]string{
	"Januari", "Februari", "Mars", "April", "Maj", "Juni",
	"Juli", "Augusti", "September", "Oktober", "November", "December",
}

// InvoiceRow is one month of an invoice range. Months with missing
// readings keep their label but carry nil figures.
type InvoiceRow struct {
	Year        int        `json:"year"`
	Month       time.Month `json:"month"`
	PeriodLabel string     `json:"period_label"`
	PeriodStart string     `json:"period_start"`
	PeriodEnd   string     `json:"period_end"`

	MeterReadingKWh *float64 `json:"meter_reading_kwh"`
	ConsumptionKWh  *float64 `json:"consumption_kwh"`
	CostPerKWh      *float64 `json:"cost_per_kwh"`
	TotalCostSEK    *float64 `json:"total_cost_sek"`
}

// RangeTotals sums the rows with known readings.
type RangeTotals struct {
	ConsumptionKWh float64 `json:"total_consumption_kwh"`
	CostSEK        float64 `json:"total_cost_sek"`
}

// InvoiceRangeResult is the multi-month invoice for one area.
type InvoiceRangeResult struct {
	AreaKey    string       `json:"area"`
	AreaName   string       `json:"area_name"`
	Rows       []InvoiceRow `json:"invoice_months"`
	GrandTotal RangeTotals  `json:"grand_total"`
}

// InvoiceRange chains monthly results for a single-sensor area: each
// month's consumption is its terminal meter reading minus the previous
// month's, with the first baseline taken from the month preceding the
// range.
func (s *MonthService) InvoiceRange(ctx context.Context, areaKey string, start, end YearMonth) (*InvoiceRangeResult, error) {
	began := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveInvoiceRange(result, time.Since(began))
	}()

	area, ok := s.areas.Get(areaKey)
	if !ok {
		result = metrics.ResultError
		return nil, report.ErrUnknownArea
	}
	if !area.SingleSensor() {
		result = metrics.ResultError
		return nil, report.ErrCompositeArea
	}
	if start.Index() > end.Index() {
		result = metrics.ResultError
		return nil, report.ErrInvalidRange
	}
	if end.Index()-start.Index() > maxRangeMonths {
		result = metrics.ResultError
		return nil, report.ErrInvalidRange
	}

	prevReading, err := s.terminalReading(ctx, areaKey, start.Prev())
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}

	out := &InvoiceRangeResult{AreaKey: areaKey, AreaName: area.Name}
	for month := start; month.Index() <= end.Index(); month = month.Next() {
		row := InvoiceRow{
			Year:        month.Year,
			Month:       month.Month,
			PeriodLabel: fmt.Sprintf("%s %d", monthNamesSV[int(month.Month)-1], month.Year),
			PeriodStart: month.Start(s.loc).Format("2006-01-02"),
			PeriodEnd:   month.Next().Start(s.loc).AddDate(0, 0, -1).Format("2006-01-02"),
		}

		monthResult, err := s.computeQuietly(ctx, month)
		if err != nil {
			result = metrics.ResultError
			return nil, err
		}

		var reading *float64
		var invoice *report.AreaInvoice
		if monthResult != nil {
			if r, ok := monthResult.MeterReadings[areaKey]; ok {
				rounded := report.Round1(r)
				reading = &rounded
			}
			if inv, ok := monthResult.Invoices[areaKey]; ok {
				invoice = &inv
			}
		}

		if reading != nil && prevReading != nil && invoice != nil {
			consumption := report.Round1(*reading - *prevReading)
			totalCost := invoice.TotalInclVAT
			costPerKWh := 0.0
			if consumption > 0 {
				costPerKWh = report.Round2(totalCost / consumption)
			}
			row.MeterReadingKWh = reading
			row.ConsumptionKWh = &consumption
			row.CostPerKWh = &costPerKWh
			row.TotalCostSEK = &totalCost

			out.GrandTotal.ConsumptionKWh += consumption
			out.GrandTotal.CostSEK += totalCost
		} else {
			row.MeterReadingKWh = reading
		}

		prevReading = reading
		out.Rows = append(out.Rows, row)
	}

	out.GrandTotal.ConsumptionKWh = report.Round1(out.GrandTotal.ConsumptionKWh)
	out.GrandTotal.CostSEK = report.Round2(out.GrandTotal.CostSEK)
	return out, nil
}

// terminalReading returns an area's rounded terminal reading for a
// month, or nil when the month has no data.
func (s *MonthService) terminalReading(ctx context.Context, areaKey string, month YearMonth) (*float64, error) {
	monthResult, err := s.computeQuietly(ctx, month)
	if err != nil || monthResult == nil {
		return nil, err
	}
	if reading, ok := monthResult.MeterReadings[areaKey]; ok {
		rounded := report.Round1(reading)
		return &rounded, nil
	}
	return nil, nil
}

// computeQuietly treats a month without data as an absent result so a
// gap does not abort the whole range.
func (s *MonthService) computeQuietly(ctx context.Context, month YearMonth) (*MonthResult, error) {
	monthResult, err := s.ComputeMonth(ctx, month)
	if err != nil {
		if errors.Is(err, report.ErrNoData) {
			return nil, nil
		}
		return nil, err
	}
	return monthResult, nil
}
