package application

import (
	"context"
	"errors"
	"log"
	"math"
	"testing"
	"time"

	report "home-energy/internal/report/domain"
	telemetry "home-energy/internal/telemetry/domain"
)

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

// fakeReader synthesizes per-sensor series from generator functions.
// Sensors without a generator return an all-missing series.
type fakeReader struct {
	generators map[string]func(telemetry.Window) telemetry.Series
	calls      int
}

func (f *fakeReader) QuerySensors(_ context.Context, sensorIDs []string, window telemetry.Window) (map[string]telemetry.Series, error) {
	f.calls++
	out := make(map[string]telemetry.Series, len(sensorIDs))
	for _, id := range sensorIDs {
		if gen, ok := f.generators[id]; ok {
			out[id] = gen(window)
		} else {
			out[id] = telemetry.NewSeries(window.Start, window.Hours())
		}
	}
	return out, nil
}

func linearSeries(base, rate float64) func(telemetry.Window) telemetry.Series {
	return func(w telemetry.Window) telemetry.Series {
		series := telemetry.NewSeries(w.Start, w.Hours())
		for i := 0; i < series.Len(); i++ {
			series.Set(i, base+rate*float64(i))
		}
		return series
	}
}

func constSeries(value float64) func(telemetry.Window) telemetry.Series {
	return func(w telemetry.Window) telemetry.Series {
		series := telemetry.NewSeries(w.Start, w.Hours())
		for i := 0; i < series.Len(); i++ {
			series.Set(i, value)
		}
		return series
	}
}

func testCosts() report.CostConfig {
	transfer := 0.2456
	tax := 0.439
	gridSub := 805.00
	return report.CostConfig{
		Areas: map[string]report.AreaRates{
			"gardshus": {SubscriptionShareInclVAT: 165.00},
			"salong":   {},
		},
		Supplier: report.SupplierRates{SubscriptionExVAT: 39.20, MarkupPerKWhExVAT: 0.068},
		Grid: report.GridRates{
			TransferPerKWhExVAT:  &transfer,
			EnergyTaxPerKWhExVAT: &tax,
			SubscriptionExVAT:    &gridSub,
		},
		VATRate: 0.25,
	}
}

func testAreas(t *testing.T) *report.AreaRegistry {
	t.Helper()
	areas, err := report.NewAreaRegistry([]report.AreaDefinition{
		{Key: "gardshus", Name: "Gårdshus", Sensors: []string{"sensor.gardshus"}, NeedsCleaning: true},
		{Key: "salong", Name: "Salong", Sensors: []string{"sensor.salong"}},
	})
	if err != nil {
		t.Fatalf("area registry: %v", err)
	}
	return areas
}

func newTestService(t *testing.T, reader telemetry.SeriesReader, costs report.CostConfig) *MonthService {
	t.Helper()
	service, err := NewMonthService(
		reader,
		testAreas(t),
		Sensors{ElectricityPrice: "sensor.electricity_price", TotalMeter: "sensor.energy_consumption"},
		costs,
		NewMonthCache(),
		fakeClock{now: time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)},
		time.UTC,
		log.New(testWriter{t}, "", 0),
	)
	if err != nil {
		t.Fatalf("month service: %v", err)
	}
	return service
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func defaultGenerators() map[string]func(telemetry.Window) telemetry.Series {
	return map[string]func(telemetry.Window) telemetry.Series{
		"sensor.gardshus":           linearSeries(1000, 1.0),
		"sensor.salong":             linearSeries(200, 0.5),
		"sensor.energy_consumption": linearSeries(5000, 3.0),
		"sensor.electricity_price":  constSeries(2.0),
	}
}

const janHours = 31 * 24

func TestComputeMonth_Reconciliation(t *testing.T) {
	reader := &fakeReader{generators: defaultGenerators()}
	service := newTestService(t, reader, testCosts())

	result, err := service.ComputeMonth(context.Background(), YearMonth{Year: 2025, Month: time.January})
	if err != nil {
		t.Fatalf("compute month: %v", err)
	}

	gardshus := result.Areas["gardshus"].TotalConsumptionKWh()
	salong := result.Areas["salong"].TotalConsumptionKWh()
	residual := result.Residual.TotalConsumptionKWh()

	if math.Abs(gardshus-janHours*1.0) > 1e-6 {
		t.Fatalf("gardshus consumption = %v, want %v", gardshus, janHours*1.0)
	}
	if math.Abs(salong-janHours*0.5) > 1e-6 {
		t.Fatalf("salong consumption = %v, want %v", salong, janHours*0.5)
	}
	if math.Abs(result.TotalMeterDelta-janHours*3.0) > 1e-6 {
		t.Fatalf("total delta = %v, want %v", result.TotalMeterDelta, janHours*3.0)
	}
	// Reconciliation: the residual absorbs exactly what the areas leave.
	sum := gardshus + salong + residual
	if math.Abs(sum-result.TotalMeterDelta) > 1e-6 {
		t.Fatalf("areas+residual = %v, total = %v", sum, result.TotalMeterDelta)
	}
	if residual < 0 {
		t.Fatalf("residual must be non-negative, got %v", residual)
	}
}

func TestComputeMonth_MeterReadings(t *testing.T) {
	reader := &fakeReader{generators: defaultGenerators()}
	service := newTestService(t, reader, testCosts())

	result, err := service.ComputeMonth(context.Background(), YearMonth{Year: 2025, Month: time.January})
	if err != nil {
		t.Fatalf("compute month: %v", err)
	}

	// The grid spans the 48h lookback plus the month; the terminal
	// reading is the last grid hour of the linear ramp.
	wantReading := 1000 + float64(48+janHours-1)
	if got := result.MeterReadings["gardshus"]; math.Abs(got-wantReading) > 1e-6 {
		t.Fatalf("gardshus reading = %v, want %v", got, wantReading)
	}
	if _, ok := result.MeterReadings["salong"]; !ok {
		t.Fatal("expected salong meter reading")
	}
}

func TestComputeMonth_InvoiceVATIdentity(t *testing.T) {
	reader := &fakeReader{generators: defaultGenerators()}
	service := newTestService(t, reader, testCosts())

	result, err := service.ComputeMonth(context.Background(), YearMonth{Year: 2025, Month: time.January})
	if err != nil {
		t.Fatalf("compute month: %v", err)
	}

	for key, invoice := range result.Invoices {
		if math.Abs(invoice.Supplier.TotalInclVAT-invoice.Supplier.SubtotalExVAT*1.25) > 0.02 {
			t.Fatalf("%s: supplier incl %v != ex %v * 1.25", key, invoice.Supplier.TotalInclVAT, invoice.Supplier.SubtotalExVAT)
		}
		if math.Abs(invoice.Grid.TotalInclVAT-invoice.Grid.SubtotalExVAT*1.25) > 0.02 {
			t.Fatalf("%s: grid incl %v != ex %v * 1.25", key, invoice.Grid.TotalInclVAT, invoice.Grid.SubtotalExVAT)
		}
		total := invoice.Supplier.TotalInclVAT + invoice.Grid.TotalInclVAT
		if math.Abs(invoice.TotalInclVAT-total) > 0.02 {
			t.Fatalf("%s: invoice total %v != %v", key, invoice.TotalInclVAT, total)
		}
	}
	if _, ok := result.Invoices[report.ResidualKey]; !ok {
		t.Fatal("expected residual invoice")
	}

	// The property-wide bill carries both full subscriptions once.
	wantSupplierSub := 39.20
	if result.Total.Supplier.SubscriptionExVAT != wantSupplierSub {
		t.Fatalf("total supplier subscription = %v, want %v", result.Total.Supplier.SubscriptionExVAT, wantSupplierSub)
	}
	if result.Total.Grid.SubscriptionExVAT != 805.00 {
		t.Fatalf("total grid subscription = %v, want 805.00", result.Total.Grid.SubscriptionExVAT)
	}
}

func TestComputeMonth_MissingGridRateFailsFast(t *testing.T) {
	costs := testCosts()
	costs.Grid.TransferPerKWhExVAT = nil
	reader := &fakeReader{generators: defaultGenerators()}
	service := newTestService(t, reader, costs)

	_, err := service.ComputeMonth(context.Background(), YearMonth{Year: 2025, Month: time.January})
	var configErr *report.ConfigError
	if !errors.As(err, &configErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if len(configErr.Missing) != 1 || configErr.Missing[0] != "grid_transfer_per_kwh_ex_vat" {
		t.Fatalf("unexpected missing fields: %v", configErr.Missing)
	}
	if reader.calls != 0 {
		t.Fatalf("config must be validated before querying, got %d calls", reader.calls)
	}
}

func TestComputeMonth_SilentAreaExcluded(t *testing.T) {
	generators := defaultGenerators()
	delete(generators, "sensor.salong")
	reader := &fakeReader{generators: generators}
	service := newTestService(t, reader, testCosts())

	result, err := service.ComputeMonth(context.Background(), YearMonth{Year: 2025, Month: time.January})
	if err != nil {
		t.Fatalf("compute month: %v", err)
	}
	if _, ok := result.Areas["salong"]; ok {
		t.Fatal("silent area must be excluded")
	}
	// Its consumption falls into the residual instead.
	wantResidual := janHours * (3.0 - 1.0)
	if got := result.Residual.TotalConsumptionKWh(); math.Abs(got-wantResidual) > 1e-6 {
		t.Fatalf("residual = %v, want %v", got, wantResidual)
	}
}

func TestComputeMonth_NoDataAtAll(t *testing.T) {
	reader := &fakeReader{generators: nil}
	service := newTestService(t, reader, testCosts())
	month := YearMonth{Year: 2025, Month: time.January}

	if _, err := service.ComputeMonth(context.Background(), month); !errors.Is(err, report.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	// Closed months cache the empty outcome.
	if _, err := service.ComputeMonth(context.Background(), month); !errors.Is(err, report.ErrNoData) {
		t.Fatalf("expected ErrNoData on second call, got %v", err)
	}
	if reader.calls != 1 {
		t.Fatalf("expected 1 query for a cached no-data month, got %d", reader.calls)
	}
}

func TestComputeMonth_ClosedMonthServedFromCache(t *testing.T) {
	reader := &fakeReader{generators: defaultGenerators()}
	service := newTestService(t, reader, testCosts())
	month := YearMonth{Year: 2025, Month: time.January}

	first, err := service.ComputeMonth(context.Background(), month)
	if err != nil {
		t.Fatalf("compute month: %v", err)
	}
	second, err := service.ComputeMonth(context.Background(), month)
	if err != nil {
		t.Fatalf("compute month (cached): %v", err)
	}
	if first != second {
		t.Fatal("expected the identical cached result")
	}
	if reader.calls != 1 {
		t.Fatalf("expected 1 query, got %d", reader.calls)
	}
}

func TestComputeMonth_EstimatedHoursFlagged(t *testing.T) {
	generators := defaultGenerators()
	// gardshus only starts reporting 10 hours into the month.
	generators["sensor.gardshus"] = func(w telemetry.Window) telemetry.Series {
		series := telemetry.NewSeries(w.Start, w.Hours())
		for i := lookbackHours + 10; i < series.Len(); i++ {
			series.Set(i, 1000+float64(i))
		}
		return series
	}
	reader := &fakeReader{generators: generators}
	service := newTestService(t, reader, testCosts())

	result, err := service.ComputeMonth(context.Background(), YearMonth{Year: 2025, Month: time.January})
	if err != nil {
		t.Fatalf("compute month: %v", err)
	}
	gardshus := result.Areas["gardshus"]
	for i := 0; i < 10; i++ {
		if !gardshus.Estimated[i] {
			t.Fatalf("month hour %d should be estimated", i)
		}
	}
	if gardshus.Estimated[20] {
		t.Fatal("genuine hour flagged as estimated")
	}
}

func TestComputeMonth_AverageSpotPrice(t *testing.T) {
	reader := &fakeReader{generators: defaultGenerators()}
	service := newTestService(t, reader, testCosts())

	result, err := service.ComputeMonth(context.Background(), YearMonth{Year: 2025, Month: time.January})
	if err != nil {
		t.Fatalf("compute month: %v", err)
	}
	if result.AvgSpotExVAT == nil {
		t.Fatal("expected average spot price")
	}
	// price 2.00 incl VAT minus markup 0.068*1.25, converted to ex VAT.
	want := (2.0 - 0.068*1.25) / 1.25
	if math.Abs(*result.AvgSpotExVAT-want) > 1e-9 {
		t.Fatalf("avg spot = %v, want %v", *result.AvgSpotExVAT, want)
	}
}
