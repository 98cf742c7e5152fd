package interfaces

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"home-energy/internal/audit"
	"home-energy/internal/auth"
	billingapp "home-energy/internal/billing/application"
	"home-energy/internal/observability/metrics"
	"home-energy/internal/report/application"
	report "home-energy/internal/report/domain"
	telemetry "home-energy/internal/telemetry/domain"
)

// ReportHandler serves the monthly report, invoice and telemetry
// endpoints.
type ReportHandler struct {
	service *application.MonthService
	billing *billingapp.Service
	reader  telemetry.SeriesReader
	audit   audit.Logger
	loc     *time.Location
	logger  *log.Logger
}

// NewReportHandler constructs a handler. billing and audit are
// optional; without billing, invoice exports are refused.
func NewReportHandler(
	service *application.MonthService,
	billing *billingapp.Service,
	reader telemetry.SeriesReader,
	auditLogger audit.Logger,
	loc *time.Location,
	logger *log.Logger,
) (*ReportHandler, error) {
	if service == nil {
		return nil, errors.New("report handler: nil service")
	}
	if loc == nil {
		return nil, errors.New("report handler: nil location")
	}
	return &ReportHandler{
		service: service,
		billing: billing,
		reader:  reader,
		audit:   auditLogger,
		loc:     loc,
		logger:  logger,
	}, nil
}

// ServeHTTP routes the report API.
func (h *ReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/reports/monthly":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleMonthly(w, r)
	case r.URL.Path == "/api/v1/reports/invoice":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleInvoiceRange(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/reports/invoice/export."):
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleInvoiceExport(w, r)
	case r.URL.Path == "/api/v1/cache/clear":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleCacheClear(w, r)
	case r.URL.Path == "/api/v1/sensors":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleSensors(w)
	case r.URL.Path == "/api/v1/energy/history":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleHistory(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type hourlyRow struct {
	Time         string             `json:"time"`
	PriceInclVAT float64            `json:"price_incl_vat"`
	Areas        map[string]float64 `json:"areas_kwh"`
	ResidualKWh  float64            `json:"residual_kwh"`
	Estimated    map[string]bool    `json:"estimated,omitempty"`
}

type areaSummary struct {
	Name           string   `json:"name"`
	ConsumptionKWh float64  `json:"consumption_kwh"`
	SpotExVAT      float64  `json:"spot_ex_vat"`
	MarkupExVAT    float64  `json:"markup_ex_vat"`
	CostInclVAT    float64  `json:"cost_incl_vat"`
	EstimatedHours int      `json:"estimated_hours"`
	MeterReading   *float64 `json:"meter_reading,omitempty"`
}

type rateSummary struct {
	SupplierSubscriptionExVAT float64  `json:"supplier_subscription_ex_vat"`
	SupplierMarkupPerKWhExVAT float64  `json:"supplier_markup_per_kwh_ex_vat"`
	GridTransferPerKWhExVAT   *float64 `json:"grid_transfer_per_kwh_ex_vat"`
	GridEnergyTaxPerKWhExVAT  *float64 `json:"grid_energy_tax_per_kwh_ex_vat"`
	GridSubscriptionExVAT     *float64 `json:"grid_subscription_ex_vat"`
	VATRate                   float64  `json:"vat_rate"`
}

type monthlyResponse struct {
	Year  int    `json:"year"`
	Month int    `json:"month"`
	Start string `json:"period_start"`
	End   string `json:"period_end"`

	Areas    map[string]areaSummary `json:"areas"`
	Residual areaSummary            `json:"residual"`

	TotalMeterDeltaKWh float64 `json:"total_meter_delta_kwh"`
	TotalMeterReading  float64 `json:"total_meter_reading"`

	Invoices map[string]report.AreaInvoice `json:"invoices"`
	Total    report.TotalInvoice           `json:"total_invoice"`

	AvgSpotExVAT *float64 `json:"avg_spot_price_ex_vat,omitempty"`

	Rates rateSummary `json:"rates"`

	Hourly []hourlyRow `json:"hourly,omitempty"`
}

func (h *ReportHandler) handleMonthly(w http.ResponseWriter, r *http.Request) {
	month, err := parseYearMonth(r.URL.Query().Get("year"), r.URL.Query().Get("month"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.service.ComputeMonth(r.Context(), month)
	if err != nil {
		writeReportError(w, err)
		return
	}

	resp := monthlyResponse{
		Year:               result.Year,
		Month:              int(result.Month),
		Start:              result.Start.Format(time.RFC3339),
		End:                result.End.Format(time.RFC3339),
		Areas:              make(map[string]areaSummary, len(result.Areas)),
		TotalMeterDeltaKWh: report.Round1(result.TotalMeterDelta),
		TotalMeterReading:  report.Round1(result.TotalMeterReading),
		Invoices:           result.Invoices,
		Total:              result.Total,
		AvgSpotExVAT:       result.AvgSpotExVAT,
	}
	costs := h.service.Costs()
	resp.Rates = rateSummary{
		SupplierSubscriptionExVAT: costs.Supplier.SubscriptionExVAT,
		SupplierMarkupPerKWhExVAT: costs.Supplier.MarkupPerKWhExVAT,
		GridTransferPerKWhExVAT:   costs.Grid.TransferPerKWhExVAT,
		GridEnergyTaxPerKWhExVAT:  costs.Grid.EnergyTaxPerKWhExVAT,
		GridSubscriptionExVAT:     costs.Grid.SubscriptionExVAT,
		VATRate:                   costs.VATRate,
	}
	vat := costs.VATRate
	resp.Residual = summarize(result.Residual, vat)
	for key, area := range result.Areas {
		resp.Areas[key] = summarize(area, vat)
	}

	if r.URL.Query().Get("hourly") == "true" {
		resp.Hourly = hourlyRows(result)
	}

	writeJSON(w, resp)
}

func summarize(m *application.AreaMetrics, vat float64) areaSummary {
	summary := areaSummary{
		Name:           m.Definition.Name,
		ConsumptionKWh: report.Round1(m.TotalConsumptionKWh()),
		SpotExVAT:      report.Round2(m.TotalSpotInclVAT() / (1 + vat)),
		MarkupExVAT:    report.Round2(m.TotalMarkupInclVAT() / (1 + vat)),
		CostInclVAT:    report.Round2(m.TotalCostInclVAT()),
	}
	for _, estimated := range m.Estimated {
		if estimated {
			summary.EstimatedHours++
		}
	}
	if m.MeterReading != nil {
		rounded := report.Round1(*m.MeterReading)
		summary.MeterReading = &rounded
	}
	return summary
}

func hourlyRows(result *application.MonthResult) []hourlyRow {
	rows := make([]hourlyRow, len(result.Hours))
	for i, hour := range result.Hours {
		row := hourlyRow{
			Time:         hour.Format(time.RFC3339),
			PriceInclVAT: result.Price[i],
			Areas:        make(map[string]float64, len(result.Areas)),
			ResidualKWh:  result.Residual.Consumption[i],
		}
		for key, area := range result.Areas {
			row.Areas[key] = area.Consumption[i]
			if area.Estimated[i] {
				if row.Estimated == nil {
					row.Estimated = make(map[string]bool)
				}
				row.Estimated[key] = true
			}
		}
		rows[i] = row
	}
	return rows
}

func (h *ReportHandler) handleInvoiceRange(w http.ResponseWriter, r *http.Request) {
	area, start, end, err := parseInvoiceParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	result, err := h.service.InvoiceRange(r.Context(), area, start, end)
	if err != nil {
		writeReportError(w, err)
		return
	}
	writeJSON(w, result)
}

func (h *ReportHandler) handleInvoiceExport(w http.ResponseWriter, r *http.Request) {
	format := strings.TrimPrefix(r.URL.Path, "/api/v1/reports/invoice/export.")
	if format != "pdf" && format != "xlsx" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if h.billing == nil {
		http.Error(w, "invoice export not configured", http.StatusServiceUnavailable)
		return
	}

	area, start, end, err := parseInvoiceParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	began := time.Now()
	result, err := h.service.InvoiceRange(r.Context(), area, start, end)
	if err != nil {
		metrics.ObserveInvoiceExport(format, metrics.ResultError, time.Since(began))
		writeReportError(w, err)
		return
	}

	issued, err := h.billing.Issue(
		r.Context(), area,
		start.Start(h.loc), end.Next().Start(h.loc),
		result.GrandTotal.CostSEK, format,
	)
	if err != nil {
		metrics.ObserveInvoiceExport(format, metrics.ResultError, time.Since(began))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var payload []byte
	switch format {
	case "pdf":
		payload, err = BuildInvoicePDF(result, issued)
	case "xlsx":
		payload, err = BuildInvoiceXLSX(result, issued)
	}
	if err != nil {
		metrics.ObserveInvoiceExport(format, metrics.ResultError, time.Since(began))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	metrics.ObserveInvoiceExport(format, metrics.ResultSuccess, time.Since(began))

	h.logAudit(r, "invoice.export", area, fmt.Sprintf(`{"format":%q,"invoice_number":%d,"start":%q,"end":%q}`,
		format, issued.Number, start.String(), end.String()))

	filename := fmt.Sprintf("invoice-%d-%s.%s", issued.Number, area, format)
	if format == "pdf" {
		w.Header().Set("Content-Type", "application/pdf")
	} else {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(payload)
}

func (h *ReportHandler) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	count := h.service.ClearCache()
	h.logAudit(r, "cache.clear", "month_cache", fmt.Sprintf(`{"entries_cleared":%d}`, count))
	writeJSON(w, map[string]int{"entries_cleared": count})
}

func (h *ReportHandler) handleSensors(w http.ResponseWriter) {
	type areaSensors struct {
		Key     string   `json:"key"`
		Name    string   `json:"name"`
		Sensors []string `json:"sensors"`
	}
	areas := h.service.Areas().All()
	out := struct {
		Areas   []areaSensors `json:"areas"`
		Sensors []string      `json:"sensors"`
	}{Sensors: h.service.SensorIDs()}
	for _, area := range areas {
		out.Areas = append(out.Areas, areaSensors{Key: area.Key, Name: area.Name, Sensors: area.Sensors})
	}
	writeJSON(w, out)
}

func (h *ReportHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		http.Error(w, "history not configured", http.StatusServiceUnavailable)
		return
	}
	start, err := time.ParseInLocation("2006-01-02", r.URL.Query().Get("start"), h.loc)
	if err != nil {
		http.Error(w, "start must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	end, err := time.ParseInLocation("2006-01-02", r.URL.Query().Get("end"), h.loc)
	if err != nil {
		http.Error(w, "end must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	end = end.AddDate(0, 0, 1)
	if !end.After(start) {
		http.Error(w, "end must not be before start", http.StatusBadRequest)
		return
	}

	window := telemetry.Window{Start: start, End: end}
	raw, err := h.reader.QuerySensors(r.Context(), h.service.SensorIDs(), window)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	type historyPoint struct {
		Time  string   `json:"time"`
		Value *float64 `json:"value"`
	}
	out := make(map[string][]historyPoint, len(raw))
	for sensorID, series := range raw {
		points := make([]historyPoint, series.Len())
		for i := range series.Samples {
			point := historyPoint{Time: series.HourAt(i).In(h.loc).Format(time.RFC3339)}
			if series.Samples[i].Valid {
				value := series.Samples[i].Value
				point.Value = &value
			}
			points[i] = point
		}
		out[sensorID] = points
	}
	writeJSON(w, out)
}

func (h *ReportHandler) logAudit(r *http.Request, action, resourceID, metadata string) {
	if h.audit == nil {
		return
	}
	entry := audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "report",
		ResourceID:   resourceID,
		Metadata:     json.RawMessage(metadata),
		IP:           r.RemoteAddr,
		UserAgent:    r.UserAgent(),
	}
	if err := h.audit.Log(r.Context(), entry); err != nil && h.logger != nil {
		h.logger.Printf("audit log failed: %v", err)
	}
}

func parseYearMonth(yearStr, monthStr string) (application.YearMonth, error) {
	year, err := strconv.Atoi(yearStr)
	if err != nil || year < 2020 || year > 2100 {
		return application.YearMonth{}, errors.New("year must be between 2020 and 2100")
	}
	month, err := strconv.Atoi(monthStr)
	if err != nil || month < 1 || month > 12 {
		return application.YearMonth{}, errors.New("month must be between 1 and 12")
	}
	return application.YearMonth{Year: year, Month: time.Month(month)}, nil
}

func parseInvoiceParams(r *http.Request) (string, application.YearMonth, application.YearMonth, error) {
	area := r.URL.Query().Get("area")
	if area == "" {
		return "", application.YearMonth{}, application.YearMonth{}, errors.New("area is required")
	}
	start, err := parseMonthParam(r.URL.Query().Get("start"))
	if err != nil {
		return "", application.YearMonth{}, application.YearMonth{}, fmt.Errorf("start: %w", err)
	}
	end, err := parseMonthParam(r.URL.Query().Get("end"))
	if err != nil {
		return "", application.YearMonth{}, application.YearMonth{}, fmt.Errorf("end: %w", err)
	}
	return area, start, end, nil
}

func parseMonthParam(value string) (application.YearMonth, error) {
	parsed, err := time.Parse("2006-01", value)
	if err != nil {
		return application.YearMonth{}, errors.New("expected YYYY-MM")
	}
	return application.YearMonth{Year: parsed.Year(), Month: parsed.Month()}, nil
}

func writeReportError(w http.ResponseWriter, err error) {
	var configErr *report.ConfigError
	switch {
	case errors.As(err, &configErr):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "missing cost configuration",
			"missing": configErr.Missing,
		})
	case errors.Is(err, report.ErrNoData):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, report.ErrUnknownArea):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, report.ErrInvalidRange), errors.Is(err, report.ErrCompositeArea):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
