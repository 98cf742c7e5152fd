package report

import "math"

// SupplierLines is the retail supplier block of an area invoice. Areas
// do not pay the supplier's fixed subscription; that appears on the
// total invoice only.
type SupplierLines struct {
	ElCostExVAT   float64 `json:"el_cost_ex_vat"`
	SubtotalExVAT float64 `json:"subtotal_ex_vat"`
	VAT           float64 `json:"vat"`
	TotalInclVAT  float64 `json:"total_incl_vat"`
}

// GridLines is the grid operator block of an area invoice.
type GridLines struct {
	TransferFeeExVAT       float64 `json:"transfer_fee_ex_vat"`
	EnergyTaxExVAT         float64 `json:"energy_tax_ex_vat"`
	SubscriptionShareExVAT float64 `json:"subscription_share_ex_vat"`
	SubtotalExVAT          float64 `json:"subtotal_ex_vat"`
	VAT                    float64 `json:"vat"`
	TotalInclVAT           float64 `json:"total_incl_vat"`
}

// AreaInvoice apportions one area's share of the combined bill.
// Monetary values are rounded to 2 decimals at assembly; all
// intermediate arithmetic runs at full precision.
type AreaInvoice struct {
	ConsumptionKWh float64       `json:"consumption_kwh"`
	Supplier       SupplierLines `json:"supplier"`
	Grid           GridLines     `json:"grid"`
	TotalInclVAT   float64       `json:"total_incl_vat"`
}

// SupplierTotalLines is the supplier block of the property-wide
// invoice, including the full subscription and the spot/markup split.
type SupplierTotalLines struct {
	SpotExVAT         float64 `json:"spot_ex_vat"`
	MarkupExVAT       float64 `json:"markup_ex_vat"`
	ElCostExVAT       float64 `json:"el_cost_ex_vat"`
	SubscriptionExVAT float64 `json:"subscription_ex_vat"`
	SubtotalExVAT     float64 `json:"subtotal_ex_vat"`
	VAT               float64 `json:"vat"`
	TotalInclVAT      float64 `json:"total_incl_vat"`
}

// GridTotalLines is the grid block of the property-wide invoice,
// driven by the authoritative total-meter delta and the full grid
// subscription fee.
type GridTotalLines struct {
	TransferFeeExVAT  float64 `json:"transfer_fee_ex_vat"`
	EnergyTaxExVAT    float64 `json:"energy_tax_ex_vat"`
	SubscriptionExVAT float64 `json:"subscription_ex_vat"`
	SubtotalExVAT     float64 `json:"subtotal_ex_vat"`
	VAT               float64 `json:"vat"`
	TotalInclVAT      float64 `json:"total_incl_vat"`
}

// TotalInvoice is the full property bill. It is computed independently
// of the area invoices so that it matches the real combined meter and
// subscription fees; area invoices only apportion it.
type TotalInvoice struct {
	ConsumptionKWh float64            `json:"consumption_kwh"`
	Supplier       SupplierTotalLines `json:"supplier"`
	Grid           GridTotalLines     `json:"grid"`
	TotalInclVAT   float64            `json:"total_incl_vat"`
}

// Round2 rounds a monetary value to 2 decimals for presentation.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round1 rounds a meter reading or kWh figure to 1 decimal.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
