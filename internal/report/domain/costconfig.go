package report

// AreaRates carries the per-area pieces of the tariff.
type AreaRates struct {
	// SubscriptionShareInclVAT is the area's fixed contribution to the
	// grid subscription, stored VAT inclusive as it appears on the bill.
	SubscriptionShareInclVAT float64
}

// SupplierRates are the retail electricity supplier's rates, ex VAT.
type SupplierRates struct {
	SubscriptionExVAT float64
	MarkupPerKWhExVAT float64
}

// GridRates are the grid operator's rates. The per-kWh fees and the
// subscription are required; a nil field means the option was never
// configured and invoices must not be produced from guesses.
type GridRates struct {
	TransferPerKWhExVAT  *float64
	EnergyTaxPerKWhExVAT *float64
	SubscriptionExVAT    *float64
}

// CostConfig is the immutable nested rate structure loaded once per
// process and treated as read-only input to every calculation.
type CostConfig struct {
	Areas    map[string]AreaRates
	Supplier SupplierRates
	Grid     GridRates
	VATRate  float64
}

// Validate reports all missing required fields at once.
func (c CostConfig) Validate() error {
	var missing []string
	if c.Grid.TransferPerKWhExVAT == nil {
		missing = append(missing, "grid_transfer_per_kwh_ex_vat")
	}
	if c.Grid.EnergyTaxPerKWhExVAT == nil {
		missing = append(missing, "grid_energy_tax_per_kwh_ex_vat")
	}
	if c.Grid.SubscriptionExVAT == nil {
		missing = append(missing, "grid_subscription_ex_vat")
	}
	if c.VATRate <= 0 {
		missing = append(missing, "vat_rate")
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}

// AreaRatesFor returns the configured rates for an area, defaulting to
// a zero subscription share. The residual category always gets zero.
func (c CostConfig) AreaRatesFor(key string) AreaRates {
	if rates, ok := c.Areas[key]; ok {
		return rates
	}
	return AreaRates{}
}
