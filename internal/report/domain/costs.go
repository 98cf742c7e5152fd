package report

// BuildAreaInvoice decomposes one area's consumption and its hourly
// tariff-inclusive electricity cost into a VAT-correct invoice.
// supplierCostInclVAT is the sum over the month of consumption*price,
// with the price already embedding VAT.
func BuildAreaInvoice(consumptionKWh, supplierCostInclVAT float64, rates AreaRates, cfg CostConfig) AreaInvoice {
	vat := cfg.VATRate

	elCostExVAT := supplierCostInclVAT / (1 + vat)
	supplierSubtotal := elCostExVAT
	supplierVAT := supplierSubtotal * vat
	supplierTotal := supplierSubtotal + supplierVAT

	transfer := consumptionKWh * *cfg.Grid.TransferPerKWhExVAT
	energyTax := consumptionKWh * *cfg.Grid.EnergyTaxPerKWhExVAT
	subscriptionShare := rates.SubscriptionShareInclVAT / (1 + vat)
	gridSubtotal := transfer + energyTax + subscriptionShare
	gridVAT := gridSubtotal * vat
	gridTotal := gridSubtotal + gridVAT

	return AreaInvoice{
		ConsumptionKWh: Round2(consumptionKWh),
		Supplier: SupplierLines{
			ElCostExVAT:   Round2(elCostExVAT),
			SubtotalExVAT: Round2(supplierSubtotal),
			VAT:           Round2(supplierVAT),
			TotalInclVAT:  Round2(supplierTotal),
		},
		Grid: GridLines{
			TransferFeeExVAT:       Round2(transfer),
			EnergyTaxExVAT:         Round2(energyTax),
			SubscriptionShareExVAT: Round2(subscriptionShare),
			SubtotalExVAT:          Round2(gridSubtotal),
			VAT:                    Round2(gridVAT),
			TotalInclVAT:           Round2(gridTotal),
		},
		TotalInclVAT: Round2(supplierTotal + gridTotal),
	}
}

// BuildTotalInvoice computes the property-wide bill. totalKWh is the
// authoritative total-meter delta; spotInclVAT and markupInclVAT are
// the month sums of total-meter diffs priced at spot and markup, VAT
// inclusive. Full subscription fees are added here exactly once.
func BuildTotalInvoice(totalKWh, spotInclVAT, markupInclVAT float64, cfg CostConfig) TotalInvoice {
	vat := cfg.VATRate

	spotExVAT := spotInclVAT / (1 + vat)
	markupExVAT := markupInclVAT / (1 + vat)
	elCostExVAT := spotExVAT + markupExVAT
	supplierSubtotal := elCostExVAT + cfg.Supplier.SubscriptionExVAT
	supplierVAT := supplierSubtotal * vat
	supplierTotal := supplierSubtotal + supplierVAT

	transfer := totalKWh * *cfg.Grid.TransferPerKWhExVAT
	energyTax := totalKWh * *cfg.Grid.EnergyTaxPerKWhExVAT
	gridSubscription := *cfg.Grid.SubscriptionExVAT
	gridSubtotal := transfer + energyTax + gridSubscription
	gridVAT := gridSubtotal * vat
	gridTotal := gridSubtotal + gridVAT

	return TotalInvoice{
		ConsumptionKWh: Round2(totalKWh),
		Supplier: SupplierTotalLines{
			SpotExVAT:         Round2(spotExVAT),
			MarkupExVAT:       Round2(markupExVAT),
			ElCostExVAT:       Round2(elCostExVAT),
			SubscriptionExVAT: Round2(cfg.Supplier.SubscriptionExVAT),
			SubtotalExVAT:     Round2(supplierSubtotal),
			VAT:               Round2(supplierVAT),
			TotalInclVAT:      Round2(supplierTotal),
		},
		Grid: GridTotalLines{
			TransferFeeExVAT:  Round2(transfer),
			EnergyTaxExVAT:    Round2(energyTax),
			SubscriptionExVAT: Round2(gridSubscription),
			SubtotalExVAT:     Round2(gridSubtotal),
			VAT:               Round2(gridVAT),
			TotalInclVAT:      Round2(gridTotal),
		},
		TotalInclVAT: Round2(supplierTotal + gridTotal),
	}
}
