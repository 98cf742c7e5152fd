package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	billingapp "home-energy/internal/billing/application"
	"home-energy/internal/report/application"
)

// BuildInvoicePDF renders an invoice range as a PDF document.
func BuildInvoicePDF(result *application.InvoiceRangeResult, issued *billingapp.Issued) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	// Swedish labels need the cp1252 translator with the core fonts.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Faktura")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	if issued != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Fakturanummer: %d", issued.Number))
		pdf.Ln(5)
		if issued.Recipient != nil {
			pdf.Cell(0, 6, tr(fmt.Sprintf("Mottagare: %s", issued.Recipient.Name)))
			pdf.Ln(5)
		}
		pdf.Cell(0, 6, tr(fmt.Sprintf("Utfärdad: %s", issued.IssuedAt.Format(time.RFC3339))))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, tr(fmt.Sprintf("Område: %s", result.AreaName)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(45, 6, "Period", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, tr("Mätarställning"), "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, tr("Förbrukning (kWh)"), "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Pris (kr/kWh)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Kostnad (kr)", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, row := range result.Rows {
		pdf.CellFormat(45, 6, tr(row.PeriodLabel), "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, formatOptional(row.MeterReadingKWh, "%.1f"), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, formatOptional(row.ConsumptionKWh, "%.1f"), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, formatOptional(row.CostPerKWh, "%.2f"), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, formatOptional(row.TotalCostSEK, "%.2f"), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Total förbrukning: %.1f kWh", result.GrandTotal.ConsumptionKWh)))
	pdf.Ln(5)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Totalt att betala: %.2f kr", result.GrandTotal.CostSEK)))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildInvoiceXLSX renders an invoice range as a spreadsheet.
func BuildInvoiceXLSX(result *application.InvoiceRangeResult, issued *billingapp.Issued) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "faktura"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "Faktura")
	if issued != nil {
		_ = f.SetCellValue(sheet, "A2", "Fakturanummer")
		_ = f.SetCellValue(sheet, "B2", issued.Number)
		if issued.Recipient != nil {
			_ = f.SetCellValue(sheet, "A3", "Mottagare")
			_ = f.SetCellValue(sheet, "B3", issued.Recipient.Name)
		}
	}
	_ = f.SetCellValue(sheet, "A4", "Område")
	_ = f.SetCellValue(sheet, "B4", result.AreaName)

	_ = f.SetCellValue(sheet, "A6", "Period")
	_ = f.SetCellValue(sheet, "B6", "Mätarställning")
	_ = f.SetCellValue(sheet, "C6", "Förbrukning (kWh)")
	_ = f.SetCellValue(sheet, "D6", "Pris (kr/kWh)")
	_ = f.SetCellValue(sheet, "E6", "Kostnad (kr)")
	for i, invoiceRow := range result.Rows {
		row := i + 7
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), invoiceRow.PeriodLabel)
		setOptional(f, sheet, fmt.Sprintf("B%d", row), invoiceRow.MeterReadingKWh)
		setOptional(f, sheet, fmt.Sprintf("C%d", row), invoiceRow.ConsumptionKWh)
		setOptional(f, sheet, fmt.Sprintf("D%d", row), invoiceRow.CostPerKWh)
		setOptional(f, sheet, fmt.Sprintf("E%d", row), invoiceRow.TotalCostSEK)
	}

	totalRow := len(result.Rows) + 8
	_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", totalRow), "Totalt")
	_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", totalRow), result.GrandTotal.ConsumptionKWh)
	_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", totalRow), result.GrandTotal.CostSEK)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatOptional(value *float64, layout string) string {
	if value == nil {
		return "-"
	}
	return fmt.Sprintf(layout, *value)
}

func setOptional(f *excelize.File, sheet, cell string, value *float64) {
	if value == nil {
		return
	}
	_ = f.SetCellValue(sheet, cell, *value)
}
