package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/Simplici0/voltquote/internal/quote"
)

const (
	sheetSummary = "Summary"
	sheetLines   = "Line Items"
	sheetSteps   = "Steps"
)

var lineHeaders = []string{
	"ID", "Description", "Class", "Quantity", "Unit",
	"Market Unit", "Obtainable Unit", "Sell Unit",
	"Obtainable Cost", "Sell Price", "Margin $", "Effective Margin",
}

var stepHeaders = []string{"#", "Category", "Label", "Formula", "Output", "Unit"}

// Workbook builds an XLSX workbook with summary, line-item and step sheets.
func Workbook(q quote.Quote) (*excelize.File, error) {
	wb := excelize.NewFile()
	if err := wb.SetSheetName(wb.GetSheetName(0), sheetSummary); err != nil {
		return nil, fmt.Errorf("rename summary sheet: %w", err)
	}
	for _, name := range []string{sheetLines, sheetSteps} {
		if _, err := wb.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	header, err := wb.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := writeSummary(wb, q); err != nil {
		return nil, err
	}
	if err := writeLines(wb, q, header); err != nil {
		return nil, err
	}
	if err := writeSteps(wb, q, header); err != nil {
		return nil, err
	}
	return wb, nil
}

// WorkbookBytes renders the workbook to an in-memory XLSX file.
func WorkbookBytes(q quote.Quote) ([]byte, error) {
	wb, err := Workbook(q)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	var buf bytes.Buffer
	if err := wb.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummary(wb *excelize.File, q quote.Quote) error {
	fin := q.Results.Financial
	rows := [][]any{
		{"Quote", q.ID},
		{"Created", q.CreatedAt.UTC().Format("2006-01-02 15:04:05")},
		{"Industry", q.Results.IndustryName},
		{"Subtype", q.Inputs.Subtype},
		{"State", q.Inputs.Location.State},
		{"Peak demand kW", q.Results.PeakDemandKW},
		{"Battery kW", q.Results.Battery.PowerKW},
		{"Battery kWh", q.Results.Battery.EnergyKWh},
		{"Obtainable total", q.Pricing.ObtainableTotal},
		{"Sell total", q.Pricing.SellTotal},
		{"Blended margin", q.Pricing.BlendedMargin},
		{"Margin band", q.Pricing.Band.Name},
		{"Needs review", q.NeedsReview()},
		{"Tax credit", fin.TaxCredit},
		{"Net cost", fin.NetCost},
		{"Annual savings", fin.AnnualSavings},
		{"25-year NPV", fin.NPV25Year},
		{"Engine version", q.Versions.Engine},
		{"Policy version", q.Versions.Policy},
		{"Checksum", q.Checksum},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := wb.SetSheetRow(sheetSummary, cell, &row); err != nil {
			return fmt.Errorf("write summary row %d: %w", i+1, err)
		}
	}
	return wb.SetColWidth(sheetSummary, "A", "B", 24)
}

func writeLines(wb *excelize.File, q quote.Quote, header int) error {
	if err := writeHeader(wb, sheetLines, lineHeaders, header); err != nil {
		return err
	}
	for i, li := range q.Pricing.LineItems {
		row := []any{
			li.ID, li.Description, string(li.ProductClass), li.Quantity, li.Unit,
			li.MarketUnitCost, li.ObtainableUnitCost, li.SellUnitPrice,
			li.ObtainableCost, li.SellPrice, li.MarginDollars, li.EffectiveMargin,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := wb.SetSheetRow(sheetLines, cell, &row); err != nil {
			return fmt.Errorf("write line %s: %w", li.ID, err)
		}
	}
	return wb.SetColWidth(sheetLines, "B", "B", 36)
}

func writeSteps(wb *excelize.File, q quote.Quote, header int) error {
	if err := writeHeader(wb, sheetSteps, stepHeaders, header); err != nil {
		return err
	}
	for i, s := range q.Steps {
		row := []any{s.Number, s.Category, s.Label, s.Formula, s.Output, s.Unit}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := wb.SetSheetRow(sheetSteps, cell, &row); err != nil {
			return fmt.Errorf("write step %d: %w", s.Number, err)
		}
	}
	return wb.SetColWidth(sheetSteps, "D", "D", 60)
}

func writeHeader(wb *excelize.File, sheet string, headers []string, style int) error {
	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := wb.SetSheetRow(sheet, "A1", &row); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	return wb.SetCellStyle(sheet, "A1", last, style)
}
