// Package report renders intake data as downloadable workbooks.
package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/packtrack/packtrack/internal/intake"
)

// BuildBalanceWorkbook renders one batch's lots and mass balance as an xlsx
// workbook. The summary block sits below the lot table so packhouse clerks
// can eyeball the reconciliation next to its inputs.
func BuildBalanceWorkbook(batch intake.Batch, lots []intake.Lot, balance intake.BalanceReport) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	header := []interface{}{
		"lot_id", "grade", "grade_class", "size", "cartons", "weight_kg", "waste_kg", "palletized_boxes", "status",
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("report: header: %w", err)
	}

	row := 2
	for _, lot := range lots {
		size := ""
		if lot.Size != nil {
			size = *lot.Size
		}
		excelRow := []interface{}{
			lot.ID,
			lot.Grade,
			string(lot.GradeClass),
			size,
			lot.CartonCount,
			lot.WeightKg,
			lot.WasteKg,
			lot.PalletizedBoxes,
			string(lot.Status),
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, fmt.Errorf("report: cell: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &excelRow); err != nil {
			return nil, fmt.Errorf("report: lot row: %w", err)
		}
		row++
	}

	net := 0.0
	if batch.NetWeightKg != nil {
		net = *batch.NetWeightKg
	}
	summary := [][]interface{}{
		{"batch", batch.Reference},
		{"fruit_type", batch.FruitType},
		{"status", string(batch.Status)},
		{"net_weight_kg", net},
		{"lot_weight_kg", balance.LotWeightKg},
		{"lot_waste_kg", balance.LotWasteKg},
		{"batch_waste_kg", balance.BatchWasteKg},
		{"accounted_kg", balance.AccountedKg},
		{"diff_kg", balance.DiffKg},
		{"balanced", balance.Balanced},
	}
	row++ // blank spacer row
	for _, line := range summary {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, fmt.Errorf("report: cell: %w", err)
		}
		entry := line
		if err := f.SetSheetRow(sheet, cell, &entry); err != nil {
			return nil, fmt.Errorf("report: summary row: %w", err)
		}
		row++
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("report: write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
