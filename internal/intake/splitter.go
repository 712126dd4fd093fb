package intake

import (
	"fmt"

	"github.com/packtrack/packtrack/internal/catalog"
)

// LotRowInput is one row of a lot split request.
type LotRowInput struct {
	Grade     string  `json:"grade"`
	Size      *string `json:"size,omitempty"`
	Unit      LotUnit `json:"unit"`
	BoxSizeID *int64  `json:"box_size_id,omitempty"`
	BinTypeID *int64  `json:"bin_type_id,omitempty"`
	Quantity  int     `json:"quantity"`
}

// SplitRows turns row specifications into lots, deriving weights from the
// catalog snapshot. Zero-quantity rows are skipped. Each returned lot starts
// at status created with nothing palletized.
func SplitRows(snap catalog.Snapshot, batchID int64, rows []LotRowInput) ([]Lot, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyRows
	}

	var lots []Lot
	for i, row := range rows {
		if row.Quantity == 0 {
			continue
		}
		if row.Quantity < 0 {
			return nil, fmt.Errorf("row %d: %w: quantity must be positive", i+1, ErrUnitFieldsRequired)
		}
		if row.Grade == "" {
			return nil, fmt.Errorf("row %d: %w", i+1, ErrGradeRequired)
		}

		lot := Lot{
			BatchID:     batchID,
			Grade:       row.Grade,
			GradeClass:  ClassifyGrade(row.Grade),
			Size:        row.Size,
			CartonCount: row.Quantity,
			Status:      LotStatusCreated,
		}

		switch row.Unit {
		case UnitCartons:
			if row.BoxSizeID == nil {
				return nil, fmt.Errorf("row %d: %w", i+1, ErrUnitFieldsRequired)
			}
			perCarton, err := snap.CartonWeightKg(*row.BoxSizeID)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+1, err)
			}
			lot.BoxSizeID = row.BoxSizeID
			lot.WeightKg = float64(row.Quantity) * perCarton
		case UnitBins:
			if row.BinTypeID == nil {
				return nil, fmt.Errorf("row %d: %w", i+1, ErrUnitFieldsRequired)
			}
			perBin, err := snap.BinNetWeightKg(*row.BinTypeID)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+1, err)
			}
			lot.BinTypeID = row.BinTypeID
			lot.WeightKg = float64(row.Quantity) * perBin
		default:
			return nil, fmt.Errorf("row %d: %w: unknown unit %q", i+1, ErrUnitFieldsRequired, row.Unit)
		}

		lots = append(lots, lot)
	}

	if len(lots) == 0 {
		return nil, ErrEmptyRows
	}
	return lots, nil
}
