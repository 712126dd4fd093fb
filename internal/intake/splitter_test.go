package intake

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/packtrack/packtrack/internal/catalog"
)

func testSnapshot() catalog.Snapshot {
	return catalog.Snapshot{
		Revision: 1,
		BoxSizes: map[int64]catalog.BoxSize{
			1: {ID: 1, Name: "4kg carton", WeightKg: 4},
			2: {ID: 2, Name: "10kg carton", WeightKg: 10},
		},
		BinTypes: map[int64]catalog.BinType{
			1: {ID: 1, Name: "wooden bin", DefaultWeightKg: 420, TareWeightKg: 45},
		},
		PalletTypes: map[string]catalog.PalletType{
			"standard": {ID: 1, Name: "standard", DefaultCapacity: 240,
				Overrides: []catalog.CapacityOverride{{BoxSizeID: 1, Capacity: 300}}},
		},
	}
}

func int64Ptr(v int64) *int64 { return &v }

func strPtr(v string) *string { return &v }

func TestSplitRowsCartons(t *testing.T) {
	rows := []LotRowInput{
		{Grade: "Class 1", Size: strPtr("M"), Unit: UnitCartons, BoxSizeID: int64Ptr(1), Quantity: 150},
		{Grade: "Class 2", Unit: UnitCartons, BoxSizeID: int64Ptr(2), Quantity: 10},
	}

	lots, err := SplitRows(testSnapshot(), 7, rows)
	require.NoError(t, err)
	require.Len(t, lots, 2)

	require.Equal(t, int64(7), lots[0].BatchID)
	require.Equal(t, 150, lots[0].CartonCount)
	require.InDelta(t, 600.0, lots[0].WeightKg, 0.0001)
	require.Equal(t, GradeClassTable, lots[0].GradeClass)
	require.Equal(t, LotStatusCreated, lots[0].Status)
	require.Zero(t, lots[0].PalletizedBoxes)

	require.InDelta(t, 100.0, lots[1].WeightKg, 0.0001)
	require.Equal(t, GradeClassReject, lots[1].GradeClass)
}

func TestSplitRowsBins(t *testing.T) {
	rows := []LotRowInput{
		{Grade: "Class 1", Unit: UnitBins, BinTypeID: int64Ptr(1), Quantity: 2},
	}

	lots, err := SplitRows(testSnapshot(), 1, rows)
	require.NoError(t, err)
	require.Len(t, lots, 1)
	// 2 bins x (420 - 45) net each.
	require.InDelta(t, 750.0, lots[0].WeightKg, 0.0001)
	require.Equal(t, 2, lots[0].CartonCount)
	require.Nil(t, lots[0].BoxSizeID)
	require.NotNil(t, lots[0].BinTypeID)
}

func TestSplitRowsSkipsZeroQuantity(t *testing.T) {
	rows := []LotRowInput{
		{Grade: "Class 1", Unit: UnitCartons, BoxSizeID: int64Ptr(1), Quantity: 0},
		{Grade: "Class 1", Unit: UnitCartons, BoxSizeID: int64Ptr(1), Quantity: 5},
	}
	lots, err := SplitRows(testSnapshot(), 1, rows)
	require.NoError(t, err)
	require.Len(t, lots, 1)
}

func TestSplitRowsErrors(t *testing.T) {
	snap := testSnapshot()

	_, err := SplitRows(snap, 1, nil)
	require.ErrorIs(t, err, ErrEmptyRows)

	_, err = SplitRows(snap, 1, []LotRowInput{
		{Grade: "Class 1", Unit: UnitCartons, BoxSizeID: int64Ptr(1), Quantity: 0},
	})
	require.ErrorIs(t, err, ErrEmptyRows)

	_, err = SplitRows(snap, 1, []LotRowInput{
		{Grade: "", Unit: UnitCartons, BoxSizeID: int64Ptr(1), Quantity: 5},
	})
	require.ErrorIs(t, err, ErrGradeRequired)

	_, err = SplitRows(snap, 1, []LotRowInput{
		{Grade: "Class 1", Unit: UnitCartons, Quantity: 5},
	})
	require.ErrorIs(t, err, ErrUnitFieldsRequired)

	_, err = SplitRows(snap, 1, []LotRowInput{
		{Grade: "Class 1", Unit: UnitCartons, BoxSizeID: int64Ptr(99), Quantity: 5},
	})
	require.ErrorIs(t, err, catalog.ErrUnknownBoxSize)

	_, err = SplitRows(snap, 1, []LotRowInput{
		{Grade: "Class 1", Unit: UnitBins, BinTypeID: int64Ptr(42), Quantity: 1},
	})
	require.ErrorIs(t, err, catalog.ErrUnknownBinType)

	_, err = SplitRows(snap, 1, []LotRowInput{
		{Grade: "Class 1", Unit: UnitCartons, BoxSizeID: int64Ptr(1), Quantity: -1},
	})
	require.Error(t, err)
}
