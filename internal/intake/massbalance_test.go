package intake

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func TestComputeBalanceWithinTolerance(t *testing.T) {
	batch := Batch{NetWeightKg: floatPtr(1000), WasteKg: 20}
	lots := []Lot{
		{WeightKg: 600},
		{WeightKg: 380},
	}

	report := ComputeBalance(batch, lots)
	require.InDelta(t, 1000.0, report.AccountedKg, 0.0001)
	require.InDelta(t, 0.0, report.DiffKg, 0.0001)
	require.True(t, report.Balanced)
}

func TestComputeBalanceToleranceBoundary(t *testing.T) {
	lots := []Lot{{WeightKg: 999.51}}

	report := ComputeBalance(Batch{NetWeightKg: floatPtr(1000)}, lots)
	require.True(t, report.Balanced, "0.49 kg off is inside tolerance")

	report = ComputeBalance(Batch{NetWeightKg: floatPtr(1000)}, []Lot{{WeightKg: 999.5}})
	require.False(t, report.Balanced, "exactly 0.5 kg off is outside tolerance")
}

func TestComputeBalanceNoNetWeight(t *testing.T) {
	report := ComputeBalance(Batch{}, []Lot{{WeightKg: 100}})
	require.False(t, report.Balanced)
	require.InDelta(t, -100.0, report.DiffKg, 0.0001)
}

func TestComputeBalanceCountsLotWaste(t *testing.T) {
	batch := Batch{NetWeightKg: floatPtr(500)}
	lots := []Lot{
		{WeightKg: 450, WasteKg: 30},
		{WeightKg: 20},
	}
	report := ComputeBalance(batch, lots)
	require.InDelta(t, 500.0, report.AccountedKg, 0.0001)
	require.True(t, report.Balanced)
}

func TestAutoWasteKg(t *testing.T) {
	lots := []Lot{{WeightKg: 600}, {WeightKg: 380}}
	require.InDelta(t, 20.0, AutoWasteKg(1000, lots), 0.0001)

	// Lots heavier than intake never produce negative waste.
	require.InDelta(t, 0.0, AutoWasteKg(900, lots), 0.0001)
}
