package intake

import "math"

// BalanceToleranceKg is the fixed mass-balance tolerance. It absorbs scale
// rounding and is deliberately not configurable.
const BalanceToleranceKg = 0.5

// AutoWasteReason marks waste derived by the balance recompute rather than
// entered manually.
const AutoWasteReason = "Auto-calculated balance"

// BalanceReport is the outcome of reconciling a batch against its lots.
type BalanceReport struct {
	NetWeightKg  float64 `json:"net_weight_kg"`
	LotWeightKg  float64 `json:"lot_weight_kg"`
	LotWasteKg   float64 `json:"lot_waste_kg"`
	BatchWasteKg float64 `json:"batch_waste_kg"`
	AccountedKg  float64 `json:"accounted_kg"`
	DiffKg       float64 `json:"diff_kg"`
	Balanced     bool    `json:"balanced"`
}

// ComputeBalance reconciles intake net weight against packed lot weight and
// recorded waste. A batch without a net weight is never balanced.
func ComputeBalance(batch Batch, lots []Lot) BalanceReport {
	report := BalanceReport{BatchWasteKg: batch.WasteKg}
	for _, lot := range lots {
		report.LotWeightKg += lot.WeightKg
		report.LotWasteKg += lot.WasteKg
	}
	report.AccountedKg = report.LotWeightKg + report.LotWasteKg + report.BatchWasteKg
	if batch.NetWeightKg == nil {
		report.DiffKg = -report.AccountedKg
		return report
	}
	report.NetWeightKg = *batch.NetWeightKg
	report.DiffKg = report.NetWeightKg - report.AccountedKg
	report.Balanced = math.Abs(report.DiffKg) < BalanceToleranceKg
	return report
}

// AutoWasteKg derives the waste needed to keep the batch in balance after lot
// creation. Lots overweighting the intake yield zero, never negative waste.
func AutoWasteKg(netWeightKg float64, lots []Lot) float64 {
	remaining := netWeightKg
	for _, lot := range lots {
		remaining -= lot.WeightKg + lot.WasteKg
	}
	return math.Max(0, remaining)
}
