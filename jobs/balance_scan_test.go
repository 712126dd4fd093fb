package jobs

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/packtrack/packtrack/internal/intake"
	jobmetrics "github.com/packtrack/packtrack/internal/jobs"
)

type stubIntake struct {
	batches []intake.Batch
	lots    map[int64][]intake.Lot
	scanned []int64
}

func (s *stubIntake) ListOpenBatches(ctx context.Context) ([]intake.Batch, error) {
	return s.batches, nil
}

func (s *stubIntake) ListLots(ctx context.Context, batchID int64) ([]intake.Lot, error) {
	s.scanned = append(s.scanned, batchID)
	return s.lots[batchID], nil
}

func floatPtr(v float64) *float64 { return &v }

func TestBalanceScanFlagsDriftedBatches(t *testing.T) {
	stub := &stubIntake{
		batches: []intake.Batch{
			{ID: 1, PackhouseID: 1, Reference: "GRN-A", NetWeightKg: floatPtr(1000)},
			{ID: 2, PackhouseID: 1, Reference: "GRN-B", NetWeightKg: floatPtr(500)},
			{ID: 3, PackhouseID: 2, Reference: "GRN-C"}, // unweighed, skipped
		},
		lots: map[int64][]intake.Lot{
			1: {{WeightKg: 600}, {WeightKg: 380}}, // 20 kg short
			2: {{WeightKg: 500}},                  // balanced
		},
	}
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	job := NewBalanceScanJob(stub, nil, metrics)

	task, err := NewBalanceScanTask(BalanceScanPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	// Only the weighed batches were scanned, and only the drifted one counted.
	require.Equal(t, []int64{1, 2}, stub.scanned)
	require.Equal(t, 1, testutil.CollectAndCount(metrics.Unbalanced))
	require.InDelta(t, 1.0, testutil.ToFloat64(metrics.Unbalanced.WithLabelValues("1")), 0.0001)
}

func TestBalanceScanScopedToPackhouse(t *testing.T) {
	stub := &stubIntake{
		batches: []intake.Batch{
			{ID: 1, PackhouseID: 1, NetWeightKg: floatPtr(100)},
			{ID: 2, PackhouseID: 2, NetWeightKg: floatPtr(100)},
		},
		lots: map[int64][]intake.Lot{
			1: {{WeightKg: 100}},
			2: nil, // would be flagged if scanned
		},
	}
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	job := NewBalanceScanJob(stub, nil, metrics)

	task, err := NewBalanceScanTask(BalanceScanPayload{PackhouseID: 1})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	// The out-of-scope packhouse was never touched and nothing was counted.
	require.Equal(t, []int64{1}, stub.scanned)
	require.Equal(t, 0, testutil.CollectAndCount(metrics.Unbalanced))
}
