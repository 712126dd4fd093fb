package intake

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/packtrack/packtrack/internal/catalog"
	"github.com/packtrack/packtrack/internal/platform/httpx"
)

type memoryRepo struct {
	batches   map[int64]Batch
	lots      map[int64]Lot
	nextBatch int64
	nextLot   int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{batches: make(map[int64]Batch), lots: make(map[int64]Lot)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetBatch(ctx context.Context, id int64) (Batch, error) {
	b, ok := r.batches[id]
	if !ok || b.DeletedAt != nil {
		return Batch{}, fmt.Errorf("%w: batch", httpx.ErrNotFound)
	}
	return b, nil
}

func (r *memoryRepo) ListLots(ctx context.Context, batchID int64) ([]Lot, error) {
	var out []Lot
	for _, l := range r.lots {
		if l.BatchID == batchID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) GetLot(ctx context.Context, id int64) (Lot, error) {
	l, ok := r.lots[id]
	if !ok {
		return Lot{}, fmt.Errorf("%w: lot", httpx.ErrNotFound)
	}
	return l, nil
}

func (r *memoryRepo) ListOpenBatches(ctx context.Context) ([]Batch, error) {
	var out []Batch
	for _, b := range r.batches {
		if !b.Finalized && b.DeletedAt == nil {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (tx *memoryTx) InsertBatch(ctx context.Context, batch Batch) (int64, error) {
	tx.repo.nextBatch++
	batch.ID = tx.repo.nextBatch
	tx.repo.batches[batch.ID] = batch
	return batch.ID, nil
}

func (tx *memoryTx) GetBatchForUpdate(ctx context.Context, id int64) (Batch, error) {
	return tx.repo.GetBatch(ctx, id)
}

func (tx *memoryTx) UpdateBatchWeights(ctx context.Context, id int64, gross, tare float64, net *float64) error {
	b := tx.repo.batches[id]
	b.GrossWeightKg = gross
	b.TareWeightKg = tare
	b.NetWeightKg = net
	tx.repo.batches[id] = b
	return nil
}

func (tx *memoryTx) UpdateBatchWaste(ctx context.Context, id int64, wasteKg float64, reason string) error {
	b := tx.repo.batches[id]
	b.WasteKg = wasteKg
	b.WasteReason = reason
	tx.repo.batches[id] = b
	return nil
}

func (tx *memoryTx) UpdateBatchStatus(ctx context.Context, id int64, status BatchStatus) error {
	b := tx.repo.batches[id]
	b.Status = status
	tx.repo.batches[id] = b
	return nil
}

func (tx *memoryTx) SetBatchFinalized(ctx context.Context, id int64) error {
	b := tx.repo.batches[id]
	b.Finalized = true
	tx.repo.batches[id] = b
	return nil
}

func (tx *memoryTx) SoftDeleteBatch(ctx context.Context, id int64) error {
	b := tx.repo.batches[id]
	now := b.UpdatedAt
	b.DeletedAt = &now
	tx.repo.batches[id] = b
	return nil
}

func (tx *memoryTx) PurgeBatch(ctx context.Context, id int64) error {
	b, ok := tx.repo.batches[id]
	if !ok || b.DeletedAt == nil {
		return nil
	}
	for lotID, l := range tx.repo.lots {
		if l.BatchID == id {
			delete(tx.repo.lots, lotID)
		}
	}
	delete(tx.repo.batches, id)
	return nil
}

func (tx *memoryTx) ListLotsForUpdate(ctx context.Context, batchID int64) ([]Lot, error) {
	return tx.repo.ListLots(ctx, batchID)
}

func (tx *memoryTx) InsertLot(ctx context.Context, lot Lot) (int64, error) {
	tx.repo.nextLot++
	lot.ID = tx.repo.nextLot
	tx.repo.lots[lot.ID] = lot
	return lot.ID, nil
}

func (tx *memoryTx) GetLotForUpdate(ctx context.Context, id int64) (Lot, error) {
	return tx.repo.GetLot(ctx, id)
}

func (tx *memoryTx) UpdateLot(ctx context.Context, lot Lot) error {
	stored := tx.repo.lots[lot.ID]
	stored.Grade = lot.Grade
	stored.GradeClass = lot.GradeClass
	stored.Size = lot.Size
	stored.WeightKg = lot.WeightKg
	stored.WasteKg = lot.WasteKg
	tx.repo.lots[lot.ID] = stored
	return nil
}

func (tx *memoryTx) UpdateLotStatus(ctx context.Context, id int64, status LotStatus) error {
	l := tx.repo.lots[id]
	l.Status = status
	tx.repo.lots[id] = l
	return nil
}

type stubCatalog struct {
	snap catalog.Snapshot
}

func (s stubCatalog) Snapshot(ctx context.Context) (catalog.Snapshot, error) {
	return s.snap, nil
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, stubCatalog{snap: testSnapshot()}, nil)
}

func seedWeighedBatch(t *testing.T, repo *memoryRepo, svc *Service, net float64) Batch {
	t.Helper()
	ctx := context.Background()
	batch, err := svc.CreateBatch(ctx, CreateBatchInput{PackhouseID: 1, FruitType: "apples"})
	require.NoError(t, err)
	batch, err = svc.WeighBatch(ctx, batch.ID, net+50, 50, 0)
	require.NoError(t, err)
	require.NotNil(t, batch.NetWeightKg)
	require.InDelta(t, net, *batch.NetWeightKg, 0.0001)
	return batch
}

func TestCreateLotsDerivesAutoWaste(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	batch := seedWeighedBatch(t, repo, svc, 1000)

	lots, report, err := svc.CreateLots(ctx, batch.ID, []LotRowInput{
		{Grade: "Class 1", Unit: UnitCartons, BoxSizeID: int64Ptr(1), Quantity: 150}, // 600 kg
		{Grade: "Class 1", Unit: UnitCartons, BoxSizeID: int64Ptr(1), Quantity: 95},  // 380 kg
	}, 0)
	require.NoError(t, err)
	require.Len(t, lots, 2)

	// 1000 - 980 packed = 20 kg derived waste, leaving the batch balanced.
	stored, err := svc.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	require.InDelta(t, 20.0, stored.WasteKg, 0.0001)
	require.Equal(t, AutoWasteReason, stored.WasteReason)
	require.Equal(t, BatchStatusPacking, stored.Status)
	require.True(t, report.Balanced)
}

func TestCreateLotsKeepsManualWaste(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	batch := seedWeighedBatch(t, repo, svc, 1000)

	_, err := svc.UpdateBatch(ctx, batch.ID, UpdateBatchInput{
		WasteKg:     floatPtr(15),
		WasteReason: strPtr("floor sweep"),
	})
	require.NoError(t, err)

	_, report, err := svc.CreateLots(ctx, batch.ID, []LotRowInput{
		{Grade: "Class 1", Unit: UnitCartons, BoxSizeID: int64Ptr(1), Quantity: 150},
	}, 0)
	require.NoError(t, err)

	stored, err := svc.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	require.InDelta(t, 15.0, stored.WasteKg, 0.0001)
	require.Equal(t, "floor sweep", stored.WasteReason)
	require.False(t, report.Balanced)
}

func TestCloseProductionRunGate(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	batch := seedWeighedBatch(t, repo, svc, 1000)

	lots, _, err := svc.CreateLots(ctx, batch.ID, []LotRowInput{
		{Grade: "Class 1", Unit: UnitCartons, BoxSizeID: int64Ptr(1), Quantity: 250},
	}, 0)
	require.NoError(t, err)

	_, err = svc.CloseProductionRun(ctx, batch.ID, 0)
	require.ErrorIs(t, err, ErrUnallocatedBoxes)

	// Fully palletize the lot, then the close succeeds.
	l := repo.lots[lots[0].ID]
	l.PalletizedBoxes = l.CartonCount
	l.Status = LotStatusAllocated
	repo.lots[l.ID] = l

	closed, err := svc.CloseProductionRun(ctx, batch.ID, 0)
	require.NoError(t, err)
	require.Equal(t, BatchStatusComplete, closed.Status)
}

func TestCloseProductionRunSkipsReturnedLots(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	batch := seedWeighedBatch(t, repo, svc, 1000)

	lots, _, err := svc.CreateLots(ctx, batch.ID, []LotRowInput{
		{Grade: "Class 1", Unit: UnitCartons, BoxSizeID: int64Ptr(1), Quantity: 200},
		{Grade: "Class 2", Unit: UnitCartons, BoxSizeID: int64Ptr(1), Quantity: 50},
	}, 0)
	require.NoError(t, err)

	table := repo.lots[lots[0].ID]
	table.PalletizedBoxes = table.CartonCount
	table.Status = LotStatusAllocated
	repo.lots[table.ID] = table

	// The reject lot still has boxes, but returning it removes it from the gate.
	_, err = svc.ReturnLot(ctx, lots[1].ID, 0)
	require.NoError(t, err)

	_, err = svc.CloseProductionRun(ctx, batch.ID, 0)
	require.NoError(t, err)
}

func TestFinalizeGRNRequiresBalance(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	batch := seedWeighedBatch(t, repo, svc, 1000)

	lots, _, err := svc.CreateLots(ctx, batch.ID, []LotRowInput{
		{Grade: "Class 1", Unit: UnitCartons, BoxSizeID: int64Ptr(1), Quantity: 250},
	}, 0)
	require.NoError(t, err)

	l := repo.lots[lots[0].ID]
	l.PalletizedBoxes = l.CartonCount
	l.Status = LotStatusAllocated
	repo.lots[l.ID] = l
	_, err = svc.CloseProductionRun(ctx, batch.ID, 0)
	require.NoError(t, err)

	// Force an imbalance with manual waste that does not close the gap.
	_, err = svc.UpdateBatch(ctx, batch.ID, UpdateBatchInput{
		WasteKg:     floatPtr(0.0),
		WasteReason: strPtr("manual override"),
	})
	require.NoError(t, err)
	b := repo.batches[batch.ID]
	b.WasteKg = 3
	b.WasteReason = "manual override"
	repo.batches[batch.ID] = b

	_, err = svc.FinalizeGRN(ctx, batch.ID, 0)
	require.ErrorIs(t, err, ErrNotBalanced)

	b.WasteKg = 0
	b.WasteReason = AutoWasteReason
	repo.batches[batch.ID] = b
	finalized, err := svc.FinalizeGRN(ctx, batch.ID, 0)
	require.NoError(t, err)
	require.True(t, finalized.Finalized)

	// A finalized GRN refuses further mutation.
	_, err = svc.WeighBatch(ctx, batch.ID, 1100, 50, 0)
	require.ErrorIs(t, err, ErrBatchFinalized)
}

func TestFinalizeRequiresCompleteStatus(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	batch := seedWeighedBatch(t, repo, svc, 1000)

	_, err := svc.FinalizeGRN(ctx, batch.ID, 0)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReturnLotRejectClassOnly(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	batch := seedWeighedBatch(t, repo, svc, 1000)

	lots, _, err := svc.CreateLots(ctx, batch.ID, []LotRowInput{
		{Grade: "Class 1", Unit: UnitCartons, BoxSizeID: int64Ptr(1), Quantity: 100},
		{Grade: "Class 2", Unit: UnitCartons, BoxSizeID: int64Ptr(1), Quantity: 20},
	}, 0)
	require.NoError(t, err)

	_, err = svc.ReturnLot(ctx, lots[0].ID, 0)
	require.ErrorIs(t, err, ErrNotReturnable)

	returned, err := svc.ReturnLot(ctx, lots[1].ID, 0)
	require.NoError(t, err)
	require.Equal(t, LotStatusReturned, returned.Status)

	_, err = svc.ReturnLot(ctx, lots[1].ID, 0)
	require.ErrorIs(t, err, ErrLotTerminal)
}

func TestCreateLotsRejectedOnCompleteBatch(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	batch := seedWeighedBatch(t, repo, svc, 1000)

	b := repo.batches[batch.ID]
	b.Status = BatchStatusComplete
	repo.batches[batch.ID] = b

	_, _, err := svc.CreateLots(ctx, batch.ID, []LotRowInput{
		{Grade: "Class 1", Unit: UnitCartons, BoxSizeID: int64Ptr(1), Quantity: 10},
	}, 0)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDeleteAndPurgeBatch(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	batch := seedWeighedBatch(t, repo, svc, 1000)

	require.NoError(t, svc.DeleteBatch(ctx, batch.ID, 0))
	_, err := svc.GetBatch(ctx, batch.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)

	require.NoError(t, svc.PurgeBatch(ctx, batch.ID, 0))
	_, ok := repo.batches[batch.ID]
	require.False(t, ok)
}
