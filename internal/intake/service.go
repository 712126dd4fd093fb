package intake

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/packtrack/packtrack/internal/catalog"
	"github.com/packtrack/packtrack/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBatch(ctx context.Context, id int64) (Batch, error)
	ListLots(ctx context.Context, batchID int64) ([]Lot, error)
	GetLot(ctx context.Context, id int64) (Lot, error)
	ListOpenBatches(ctx context.Context) ([]Batch, error)
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertBatch(ctx context.Context, batch Batch) (int64, error)
	GetBatchForUpdate(ctx context.Context, id int64) (Batch, error)
	UpdateBatchWeights(ctx context.Context, id int64, gross, tare float64, net *float64) error
	UpdateBatchWaste(ctx context.Context, id int64, wasteKg float64, reason string) error
	UpdateBatchStatus(ctx context.Context, id int64, status BatchStatus) error
	SetBatchFinalized(ctx context.Context, id int64) error
	SoftDeleteBatch(ctx context.Context, id int64) error
	PurgeBatch(ctx context.Context, id int64) error
	ListLotsForUpdate(ctx context.Context, batchID int64) ([]Lot, error)
	InsertLot(ctx context.Context, lot Lot) (int64, error)
	GetLotForUpdate(ctx context.Context, id int64) (Lot, error)
	UpdateLot(ctx context.Context, lot Lot) error
	UpdateLotStatus(ctx context.Context, id int64, status LotStatus) error
}

// CatalogPort supplies the versioned configuration snapshot.
type CatalogPort interface {
	Snapshot(ctx context.Context) (catalog.Snapshot, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates intake, lot splitting and mass-balance gating.
type Service struct {
	repo    RepositoryPort
	catalog CatalogPort
	audit   AuditPort
}

// NewService builds Service. audit may be nil.
func NewService(repo RepositoryPort, cat CatalogPort, audit AuditPort) *Service {
	return &Service{repo: repo, catalog: cat, audit: audit}
}

// CreateBatchInput registers a new intake delivery.
type CreateBatchInput struct {
	PackhouseID   int64
	FruitType     string
	GrossWeightKg float64
	TareWeightKg  float64
	ActorID       int64
}

// CreateBatch registers a GRN. Net weight is derived when gross and tare are
// both known, otherwise it stays unset until weighing.
func (s *Service) CreateBatch(ctx context.Context, input CreateBatchInput) (Batch, error) {
	if input.FruitType == "" {
		return Batch{}, fmt.Errorf("%w: fruit type required", ErrInvalidInput)
	}
	if input.GrossWeightKg < 0 || input.TareWeightKg < 0 || (input.GrossWeightKg > 0 && input.TareWeightKg > input.GrossWeightKg) {
		return Batch{}, fmt.Errorf("%w: gross %.2f tare %.2f", ErrInvalidInput, input.GrossWeightKg, input.TareWeightKg)
	}

	batch := Batch{
		PackhouseID:   input.PackhouseID,
		Reference:     grnReference(),
		FruitType:     input.FruitType,
		GrossWeightKg: input.GrossWeightKg,
		TareWeightKg:  input.TareWeightKg,
		Status:        BatchStatusReceived,
	}
	if input.GrossWeightKg > 0 {
		net := input.GrossWeightKg - input.TareWeightKg
		batch.NetWeightKg = &net
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertBatch(ctx, batch)
		if err != nil {
			return err
		}
		batch.ID = id
		return nil
	})
	if err != nil {
		return Batch{}, err
	}
	s.recordAudit(ctx, input.ActorID, "BATCH_CREATE", batch.ID, map[string]any{"reference": batch.Reference})
	return batch, nil
}

// WeighBatch records gross and tare weights and derives the net weight.
func (s *Service) WeighBatch(ctx context.Context, batchID int64, gross, tare float64, actorID int64) (Batch, error) {
	if gross <= 0 || tare < 0 || tare > gross {
		return Batch{}, fmt.Errorf("%w: gross %.2f tare %.2f", ErrInvalidInput, gross, tare)
	}
	var updated Batch
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		batch, err := tx.GetBatchForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if batch.Finalized {
			return ErrBatchFinalized
		}
		net := gross - tare
		if err := tx.UpdateBatchWeights(ctx, batchID, gross, tare, &net); err != nil {
			return err
		}
		batch.GrossWeightKg = gross
		batch.TareWeightKg = tare
		batch.NetWeightKg = &net
		updated = batch
		return nil
	})
	if err != nil {
		return Batch{}, err
	}
	s.recordAudit(ctx, actorID, "BATCH_WEIGH", batchID, map[string]any{"gross": gross, "tare": tare})
	return updated, nil
}

// CreateLots splits the batch into graded lots and recomputes auto-waste so
// the batch stays in balance without a manual entry.
func (s *Service) CreateLots(ctx context.Context, batchID int64, rows []LotRowInput, actorID int64) ([]Lot, BalanceReport, error) {
	snap, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, BalanceReport{}, err
	}

	var created []Lot
	var report BalanceReport
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		batch, err := tx.GetBatchForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if batch.Finalized {
			return ErrBatchFinalized
		}
		if batch.Status == BatchStatusComplete || batch.Status == BatchStatusRejected {
			return fmt.Errorf("%w: cannot split lots while %s", ErrInvalidTransition, batch.Status)
		}

		lots, err := SplitRows(snap, batchID, rows)
		if err != nil {
			return err
		}
		for i := range lots {
			id, err := tx.InsertLot(ctx, lots[i])
			if err != nil {
				return err
			}
			lots[i].ID = id
		}
		created = lots

		if batch.Status != BatchStatusPacking {
			if err := tx.UpdateBatchStatus(ctx, batchID, BatchStatusPacking); err != nil {
				return err
			}
			batch.Status = BatchStatusPacking
		}

		all, err := tx.ListLotsForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		batch, err = s.recomputeAutoWaste(ctx, tx, batch, all)
		if err != nil {
			return err
		}
		report = ComputeBalance(batch, all)
		return nil
	})
	if err != nil {
		return nil, BalanceReport{}, err
	}
	s.recordAudit(ctx, actorID, "LOTS_CREATE", batchID, map[string]any{"count": len(created)})
	return created, report, nil
}

// UpdateBatchInput patches manual waste fields.
type UpdateBatchInput struct {
	WasteKg     *float64
	WasteReason *string
	ActorID     int64
}

// UpdateBatch records manual waste against the batch.
func (s *Service) UpdateBatch(ctx context.Context, batchID int64, input UpdateBatchInput) (Batch, error) {
	var updated Batch
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		batch, err := tx.GetBatchForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if batch.Finalized {
			return ErrBatchFinalized
		}
		waste := batch.WasteKg
		reason := batch.WasteReason
		if input.WasteKg != nil {
			if *input.WasteKg < 0 {
				return fmt.Errorf("%w: waste must be non-negative", ErrInvalidInput)
			}
			waste = *input.WasteKg
		}
		if input.WasteReason != nil {
			reason = *input.WasteReason
		}
		if err := tx.UpdateBatchWaste(ctx, batchID, waste, reason); err != nil {
			return err
		}
		batch.WasteKg = waste
		batch.WasteReason = reason
		updated = batch
		return nil
	})
	if err != nil {
		return Batch{}, err
	}
	s.recordAudit(ctx, input.ActorID, "BATCH_UPDATE", batchID, map[string]any{"waste_kg": updated.WasteKg})
	return updated, nil
}

// UpdateLotInput patches manual lot fields.
type UpdateLotInput struct {
	Grade    *string
	Size     *string
	WeightKg *float64
	WasteKg  *float64
	ActorID  int64
}

// UpdateLot applies manual edits to a lot and recomputes the batch balance.
func (s *Service) UpdateLot(ctx context.Context, lotID int64, input UpdateLotInput) (Lot, error) {
	var updated Lot
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lot, err := tx.GetLotForUpdate(ctx, lotID)
		if err != nil {
			return err
		}
		if lot.Status.Terminal() {
			return ErrLotTerminal
		}
		batch, err := tx.GetBatchForUpdate(ctx, lot.BatchID)
		if err != nil {
			return err
		}
		if batch.Finalized {
			return ErrBatchFinalized
		}
		if input.Grade != nil {
			if strings.TrimSpace(*input.Grade) == "" {
				return ErrGradeRequired
			}
			lot.Grade = *input.Grade
			lot.GradeClass = ClassifyGrade(*input.Grade)
		}
		if input.Size != nil {
			lot.Size = input.Size
		}
		if input.WeightKg != nil {
			if *input.WeightKg < 0 {
				return fmt.Errorf("%w: lot weight must be non-negative", ErrInvalidInput)
			}
			lot.WeightKg = *input.WeightKg
		}
		if input.WasteKg != nil {
			if *input.WasteKg < 0 {
				return fmt.Errorf("%w: lot waste must be non-negative", ErrInvalidInput)
			}
			lot.WasteKg = *input.WasteKg
		}
		if err := tx.UpdateLot(ctx, lot); err != nil {
			return err
		}
		all, err := tx.ListLotsForUpdate(ctx, lot.BatchID)
		if err != nil {
			return err
		}
		if _, err := s.recomputeAutoWaste(ctx, tx, batch, all); err != nil {
			return err
		}
		updated = lot
		return nil
	})
	if err != nil {
		return Lot{}, err
	}
	s.recordAudit(ctx, input.ActorID, "LOT_UPDATE", lotID, nil)
	return updated, nil
}

// ReturnLot moves a reject-class lot into the terminal returned state. The
// transition is legal from any non-terminal state regardless of allocation.
func (s *Service) ReturnLot(ctx context.Context, lotID int64, actorID int64) (Lot, error) {
	var updated Lot
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lot, err := tx.GetLotForUpdate(ctx, lotID)
		if err != nil {
			return err
		}
		if lot.Status.Terminal() {
			return ErrLotTerminal
		}
		if lot.GradeClass != GradeClassReject {
			return ErrNotReturnable
		}
		if err := tx.UpdateLotStatus(ctx, lotID, LotStatusReturned); err != nil {
			return err
		}
		lot.Status = LotStatusReturned
		updated = lot
		return nil
	})
	if err != nil {
		return Lot{}, err
	}
	s.recordAudit(ctx, actorID, "LOT_RETURN", lotID, map[string]any{"grade": updated.Grade})
	return updated, nil
}

// Balance reconciles the batch against its lots without mutating anything.
func (s *Service) Balance(ctx context.Context, batchID int64) (BalanceReport, error) {
	batch, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return BalanceReport{}, err
	}
	lots, err := s.repo.ListLots(ctx, batchID)
	if err != nil {
		return BalanceReport{}, err
	}
	return ComputeBalance(batch, lots), nil
}

// CloseProductionRun completes the batch once every active lot is fully
// palletized. Returned lots no longer count toward availability.
func (s *Service) CloseProductionRun(ctx context.Context, batchID int64, actorID int64) (Batch, error) {
	var updated Batch
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		batch, err := tx.GetBatchForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if batch.Finalized {
			return ErrBatchFinalized
		}
		if !batch.Status.CanTransitionTo(BatchStatusComplete) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, batch.Status, BatchStatusComplete)
		}
		lots, err := tx.ListLotsForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		var outstanding []string
		for _, lot := range lots {
			if lot.Status == LotStatusReturned {
				continue
			}
			if lot.Available() > 0 {
				outstanding = append(outstanding, fmt.Sprintf("lot %d has %d boxes left", lot.ID, lot.Available()))
			}
		}
		if len(outstanding) > 0 {
			return fmt.Errorf("%w: %s", ErrUnallocatedBoxes, strings.Join(outstanding, "; "))
		}
		if err := tx.UpdateBatchStatus(ctx, batchID, BatchStatusComplete); err != nil {
			return err
		}
		batch.Status = BatchStatusComplete
		updated = batch
		return nil
	})
	if err != nil {
		return Batch{}, err
	}
	s.recordAudit(ctx, actorID, "RUN_CLOSE", batchID, nil)
	return updated, nil
}

// FinalizeGRN marks a complete batch as finalized once the mass balance is
// within tolerance. Rejected otherwise, citing the outstanding difference.
func (s *Service) FinalizeGRN(ctx context.Context, batchID int64, actorID int64) (Batch, error) {
	var updated Batch
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		batch, err := tx.GetBatchForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if batch.Finalized {
			return ErrBatchFinalized
		}
		if batch.Status != BatchStatusComplete {
			return fmt.Errorf("%w: finalize requires a complete batch, got %s", ErrInvalidTransition, batch.Status)
		}
		lots, err := tx.ListLotsForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		report := ComputeBalance(batch, lots)
		if !report.Balanced {
			return fmt.Errorf("%w: %.2f kg unaccounted", ErrNotBalanced, report.DiffKg)
		}
		if err := tx.SetBatchFinalized(ctx, batchID); err != nil {
			return err
		}
		batch.Finalized = true
		updated = batch
		return nil
	})
	if err != nil {
		return Batch{}, err
	}
	s.recordAudit(ctx, actorID, "GRN_FINALIZE", batchID, nil)
	return updated, nil
}

// DeleteBatch soft-deletes a batch.
func (s *Service) DeleteBatch(ctx context.Context, batchID int64, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		batch, err := tx.GetBatchForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if batch.Finalized {
			return ErrBatchFinalized
		}
		return tx.SoftDeleteBatch(ctx, batchID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "BATCH_DELETE", batchID, nil)
	return nil
}

// PurgeBatch permanently removes a soft-deleted batch and its lots.
func (s *Service) PurgeBatch(ctx context.Context, batchID int64, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.PurgeBatch(ctx, batchID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "BATCH_PURGE", batchID, nil)
	return nil
}

// GetBatch returns a batch by id.
func (s *Service) GetBatch(ctx context.Context, batchID int64) (Batch, error) {
	return s.repo.GetBatch(ctx, batchID)
}

// ListLots returns the lots of a batch.
func (s *Service) ListLots(ctx context.Context, batchID int64) ([]Lot, error) {
	return s.repo.ListLots(ctx, batchID)
}

// ListOpenBatches returns batches that are not yet finalized, for the
// balance integrity scan.
func (s *Service) ListOpenBatches(ctx context.Context) ([]Batch, error) {
	return s.repo.ListOpenBatches(ctx)
}

// recomputeAutoWaste writes derived waste back to the batch. Manual waste
// entries are never overwritten; only absent or previously derived values.
func (s *Service) recomputeAutoWaste(ctx context.Context, tx TxRepository, batch Batch, lots []Lot) (Batch, error) {
	if batch.NetWeightKg == nil {
		return batch, nil
	}
	if batch.WasteKg != 0 && batch.WasteReason != AutoWasteReason {
		return batch, nil
	}
	waste := AutoWasteKg(*batch.NetWeightKg, lots)
	if err := tx.UpdateBatchWaste(ctx, batch.ID, waste, AutoWasteReason); err != nil {
		return Batch{}, err
	}
	batch.WasteKg = waste
	batch.WasteReason = AutoWasteReason
	return batch, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "intake",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
		At:       time.Now().UTC(),
	})
}

func grnReference() string {
	return "GRN-" + strings.ToUpper(uuid.NewString()[:8])
}
