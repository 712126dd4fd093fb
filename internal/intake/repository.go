package intake

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/packtrack/packtrack/internal/platform/httpx"
)

// Repository persists intake data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a RepeatableRead transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("intake: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const batchColumns = `id, packhouse_id, reference, fruit_type, gross_weight_kg, tare_weight_kg,
	net_weight_kg, waste_kg, waste_reason, status, finalized, created_at, updated_at, deleted_at`

func scanBatch(row pgx.Row) (Batch, error) {
	var b Batch
	err := row.Scan(&b.ID, &b.PackhouseID, &b.Reference, &b.FruitType, &b.GrossWeightKg,
		&b.TareWeightKg, &b.NetWeightKg, &b.WasteKg, &b.WasteReason, &b.Status,
		&b.Finalized, &b.CreatedAt, &b.UpdatedAt, &b.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Batch{}, fmt.Errorf("%w: batch", httpx.ErrNotFound)
	}
	return b, err
}

const lotColumns = `id, batch_id, grade, grade_class, size, box_size_id, bin_type_id,
	carton_count, weight_kg, waste_kg, palletized_boxes, status, created_at, updated_at`

func scanLot(row pgx.Row) (Lot, error) {
	var l Lot
	err := row.Scan(&l.ID, &l.BatchID, &l.Grade, &l.GradeClass, &l.Size, &l.BoxSizeID,
		&l.BinTypeID, &l.CartonCount, &l.WeightKg, &l.WasteKg, &l.PalletizedBoxes,
		&l.Status, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lot{}, fmt.Errorf("%w: lot", httpx.ErrNotFound)
	}
	return l, err
}

func collectLots(rows pgx.Rows) ([]Lot, error) {
	defer rows.Close()
	var lots []Lot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

// GetBatch loads a batch excluding soft-deleted rows.
func (r *Repository) GetBatch(ctx context.Context, id int64) (Batch, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE id = $1 AND deleted_at IS NULL`, id)
	return scanBatch(row)
}

// ListLots loads all lots of a batch ordered by id.
func (r *Repository) ListLots(ctx context.Context, batchID int64) ([]Lot, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+lotColumns+` FROM lots WHERE batch_id = $1 ORDER BY id`, batchID)
	if err != nil {
		return nil, err
	}
	return collectLots(rows)
}

// GetLot loads a single lot.
func (r *Repository) GetLot(ctx context.Context, id int64) (Lot, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+lotColumns+` FROM lots WHERE id = $1`, id)
	return scanLot(row)
}

// ListOpenBatches returns non-finalized, non-deleted batches.
func (r *Repository) ListOpenBatches(ctx context.Context) ([]Batch, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE finalized = FALSE AND deleted_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var batches []Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

func (r *txRepo) InsertBatch(ctx context.Context, batch Batch) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO batches (packhouse_id, reference, fruit_type, gross_weight_kg, tare_weight_kg, net_weight_kg, waste_kg, waste_reason, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		batch.PackhouseID, batch.Reference, batch.FruitType, batch.GrossWeightKg,
		batch.TareWeightKg, batch.NetWeightKg, batch.WasteKg, batch.WasteReason, batch.Status).Scan(&id)
	return id, err
}

func (r *txRepo) GetBatchForUpdate(ctx context.Context, id int64) (Batch, error) {
	row := r.tx.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id)
	return scanBatch(row)
}

func (r *txRepo) UpdateBatchWeights(ctx context.Context, id int64, gross, tare float64, net *float64) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE batches SET gross_weight_kg = $2, tare_weight_kg = $3, net_weight_kg = $4, updated_at = NOW() WHERE id = $1`,
		id, gross, tare, net)
	return err
}

func (r *txRepo) UpdateBatchWaste(ctx context.Context, id int64, wasteKg float64, reason string) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE batches SET waste_kg = $2, waste_reason = $3, updated_at = NOW() WHERE id = $1`,
		id, wasteKg, reason)
	return err
}

func (r *txRepo) UpdateBatchStatus(ctx context.Context, id int64, status BatchStatus) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE batches SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	return err
}

func (r *txRepo) SetBatchFinalized(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE batches SET finalized = TRUE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *txRepo) SoftDeleteBatch(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE batches SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	return err
}

func (r *txRepo) PurgeBatch(ctx context.Context, id int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM lots WHERE batch_id = $1`, id); err != nil {
		return err
	}
	_, err := r.tx.Exec(ctx, `DELETE FROM batches WHERE id = $1 AND deleted_at IS NOT NULL`, id)
	return err
}

func (r *txRepo) ListLotsForUpdate(ctx context.Context, batchID int64) ([]Lot, error) {
	rows, err := r.tx.Query(ctx,
		`SELECT `+lotColumns+` FROM lots WHERE batch_id = $1 ORDER BY id FOR UPDATE`, batchID)
	if err != nil {
		return nil, err
	}
	return collectLots(rows)
}

func (r *txRepo) InsertLot(ctx context.Context, lot Lot) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO lots (batch_id, grade, grade_class, size, box_size_id, bin_type_id, carton_count, weight_kg, waste_kg, palletized_boxes, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		lot.BatchID, lot.Grade, lot.GradeClass, lot.Size, lot.BoxSizeID, lot.BinTypeID,
		lot.CartonCount, lot.WeightKg, lot.WasteKg, lot.PalletizedBoxes, lot.Status).Scan(&id)
	return id, err
}

func (r *txRepo) GetLotForUpdate(ctx context.Context, id int64) (Lot, error) {
	row := r.tx.QueryRow(ctx,
		`SELECT `+lotColumns+` FROM lots WHERE id = $1 FOR UPDATE`, id)
	return scanLot(row)
}

func (r *txRepo) UpdateLot(ctx context.Context, lot Lot) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE lots SET grade = $2, grade_class = $3, size = $4, weight_kg = $5, waste_kg = $6, updated_at = NOW() WHERE id = $1`,
		lot.ID, lot.Grade, lot.GradeClass, lot.Size, lot.WeightKg, lot.WasteKg)
	return err
}

func (r *txRepo) UpdateLotStatus(ctx context.Context, id int64, status LotStatus) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE lots SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	return err
}
