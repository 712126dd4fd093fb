package pallets

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/packtrack/packtrack/internal/intake"
	"github.com/packtrack/packtrack/internal/platform/httpx"
)

// Repository persists pallet data in PostgreSQL. Lot rows live in the intake
// schema but are locked and updated through this repository so allocation
// runs in a single transaction.
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
		return fmt.Errorf("pallets: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const palletColumns = `id, packhouse_id, pallet_type_name, capacity_boxes, current_boxes,
	size, box_size_id, status, created_at, updated_at`

func scanPallet(row pgx.Row) (Pallet, error) {
	var p Pallet
	err := row.Scan(&p.ID, &p.PackhouseID, &p.PalletTypeName, &p.CapacityBoxes, &p.CurrentBoxes,
		&p.Size, &p.BoxSizeID, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Pallet{}, fmt.Errorf("%w: pallet", httpx.ErrNotFound)
	}
	return p, err
}

const palletLotColumns = `id, pallet_id, lot_id, box_count, size`

func scanPalletLot(row pgx.Row) (PalletLot, error) {
	var pl PalletLot
	err := row.Scan(&pl.ID, &pl.PalletID, &pl.LotID, &pl.BoxCount, &pl.Size)
	if errors.Is(err, pgx.ErrNoRows) {
		return PalletLot{}, fmt.Errorf("%w: pallet lot", httpx.ErrNotFound)
	}
	return pl, err
}

func collectPalletLots(rows pgx.Rows) ([]PalletLot, error) {
	defer rows.Close()
	var links []PalletLot
	for rows.Next() {
		link, err := scanPalletLot(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// GetPallet loads one pallet.
func (r *Repository) GetPallet(ctx context.Context, id int64) (Pallet, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+palletColumns+` FROM pallets WHERE id = $1`, id)
	return scanPallet(row)
}

// ListPallets lists pallets filtered by packhouse and status.
func (r *Repository) ListPallets(ctx context.Context, filter ListFilter) ([]Pallet, error) {
	query := `SELECT ` + palletColumns + ` FROM pallets WHERE TRUE`
	args := []any{}
	if filter.PackhouseID > 0 {
		args = append(args, filter.PackhouseID)
		query += fmt.Sprintf(` AND packhouse_id = $%d`, len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	query += ` ORDER BY id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pallets []Pallet
	for rows.Next() {
		pallet, err := scanPallet(rows)
		if err != nil {
			return nil, err
		}
		pallets = append(pallets, pallet)
	}
	return pallets, rows.Err()
}

// ListPalletLots lists the lot links of a pallet ordered by id.
func (r *Repository) ListPalletLots(ctx context.Context, palletID int64) ([]PalletLot, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+palletLotColumns+` FROM pallet_lots WHERE pallet_id = $1 ORDER BY id`, palletID)
	if err != nil {
		return nil, err
	}
	return collectPalletLots(rows)
}

func (r *txRepo) InsertPallet(ctx context.Context, pallet Pallet) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO pallets (packhouse_id, pallet_type_name, capacity_boxes, current_boxes, size, box_size_id, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		pallet.PackhouseID, pallet.PalletTypeName, pallet.CapacityBoxes, pallet.CurrentBoxes,
		pallet.Size, pallet.BoxSizeID, pallet.Status).Scan(&id)
	return id, err
}

func (r *txRepo) GetPalletForUpdate(ctx context.Context, id int64) (Pallet, error) {
	row := r.tx.QueryRow(ctx,
		`SELECT `+palletColumns+` FROM pallets WHERE id = $1 FOR UPDATE`, id)
	return scanPallet(row)
}

func (r *txRepo) UpdatePalletState(ctx context.Context, id int64, currentBoxes int, size *string, boxSizeID *int64) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE pallets SET current_boxes = $2, size = $3, box_size_id = $4, updated_at = NOW() WHERE id = $1`,
		id, currentBoxes, size, boxSizeID)
	return err
}

func (r *txRepo) UpdatePalletStatus(ctx context.Context, id int64, status PalletStatus) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE pallets SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	return err
}

func (r *txRepo) InsertPalletLot(ctx context.Context, link PalletLot) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO pallet_lots (pallet_id, lot_id, box_count, size) VALUES ($1, $2, $3, $4) RETURNING id`,
		link.PalletID, link.LotID, link.BoxCount, link.Size).Scan(&id)
	return id, err
}

func (r *txRepo) GetPalletLot(ctx context.Context, id int64) (PalletLot, error) {
	row := r.tx.QueryRow(ctx,
		`SELECT `+palletLotColumns+` FROM pallet_lots WHERE id = $1 FOR UPDATE`, id)
	return scanPalletLot(row)
}

func (r *txRepo) DeletePalletLot(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM pallet_lots WHERE id = $1`, id)
	return err
}

func (r *txRepo) ListPalletLots(ctx context.Context, palletID int64) ([]PalletLot, error) {
	rows, err := r.tx.Query(ctx,
		`SELECT `+palletLotColumns+` FROM pallet_lots WHERE pallet_id = $1 ORDER BY id`, palletID)
	if err != nil {
		return nil, err
	}
	return collectPalletLots(rows)
}

const lotColumns = `id, batch_id, grade, grade_class, size, box_size_id, bin_type_id,
	carton_count, weight_kg, waste_kg, palletized_boxes, status, created_at, updated_at`

// GetLotsForUpdate locks the given lots in ascending id order. Every
// requested id must exist.
func (r *txRepo) GetLotsForUpdate(ctx context.Context, ids []int64) (map[int64]intake.Lot, error) {
	rows, err := r.tx.Query(ctx,
		`SELECT `+lotColumns+` FROM lots WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lots := make(map[int64]intake.Lot, len(ids))
	for rows.Next() {
		var l intake.Lot
		if err := rows.Scan(&l.ID, &l.BatchID, &l.Grade, &l.GradeClass, &l.Size, &l.BoxSizeID,
			&l.BinTypeID, &l.CartonCount, &l.WeightKg, &l.WasteKg, &l.PalletizedBoxes,
			&l.Status, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		lots[l.ID] = l
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := lots[id]; !ok {
			return nil, fmt.Errorf("%w: lot %d", httpx.ErrNotFound, id)
		}
	}
	return lots, nil
}

func (r *txRepo) UpdateLotAllocation(ctx context.Context, lotID int64, palletizedBoxes int, status intake.LotStatus) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE lots SET palletized_boxes = $2, status = $3, updated_at = NOW() WHERE id = $1`,
		lotID, palletizedBoxes, status)
	return err
}
