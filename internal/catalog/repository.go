package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository loads catalog configuration from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Revision returns the current catalog revision. The row is bumped by
// administrative config changes; a missing row counts as revision 1.
func (r *Repository) Revision(ctx context.Context) (int64, error) {
	var rev int64
	err := r.pool.QueryRow(ctx, `SELECT revision FROM catalog_revision LIMIT 1`).Scan(&rev)
	if errors.Is(err, pgx.ErrNoRows) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("catalog: revision: %w", err)
	}
	return rev, nil
}

// LoadSnapshot reads the full catalog into an immutable snapshot.
func (r *Repository) LoadSnapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{
		BoxSizes:    make(map[int64]BoxSize),
		BinTypes:    make(map[int64]BinType),
		PalletTypes: make(map[string]PalletType),
	}

	rev, err := r.Revision(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Revision = rev

	rows, err := r.pool.Query(ctx, `SELECT id, name, weight_kg FROM box_sizes ORDER BY id`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("catalog: box sizes: %w", err)
	}
	for rows.Next() {
		var b BoxSize
		if err := rows.Scan(&b.ID, &b.Name, &b.WeightKg); err != nil {
			rows.Close()
			return Snapshot{}, err
		}
		snap.BoxSizes[b.ID] = b
	}
	rows.Close()
	if rows.Err() != nil {
		return Snapshot{}, rows.Err()
	}

	rows, err = r.pool.Query(ctx, `SELECT id, name, default_weight_kg, tare_weight_kg FROM bin_types ORDER BY id`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("catalog: bin types: %w", err)
	}
	for rows.Next() {
		var b BinType
		if err := rows.Scan(&b.ID, &b.Name, &b.DefaultWeightKg, &b.TareWeightKg); err != nil {
			rows.Close()
			return Snapshot{}, err
		}
		snap.BinTypes[b.ID] = b
	}
	rows.Close()
	if rows.Err() != nil {
		return Snapshot{}, rows.Err()
	}

	rows, err = r.pool.Query(ctx, `SELECT id, name, default_capacity FROM pallet_types ORDER BY id`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("catalog: pallet types: %w", err)
	}
	var typeByID = make(map[int64]string)
	for rows.Next() {
		var pt PalletType
		if err := rows.Scan(&pt.ID, &pt.Name, &pt.DefaultCapacity); err != nil {
			rows.Close()
			return Snapshot{}, err
		}
		snap.PalletTypes[pt.Name] = pt
		typeByID[pt.ID] = pt.Name
	}
	rows.Close()
	if rows.Err() != nil {
		return Snapshot{}, rows.Err()
	}

	rows, err = r.pool.Query(ctx, `SELECT pallet_type_id, box_size_id, capacity FROM pallet_type_capacities ORDER BY pallet_type_id, position`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("catalog: capacities: %w", err)
	}
	for rows.Next() {
		var typeID int64
		var ov CapacityOverride
		if err := rows.Scan(&typeID, &ov.BoxSizeID, &ov.Capacity); err != nil {
			rows.Close()
			return Snapshot{}, err
		}
		name, ok := typeByID[typeID]
		if !ok {
			continue
		}
		pt := snap.PalletTypes[name]
		pt.Overrides = append(pt.Overrides, ov)
		snap.PalletTypes[name] = pt
	}
	rows.Close()
	if rows.Err() != nil {
		return Snapshot{}, rows.Err()
	}

	return snap, nil
}
