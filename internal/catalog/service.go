package catalog

import (
	"context"
	"sort"
)

// RepositoryPort abstracts catalog storage for the service.
type RepositoryPort interface {
	Revision(ctx context.Context) (int64, error)
	LoadSnapshot(ctx context.Context) (Snapshot, error)
}

// Service exposes read-only catalog lookups and versioned snapshots.
type Service struct {
	repo  RepositoryPort
	cache *Cache
}

// NewService builds Service. cache may be nil.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Snapshot returns the catalog snapshot for the current revision.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	rev, err := s.repo.Revision(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	if s.cache == nil {
		return s.repo.LoadSnapshot(ctx)
	}
	return s.cache.Fetch(ctx, rev, s.repo.LoadSnapshot)
}

// BoxSizes lists box sizes ordered by id.
func (s *Service) BoxSizes(ctx context.Context) ([]BoxSize, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]BoxSize, 0, len(snap.BoxSizes))
	for _, b := range snap.BoxSizes {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// BinTypes lists bin types ordered by id.
func (s *Service) BinTypes(ctx context.Context) ([]BinType, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]BinType, 0, len(snap.BinTypes))
	for _, b := range snap.BinTypes {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PalletTypes lists pallet types with their capacity overrides, ordered by id.
func (s *Service) PalletTypes(ctx context.Context) ([]PalletType, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]PalletType, 0, len(snap.PalletTypes))
	for _, pt := range snap.PalletTypes {
		out = append(out, pt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
