package pallets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/packtrack/packtrack/internal/platform/httpx"
)

func TestClassifyMixedSizesAsValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	seedLot(repo, 1, 50, "M", 1)
	seedLot(repo, 2, 50, "L", 1)

	_, err := svc.CreateFromLots(ctx, CreateFromLotsInput{
		PackhouseID:    1,
		PalletTypeName: "standard",
		Assignments:    []Assignment{{LotID: 1, BoxCount: 50}, {LotID: 2, BoxCount: 50}},
	})
	require.ErrorIs(t, err, ErrMixedSizes)
	require.ErrorIs(t, classify(err), httpx.ErrValidation)
}

func TestClassifyTaxonomy(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		class error
	}{
		{"invalid input", ErrInvalidInput, httpx.ErrValidation},
		{"no assignments", ErrNoAssignments, httpx.ErrValidation},
		{"capacity required", ErrCapacityRequired, httpx.ErrValidation},
		{"mixed sizes", ErrMixedSizes, httpx.ErrValidation},
		{"mixed box types", ErrMixedBoxTypes, httpx.ErrValidation},
		{"size mismatch", ErrSizeMismatch, httpx.ErrValidation},
		{"box type mismatch", ErrBoxTypeMismatch, httpx.ErrValidation},
		{"insufficient boxes", &InsufficientBoxesError{LotID: 1, Requested: 5, Available: 2}, httpx.ErrConflict},
		{"immutable pallet", ErrPalletImmutable, httpx.ErrConflict},
		{"lot not allocatable", ErrLotNotAllocatable, httpx.ErrConflict},
		{"invalid transition", ErrInvalidTransition, httpx.ErrInvariant},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, classify(tc.err), tc.class)
		})
	}
}
