package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	revision int64
	snap     Snapshot
	loads    int
}

func (m *mockRepo) Revision(ctx context.Context) (int64, error) {
	return m.revision, nil
}

func (m *mockRepo) LoadSnapshot(ctx context.Context) (Snapshot, error) {
	m.loads++
	snap := m.snap
	snap.Revision = m.revision
	return snap, nil
}

func testFixture() Snapshot {
	return Snapshot{
		BoxSizes: map[int64]BoxSize{
			1: {ID: 1, Name: "4kg carton", WeightKg: 4},
			2: {ID: 2, Name: "10kg carton", WeightKg: 10},
		},
		BinTypes: map[int64]BinType{
			1: {ID: 1, Name: "wooden bin", DefaultWeightKg: 420, TareWeightKg: 45},
		},
		PalletTypes: map[string]PalletType{
			"standard": {ID: 1, Name: "standard", DefaultCapacity: 240,
				Overrides: []CapacityOverride{{BoxSizeID: 1, Capacity: 300}}},
		},
	}
}

func newTestService(t *testing.T, repo *mockRepo) (*Service, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute)
	svc := NewService(repo, cache)
	return svc, func() {
		_ = client.Close()
		mr.Close()
	}
}

func TestSnapshotCachesByRevision(t *testing.T) {
	repo := &mockRepo{revision: 1, snap: testFixture()}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()
	ctx := context.Background()

	first, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), first.Revision)
	require.Equal(t, 1, repo.loads)

	// Same revision hits the cache.
	_, err = svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, repo.loads)

	// Bumping the revision forces a reload.
	repo.revision = 2
	second, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), second.Revision)
	require.Equal(t, 2, repo.loads)
}

func TestSnapshotWithoutCache(t *testing.T) {
	repo := &mockRepo{revision: 1, snap: testFixture()}
	svc := NewService(repo, nil)

	_, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	_, err = svc.Snapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, repo.loads)
}

func TestCatalogListings(t *testing.T) {
	repo := &mockRepo{revision: 1, snap: testFixture()}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()
	ctx := context.Background()

	boxes, err := svc.BoxSizes(ctx)
	require.NoError(t, err)
	require.Len(t, boxes, 2)
	require.Equal(t, int64(1), boxes[0].ID)
	require.Equal(t, int64(2), boxes[1].ID)

	bins, err := svc.BinTypes(ctx)
	require.NoError(t, err)
	require.Len(t, bins, 1)

	types, err := svc.PalletTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 1)
	require.Equal(t, "standard", types[0].Name)
}

func TestEffectiveCapacity(t *testing.T) {
	snap := testFixture()

	// Override wins over the explicit fallback and the type default.
	require.Equal(t, 300, snap.EffectiveCapacity("standard", 1, 200))
	// No override for this box size: explicit fallback wins.
	require.Equal(t, 200, snap.EffectiveCapacity("standard", 2, 200))
	// Nothing explicit: type default.
	require.Equal(t, 240, snap.EffectiveCapacity("standard", 2, 0))
	// Unknown pallet type: fallback only.
	require.Equal(t, 100, snap.EffectiveCapacity("unknown", 1, 100))
}

func TestSnapshotWeights(t *testing.T) {
	snap := testFixture()

	w, err := snap.CartonWeightKg(1)
	require.NoError(t, err)
	require.InDelta(t, 4.0, w, 0.0001)

	_, err = snap.CartonWeightKg(99)
	require.ErrorIs(t, err, ErrUnknownBoxSize)

	n, err := snap.BinNetWeightKg(1)
	require.NoError(t, err)
	require.InDelta(t, 375.0, n, 0.0001)

	_, err = snap.BinNetWeightKg(9)
	require.ErrorIs(t, err, ErrUnknownBinType)
}
