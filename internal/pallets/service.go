package pallets

import (
	"context"
	"fmt"
	"sort"

	"github.com/packtrack/packtrack/internal/catalog"
	"github.com/packtrack/packtrack/internal/intake"
	"github.com/packtrack/packtrack/internal/observability"
	"github.com/packtrack/packtrack/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPallet(ctx context.Context, id int64) (Pallet, error)
	ListPallets(ctx context.Context, filter ListFilter) ([]Pallet, error)
	ListPalletLots(ctx context.Context, palletID int64) ([]PalletLot, error)
}

// TxRepository exposes transactional operations used by the service. Lot rows
// are locked through here as well so a single transaction serialises pallet
// and lot mutations together.
type TxRepository interface {
	InsertPallet(ctx context.Context, pallet Pallet) (int64, error)
	GetPalletForUpdate(ctx context.Context, id int64) (Pallet, error)
	UpdatePalletState(ctx context.Context, id int64, currentBoxes int, size *string, boxSizeID *int64) error
	UpdatePalletStatus(ctx context.Context, id int64, status PalletStatus) error
	InsertPalletLot(ctx context.Context, link PalletLot) (int64, error)
	GetPalletLot(ctx context.Context, id int64) (PalletLot, error)
	DeletePalletLot(ctx context.Context, id int64) error
	ListPalletLots(ctx context.Context, palletID int64) ([]PalletLot, error)
	GetLotsForUpdate(ctx context.Context, ids []int64) (map[int64]intake.Lot, error)
	UpdateLotAllocation(ctx context.Context, lotID int64, palletizedBoxes int, status intake.LotStatus) error
}

// CatalogPort supplies the versioned configuration snapshot.
type CatalogPort interface {
	Snapshot(ctx context.Context) (catalog.Snapshot, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ListFilter narrows pallet listings.
type ListFilter struct {
	PackhouseID int64
	Status      PalletStatus
}

// Service implements pallet creation, allocation and lifecycle management.
type Service struct {
	repo    RepositoryPort
	catalog CatalogPort
	audit   AuditPort
	metrics *observability.Metrics
}

// NewService builds Service. audit and metrics may be nil.
func NewService(repo RepositoryPort, cat CatalogPort, audit AuditPort, metrics *observability.Metrics) *Service {
	return &Service{repo: repo, catalog: cat, audit: audit, metrics: metrics}
}

// CreateFromLotsInput creates one or more pallets from lot assignments.
// CapacityBoxes overrides the catalog capacity when positive.
type CreateFromLotsInput struct {
	PackhouseID        int64
	PalletTypeName     string
	CapacityBoxes      int
	Size               *string
	AllowMixedSizes    bool
	AllowMixedBoxTypes bool
	Assignments        []Assignment
	ActorID            int64
}

// AllocateInput appends assignments to an existing pallet. Capacity is
// advisory here: overfilling yields a warning, not an error.
type AllocateInput struct {
	Assignments        []Assignment
	AllowMixedSizes    bool
	AllowMixedBoxTypes bool
	ActorID            int64
}

// AllocateResult reports the updated pallet and an over-capacity warning.
type AllocateResult struct {
	Pallet  Pallet `json:"pallet"`
	Warning string `json:"warning,omitempty"`
}

// DeallocationResult reports the state after removing a pallet-lot link.
type DeallocationResult struct {
	BoxesReturned int              `json:"boxes_returned"`
	PalletStatus  PalletStatus     `json:"pallet_status"`
	CurrentBoxes  int              `json:"current_boxes"`
	LotStatus     intake.LotStatus `json:"lot_status"`
}

// PalletDetail bundles a pallet with its lot links.
type PalletDetail struct {
	Pallet Pallet      `json:"pallet"`
	Lots   []PalletLot `json:"lots"`
}

// CreateFromLots plans pallets for the given assignments and creates them in
// one transaction. Lots are locked and their palletized counters advanced;
// overflow splits a lot across consecutive pallets. Capacity is strict here:
// every created pallet holds at most the resolved capacity.
func (s *Service) CreateFromLots(ctx context.Context, input CreateFromLotsInput) ([]Pallet, error) {
	if input.PalletTypeName == "" {
		return nil, fmt.Errorf("%w: pallet type required", ErrInvalidInput)
	}
	if err := checkAssignments(input.Assignments); err != nil {
		return nil, err
	}

	snap, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	var created []Pallet
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lots, err := tx.GetLotsForUpdate(ctx, lotIDs(input.Assignments))
		if err != nil {
			return err
		}
		requested, err := checkAvailability(lots, input.Assignments)
		if err != nil {
			return err
		}

		pinnedSize, pinnedBox, err := resolvePins(lots, input.Assignments, input.Size, input.AllowMixedSizes, input.AllowMixedBoxTypes)
		if err != nil {
			return err
		}

		var boxSizeID int64
		if pinnedBox != nil {
			boxSizeID = *pinnedBox
		}
		capacity := snap.EffectiveCapacity(input.PalletTypeName, boxSizeID, input.CapacityBoxes)
		if capacity <= 0 {
			return ErrCapacityRequired
		}

		plans, err := PlanPallets(capacity, withLotSizes(lots, input.Assignments))
		if err != nil {
			return err
		}

		for _, plan := range plans {
			pallet := Pallet{
				PackhouseID:    input.PackhouseID,
				PalletTypeName: input.PalletTypeName,
				CapacityBoxes:  capacity,
				CurrentBoxes:   plan.TotalBoxes,
				Size:           pinnedSize,
				BoxSizeID:      pinnedBox,
				Status:         StatusOpen,
			}
			id, err := tx.InsertPallet(ctx, pallet)
			if err != nil {
				return err
			}
			pallet.ID = id
			for _, slice := range plan.Slices {
				if _, err := tx.InsertPalletLot(ctx, PalletLot{
					PalletID: id,
					LotID:    slice.LotID,
					BoxCount: slice.BoxCount,
					Size:     slice.Size,
				}); err != nil {
					return err
				}
			}
			created = append(created, pallet)
		}

		return advanceLots(ctx, tx, lots, requested)
	})
	if err != nil {
		return nil, err
	}

	total := 0
	for _, p := range created {
		total += p.CurrentBoxes
	}
	if s.metrics != nil {
		s.metrics.PalletsCreated.Add(float64(len(created)))
		s.metrics.BoxesAllocated.Add(float64(total))
	}
	s.recordAudit(ctx, input.ActorID, "PALLET_CREATE", created[0].ID, map[string]any{
		"pallets": len(created),
		"boxes":   total,
	})
	return created, nil
}

// AllocateToPallet appends boxes to an existing pallet. The pallet's pinned
// size and box type constrain the assignments unless the override flags are
// set. Exceeding capacity is allowed and reported as a warning.
func (s *Service) AllocateToPallet(ctx context.Context, palletID int64, input AllocateInput) (AllocateResult, error) {
	if err := checkAssignments(input.Assignments); err != nil {
		return AllocateResult{}, err
	}

	var result AllocateResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		pallet, err := tx.GetPalletForUpdate(ctx, palletID)
		if err != nil {
			return err
		}
		if !pallet.Status.CanModify() {
			return fmt.Errorf("%w: pallet %d is %s", ErrPalletImmutable, pallet.ID, pallet.Status)
		}

		lots, err := tx.GetLotsForUpdate(ctx, lotIDs(input.Assignments))
		if err != nil {
			return err
		}
		requested, err := checkAvailability(lots, input.Assignments)
		if err != nil {
			return err
		}

		size, box, err := resolvePins(lots, input.Assignments, nil, input.AllowMixedSizes, input.AllowMixedBoxTypes)
		if err != nil {
			return err
		}
		if !input.AllowMixedSizes && pallet.Size != nil && size != nil && *size != *pallet.Size {
			return fmt.Errorf("%w: pallet holds %s", ErrSizeMismatch, *pallet.Size)
		}
		if !input.AllowMixedBoxTypes && pallet.BoxSizeID != nil && box != nil && *box != *pallet.BoxSizeID {
			return fmt.Errorf("%w: pallet holds box size %d", ErrBoxTypeMismatch, *pallet.BoxSizeID)
		}
		if pallet.Size == nil {
			pallet.Size = size
		}
		if pallet.BoxSizeID == nil {
			pallet.BoxSizeID = box
		}

		total := 0
		for _, a := range input.Assignments {
			if a.BoxCount == 0 {
				continue
			}
			lot := lots[a.LotID]
			sz := a.Size
			if sz == nil {
				sz = lot.Size
			}
			if _, err := tx.InsertPalletLot(ctx, PalletLot{
				PalletID: pallet.ID,
				LotID:    a.LotID,
				BoxCount: a.BoxCount,
				Size:     sz,
			}); err != nil {
				return err
			}
			total += a.BoxCount
		}

		pallet.CurrentBoxes += total
		if err := tx.UpdatePalletState(ctx, pallet.ID, pallet.CurrentBoxes, pallet.Size, pallet.BoxSizeID); err != nil {
			return err
		}
		if err := advanceLots(ctx, tx, lots, requested); err != nil {
			return err
		}

		result.Pallet = pallet
		if pallet.CurrentBoxes > pallet.CapacityBoxes {
			result.Warning = fmt.Sprintf("pallet %d over capacity: %d/%d boxes", pallet.ID, pallet.CurrentBoxes, pallet.CapacityBoxes)
		}
		if s.metrics != nil {
			s.metrics.BoxesAllocated.Add(float64(total))
		}
		return nil
	})
	if err != nil {
		return AllocateResult{}, err
	}
	s.recordAudit(ctx, input.ActorID, "PALLET_ALLOCATE", palletID, map[string]any{
		"boxes": result.Pallet.CurrentBoxes,
	})
	return result, nil
}

// Deallocate removes one pallet-lot link, returning its boxes to the lot.
// The lot drops back to palletizing, or to created when nothing remains on
// any pallet. A pallet that is no longer full reverts to open.
func (s *Service) Deallocate(ctx context.Context, palletID, palletLotID, actorID int64) (DeallocationResult, error) {
	var result DeallocationResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		pallet, err := tx.GetPalletForUpdate(ctx, palletID)
		if err != nil {
			return err
		}
		if !pallet.Status.CanModify() {
			return fmt.Errorf("%w: pallet %d is %s", ErrPalletImmutable, pallet.ID, pallet.Status)
		}
		link, err := tx.GetPalletLot(ctx, palletLotID)
		if err != nil {
			return err
		}
		if link.PalletID != palletID {
			return fmt.Errorf("%w: assignment %d not on pallet %d", ErrInvalidInput, palletLotID, palletID)
		}

		lots, err := tx.GetLotsForUpdate(ctx, []int64{link.LotID})
		if err != nil {
			return err
		}
		lot := lots[link.LotID]

		if err := tx.DeletePalletLot(ctx, link.ID); err != nil {
			return err
		}

		pallet.CurrentBoxes -= link.BoxCount
		if pallet.CurrentBoxes < 0 {
			pallet.CurrentBoxes = 0
		}
		if pallet.Status != StatusOpen && pallet.CurrentBoxes < pallet.CapacityBoxes {
			pallet.Status = StatusOpen
			if err := tx.UpdatePalletStatus(ctx, pallet.ID, pallet.Status); err != nil {
				return err
			}
		}
		if err := tx.UpdatePalletState(ctx, pallet.ID, pallet.CurrentBoxes, pallet.Size, pallet.BoxSizeID); err != nil {
			return err
		}

		remaining := lot.PalletizedBoxes - link.BoxCount
		if remaining < 0 {
			remaining = 0
		}
		status := lot.Status
		if !status.Terminal() {
			if remaining == 0 {
				status = intake.LotStatusCreated
			} else {
				status = intake.LotStatusPalletizing
			}
		}
		if err := tx.UpdateLotAllocation(ctx, lot.ID, remaining, status); err != nil {
			return err
		}

		result = DeallocationResult{
			BoxesReturned: link.BoxCount,
			PalletStatus:  pallet.Status,
			CurrentBoxes:  pallet.CurrentBoxes,
			LotStatus:     status,
		}
		return nil
	})
	if err != nil {
		return DeallocationResult{}, err
	}
	s.recordAudit(ctx, actorID, "PALLET_DEALLOCATE", palletID, map[string]any{
		"pallet_lot_id": palletLotID,
		"boxes":         result.BoxesReturned,
	})
	return result, nil
}

// Advance moves a pallet to the next lifecycle state. Only the immediate
// successor is accepted. Advancing to exported marks fully palletized linked
// lots as exported as well.
func (s *Service) Advance(ctx context.Context, palletID int64, target PalletStatus, actorID int64) (Pallet, error) {
	var updated Pallet
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		pallet, err := tx.GetPalletForUpdate(ctx, palletID)
		if err != nil {
			return err
		}
		if !pallet.Status.CanTransitionTo(target) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, pallet.Status, target)
		}
		if target == StatusClosed && pallet.CurrentBoxes == 0 {
			return fmt.Errorf("%w: cannot close an empty pallet", ErrInvalidTransition)
		}
		if err := tx.UpdatePalletStatus(ctx, pallet.ID, target); err != nil {
			return err
		}
		pallet.Status = target
		updated = pallet

		// Storing or exporting a pallet carries its fully palletized lots
		// along; partially palletized lots still have boxes on the floor.
		var lotStatus intake.LotStatus
		switch target {
		case StatusStored:
			lotStatus = intake.LotStatusStored
		case StatusExported:
			lotStatus = intake.LotStatusExported
		default:
			return nil
		}
		links, err := tx.ListPalletLots(ctx, pallet.ID)
		if err != nil {
			return err
		}
		lots, err := tx.GetLotsForUpdate(ctx, linkLotIDs(links))
		if err != nil {
			return err
		}
		for _, lot := range lots {
			if lot.Status.Terminal() || lot.Available() > 0 {
				continue
			}
			if err := tx.UpdateLotAllocation(ctx, lot.ID, lot.PalletizedBoxes, lotStatus); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Pallet{}, err
	}
	s.recordAudit(ctx, actorID, "PALLET_ADVANCE", palletID, map[string]any{"status": string(target)})
	return updated, nil
}

// GetPallet loads a pallet with its lot links.
func (s *Service) GetPallet(ctx context.Context, id int64) (PalletDetail, error) {
	pallet, err := s.repo.GetPallet(ctx, id)
	if err != nil {
		return PalletDetail{}, err
	}
	links, err := s.repo.ListPalletLots(ctx, id)
	if err != nil {
		return PalletDetail{}, err
	}
	return PalletDetail{Pallet: pallet, Lots: links}, nil
}

// ListPallets lists pallets matching the filter.
func (s *Service) ListPallets(ctx context.Context, filter ListFilter) ([]Pallet, error) {
	return s.repo.ListPallets(ctx, filter)
}

func checkAssignments(assignments []Assignment) error {
	if len(assignments) == 0 {
		return ErrNoAssignments
	}
	positive := false
	for i, a := range assignments {
		if a.LotID <= 0 {
			return fmt.Errorf("%w: assignment %d: lot id required", ErrInvalidInput, i+1)
		}
		if a.BoxCount < 0 {
			return fmt.Errorf("%w: assignment %d: negative box count", ErrInvalidInput, i+1)
		}
		if a.BoxCount > 0 {
			positive = true
		}
	}
	if !positive {
		return ErrNoAssignments
	}
	return nil
}

func lotIDs(assignments []Assignment) []int64 {
	seen := make(map[int64]struct{}, len(assignments))
	ids := make([]int64, 0, len(assignments))
	for _, a := range assignments {
		if _, ok := seen[a.LotID]; ok {
			continue
		}
		seen[a.LotID] = struct{}{}
		ids = append(ids, a.LotID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func linkLotIDs(links []PalletLot) []int64 {
	seen := make(map[int64]struct{}, len(links))
	ids := make([]int64, 0, len(links))
	for _, l := range links {
		if _, ok := seen[l.LotID]; ok {
			continue
		}
		seen[l.LotID] = struct{}{}
		ids = append(ids, l.LotID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// checkAvailability sums the requested boxes per lot and verifies each lot
// can supply them. Returns the per-lot totals for the later counter update.
func checkAvailability(lots map[int64]intake.Lot, assignments []Assignment) (map[int64]int, error) {
	requested := make(map[int64]int, len(lots))
	for _, a := range assignments {
		requested[a.LotID] += a.BoxCount
	}
	for _, id := range sortedKeys(requested) {
		lot, ok := lots[id]
		if !ok {
			continue
		}
		if lot.Status.Terminal() {
			return nil, fmt.Errorf("%w: lot %d is %s", ErrLotNotAllocatable, id, lot.Status)
		}
		if want := requested[id]; want > lot.Available() {
			return nil, &InsufficientBoxesError{LotID: id, Requested: want, Available: lot.Available()}
		}
	}
	return requested, nil
}

// resolvePins determines the single size and box type shared by the
// assignments, enforcing uniformity unless the override flags are set. Bin
// lots carry no box size and never pin one.
func resolvePins(lots map[int64]intake.Lot, assignments []Assignment, size *string, allowMixedSizes, allowMixedBoxTypes bool) (*string, *int64, error) {
	sizes := make(map[string]struct{})
	boxes := make(map[int64]struct{})
	binLots := false
	for _, a := range assignments {
		if a.BoxCount == 0 {
			continue
		}
		lot := lots[a.LotID]
		sz := a.Size
		if sz == nil {
			sz = lot.Size
		}
		if sz != nil {
			sizes[*sz] = struct{}{}
		}
		if lot.BoxSizeID != nil {
			boxes[*lot.BoxSizeID] = struct{}{}
		} else {
			binLots = true
		}
	}
	if len(sizes) > 1 && !allowMixedSizes {
		return nil, nil, ErrMixedSizes
	}
	if (len(boxes) > 1 || (len(boxes) > 0 && binLots)) && !allowMixedBoxTypes {
		return nil, nil, ErrMixedBoxTypes
	}

	pinnedSize := size
	if pinnedSize == nil && len(sizes) == 1 {
		for sz := range sizes {
			v := sz
			pinnedSize = &v
		}
	}
	var pinnedBox *int64
	if len(boxes) == 1 && !binLots {
		for id := range boxes {
			v := id
			pinnedBox = &v
		}
	}
	return pinnedSize, pinnedBox, nil
}

// withLotSizes fills missing assignment sizes from the locked lots so the
// denormalized size lands on every pallet-lot link.
func withLotSizes(lots map[int64]intake.Lot, assignments []Assignment) []Assignment {
	out := make([]Assignment, 0, len(assignments))
	for _, a := range assignments {
		if a.Size == nil {
			if lot, ok := lots[a.LotID]; ok {
				a.Size = lot.Size
			}
		}
		out = append(out, a)
	}
	return out
}

// advanceLots bumps palletized counters and lot statuses after an allocation.
func advanceLots(ctx context.Context, tx TxRepository, lots map[int64]intake.Lot, requested map[int64]int) error {
	for _, id := range sortedKeys(requested) {
		want := requested[id]
		if want == 0 {
			continue
		}
		lot := lots[id]
		palletized := lot.PalletizedBoxes + want
		status := intake.LotStatusPalletizing
		if palletized >= lot.CartonCount {
			status = intake.LotStatusAllocated
		}
		if err := tx.UpdateLotAllocation(ctx, id, palletized, status); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[int64]int) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "pallet",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}
