package pallets

// Slice is one lot's contribution to a planned pallet.
type Slice struct {
	LotID    int64
	BoxCount int
	Size     *string
}

// Plan describes one pallet to be created.
type Plan struct {
	Slices     []Slice
	TotalBoxes int
}

// PlanPallets packs assignments onto pallets greedily, in input order. When
// an assignment does not fit on the current pallet the remainder overflows
// onto a fresh one, so a single lot may be split across pallets but the
// caller's ordering is preserved. Zero-count assignments are skipped.
func PlanPallets(capacity int, assignments []Assignment) ([]Plan, error) {
	if capacity <= 0 {
		return nil, ErrCapacityRequired
	}

	var plans []Plan
	current := Plan{}
	for _, a := range assignments {
		remaining := a.BoxCount
		for remaining > 0 {
			room := capacity - current.TotalBoxes
			if room == 0 {
				plans = append(plans, current)
				current = Plan{}
				room = capacity
			}
			take := remaining
			if take > room {
				take = room
			}
			current.Slices = append(current.Slices, Slice{LotID: a.LotID, BoxCount: take, Size: a.Size})
			current.TotalBoxes += take
			remaining -= take
		}
	}
	if current.TotalBoxes > 0 {
		plans = append(plans, current)
	}
	if len(plans) == 0 {
		return nil, ErrNoAssignments
	}
	return plans, nil
}
