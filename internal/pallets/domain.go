package pallets

import (
	"errors"
	"fmt"
	"time"
)

// PalletStatus enumerates pallet lifecycle states. The lifecycle is linear:
// open, closed, stored, allocated, loaded, exported. No skipping, no cycles.
type PalletStatus string

const (
	// StatusOpen accepts allocations.
	StatusOpen PalletStatus = "open"
	// StatusClosed is wrapped but still in the packhouse.
	StatusClosed PalletStatus = "closed"
	// StatusStored sits in cold storage.
	StatusStored PalletStatus = "stored"
	// StatusAllocated is committed to an export order.
	StatusAllocated PalletStatus = "allocated"
	// StatusLoaded is on a truck or container. Immutable from here on.
	StatusLoaded PalletStatus = "loaded"
	// StatusExported left the facility. Terminal.
	StatusExported PalletStatus = "exported"
)

var palletLifecycle = []PalletStatus{
	StatusOpen, StatusClosed, StatusStored, StatusAllocated, StatusLoaded, StatusExported,
}

// Next returns the single legal successor state, if any.
func (s PalletStatus) Next() (PalletStatus, bool) {
	for i, st := range palletLifecycle {
		if st == s && i+1 < len(palletLifecycle) {
			return palletLifecycle[i+1], true
		}
	}
	return "", false
}

// CanTransitionTo permits only the immediate successor.
func (s PalletStatus) CanTransitionTo(next PalletStatus) bool {
	succ, ok := s.Next()
	return ok && succ == next
}

// CanModify reports whether allocation, deallocation and field edits are
// still permitted.
func (s PalletStatus) CanModify() bool {
	return s != StatusLoaded && s != StatusExported
}

// Pallet is a capacity-bounded physical unit. Size and BoxSizeID are pinned
// by the first allocation and constrain later ones unless overridden.
type Pallet struct {
	ID             int64        `json:"id"`
	PackhouseID    int64        `json:"packhouse_id"`
	PalletTypeName string       `json:"pallet_type_name"`
	CapacityBoxes  int          `json:"capacity_boxes"`
	CurrentBoxes   int          `json:"current_boxes"`
	Size           *string      `json:"size,omitempty"`
	BoxSizeID      *int64       `json:"box_size_id,omitempty"`
	Status         PalletStatus `json:"status"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// PalletLot links boxes of one lot to one pallet. Size is denormalized from
// the lot at assignment time.
type PalletLot struct {
	ID       int64   `json:"id"`
	PalletID int64   `json:"pallet_id"`
	LotID    int64   `json:"lot_id"`
	BoxCount int     `json:"box_count"`
	Size     *string `json:"size,omitempty"`
}

// Assignment requests boxes of one lot, in caller-supplied order. Size
// overrides the lot's size for uniformity checks when set.
type Assignment struct {
	LotID    int64   `json:"lot_id"`
	BoxCount int     `json:"box_count"`
	Size     *string `json:"size,omitempty"`
}

// Sentinel errors for allocation operations.
var (
	// ErrInvalidInput rejects malformed fields before any mutation.
	ErrInvalidInput = errors.New("pallets: invalid input")
	// ErrNoAssignments rejects an empty assignment list.
	ErrNoAssignments = errors.New("pallets: at least one assignment required")
	// ErrCapacityRequired rejects a create without a resolvable capacity.
	ErrCapacityRequired = errors.New("pallets: capacity must be positive")
	// ErrMixedSizes rejects distinct sizes without the override flag.
	ErrMixedSizes = errors.New("pallets: assignments mix fruit sizes")
	// ErrMixedBoxTypes rejects distinct box sizes without the override flag.
	ErrMixedBoxTypes = errors.New("pallets: assignments mix box types")
	// ErrPalletImmutable rejects mutation of a loaded or exported pallet.
	ErrPalletImmutable = errors.New("pallets: pallet is loaded or exported")
	// ErrInvalidTransition rejects lifecycle skips or reversals.
	ErrInvalidTransition = errors.New("pallets: invalid status transition")
	// ErrLotNotAllocatable rejects boxes from returned or exported lots.
	ErrLotNotAllocatable = errors.New("pallets: lot is not allocatable")
	// ErrSizeMismatch rejects an append that breaks the pallet's pinned size.
	ErrSizeMismatch = errors.New("pallets: size differs from pallet")
	// ErrBoxTypeMismatch rejects an append that breaks the pinned box type.
	ErrBoxTypeMismatch = errors.New("pallets: box type differs from pallet")
)

// InsufficientBoxesError reports an assignment exceeding a lot's current
// availability. It depends on concurrent state and may succeed on retry.
type InsufficientBoxesError struct {
	LotID     int64
	Requested int
	Available int
}

func (e *InsufficientBoxesError) Error() string {
	return fmt.Sprintf("pallets: lot %d has %d boxes available, %d requested", e.LotID, e.Available, e.Requested)
}
