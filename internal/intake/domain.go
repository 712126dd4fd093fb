package intake

import (
	"errors"
	"time"
)

// BatchStatus enumerates intake batch lifecycle states.
type BatchStatus string

const (
	// BatchStatusReceived marks a freshly registered delivery.
	BatchStatusReceived BatchStatus = "received"
	// BatchStatusGrading marks a batch under grading.
	BatchStatusGrading BatchStatus = "grading"
	// BatchStatusPacking marks a batch being split into lots.
	BatchStatusPacking BatchStatus = "packing"
	// BatchStatusComplete marks a closed production run.
	BatchStatusComplete BatchStatus = "complete"
	// BatchStatusRejected marks a rejected delivery.
	BatchStatusRejected BatchStatus = "rejected"
)

var batchTransitions = map[BatchStatus][]BatchStatus{
	BatchStatusReceived: {BatchStatusGrading, BatchStatusPacking, BatchStatusRejected},
	BatchStatusGrading:  {BatchStatusPacking, BatchStatusRejected},
	BatchStatusPacking:  {BatchStatusComplete, BatchStatusRejected},
}

// CanTransitionTo reports whether the batch status may move to next.
func (s BatchStatus) CanTransitionTo(next BatchStatus) bool {
	for _, allowed := range batchTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Batch models one intake delivery (GRN). Net weight stays nil until the
// delivery has been weighed.
type Batch struct {
	ID            int64       `json:"id"`
	PackhouseID   int64       `json:"packhouse_id"`
	Reference     string      `json:"reference"`
	FruitType     string      `json:"fruit_type"`
	GrossWeightKg float64     `json:"gross_weight_kg"`
	TareWeightKg  float64     `json:"tare_weight_kg"`
	NetWeightKg   *float64    `json:"net_weight_kg"`
	WasteKg       float64     `json:"waste_kg"`
	WasteReason   string      `json:"waste_reason"`
	Status        BatchStatus `json:"status"`
	Finalized     bool        `json:"finalized"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	DeletedAt     *time.Time  `json:"deleted_at,omitempty"`
}

// LotUnit selects how a lot row is measured.
type LotUnit string

const (
	// UnitCartons measures a lot in cartons of a box size.
	UnitCartons LotUnit = "cartons"
	// UnitBins measures a lot in bins of a bin type.
	UnitBins LotUnit = "bins"
)

// LotStatus enumerates lot lifecycle states.
type LotStatus string

const (
	// LotStatusCreated marks a freshly split lot.
	LotStatusCreated LotStatus = "created"
	// LotStatusPalletizing marks a lot partially committed to pallets.
	LotStatusPalletizing LotStatus = "palletizing"
	// LotStatusStored marks a fully palletized lot placed in storage.
	LotStatusStored LotStatus = "stored"
	// LotStatusAllocated marks a lot fully committed to pallets.
	LotStatusAllocated LotStatus = "allocated"
	// LotStatusExported is terminal.
	LotStatusExported LotStatus = "exported"
	// LotStatusReturned is the terminal state for reject-class lots sent
	// back to the grower or industrial processing.
	LotStatusReturned LotStatus = "returned"
)

// Terminal reports whether no further transition is allowed from s.
func (s LotStatus) Terminal() bool {
	return s == LotStatusExported || s == LotStatusReturned
}

// GradeClass is resolved once at grade-assignment time so downstream checks
// never re-match grade text.
type GradeClass string

const (
	// GradeClassTable marks export-quality fruit.
	GradeClassTable GradeClass = "table"
	// GradeClassReject marks class 2 / industrial fruit eligible for return.
	GradeClassReject GradeClass = "reject"
)

// Lot is a graded subdivision of a batch's packed output. Either BoxSizeID or
// BinTypeID is set, never both.
type Lot struct {
	ID              int64      `json:"id"`
	BatchID         int64      `json:"batch_id"`
	Grade           string     `json:"grade"`
	GradeClass      GradeClass `json:"grade_class"`
	Size            *string    `json:"size,omitempty"`
	BoxSizeID       *int64     `json:"box_size_id,omitempty"`
	BinTypeID       *int64     `json:"bin_type_id,omitempty"`
	CartonCount     int        `json:"carton_count"`
	WeightKg        float64    `json:"weight_kg"`
	WasteKg         float64    `json:"waste_kg"`
	PalletizedBoxes int        `json:"palletized_boxes"`
	Status          LotStatus  `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Available returns the boxes not yet committed to pallets.
func (l Lot) Available() int {
	return l.CartonCount - l.PalletizedBoxes
}

// Sentinel errors for intake operations.
var (
	// ErrInvalidInput rejects malformed fields before any mutation.
	ErrInvalidInput = errors.New("intake: invalid input")
	// ErrEmptyRows rejects a lot split with no rows.
	ErrEmptyRows = errors.New("intake: at least one lot row required")
	// ErrGradeRequired rejects a non-zero row without a grade.
	ErrGradeRequired = errors.New("intake: grade required")
	// ErrUnitFieldsRequired rejects a quantity without its unit reference.
	ErrUnitFieldsRequired = errors.New("intake: box size or bin type required")
	// ErrBatchNotWeighed rejects operations needing a net weight.
	ErrBatchNotWeighed = errors.New("intake: batch has no net weight")
	// ErrBatchFinalized rejects mutation of a finalized GRN.
	ErrBatchFinalized = errors.New("intake: batch already finalized")
	// ErrInvalidTransition rejects an illegal lifecycle move.
	ErrInvalidTransition = errors.New("intake: invalid status transition")
	// ErrUnallocatedBoxes blocks closing a run with boxes left to palletize.
	ErrUnallocatedBoxes = errors.New("intake: unallocated boxes remain")
	// ErrNotBalanced blocks finalizing an out-of-tolerance GRN.
	ErrNotBalanced = errors.New("intake: mass balance out of tolerance")
	// ErrNotReturnable rejects returning a lot that is not reject class.
	ErrNotReturnable = errors.New("intake: lot is not reject class")
	// ErrLotTerminal rejects mutation of an exported or returned lot.
	ErrLotTerminal = errors.New("intake: lot is in a terminal state")
)
