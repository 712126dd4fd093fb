package pallets

// AssignmentRequest is one lot contribution in an allocation request.
type AssignmentRequest struct {
	LotID    int64   `json:"lot_id" validate:"required,gt=0"`
	BoxCount int     `json:"box_count" validate:"gte=0"`
	Size     *string `json:"size,omitempty" validate:"omitempty,max=50"`
}

// CreateFromLotsRequest creates pallets from lot assignments.
type CreateFromLotsRequest struct {
	PackhouseID        int64               `json:"packhouse_id" validate:"required,gt=0"`
	PalletTypeName     string              `json:"pallet_type_name" validate:"required,max=100"`
	CapacityBoxes      int                 `json:"capacity_boxes" validate:"gte=0"`
	Size               *string             `json:"size,omitempty" validate:"omitempty,max=50"`
	AllowMixedSizes    bool                `json:"allow_mixed_sizes"`
	AllowMixedBoxTypes bool                `json:"allow_mixed_box_types"`
	Assignments        []AssignmentRequest `json:"assignments" validate:"required,min=1,dive"`
}

// AllocateRequest appends assignments to an existing pallet.
type AllocateRequest struct {
	AllowMixedSizes    bool                `json:"allow_mixed_sizes"`
	AllowMixedBoxTypes bool                `json:"allow_mixed_box_types"`
	Assignments        []AssignmentRequest `json:"assignments" validate:"required,min=1,dive"`
}

// AdvanceRequest moves a pallet to the next lifecycle state.
type AdvanceRequest struct {
	Status string `json:"status" validate:"required,oneof=closed stored allocated loaded exported"`
}
