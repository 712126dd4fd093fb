package intake

// CreateBatchRequest registers a new delivery.
type CreateBatchRequest struct {
	PackhouseID   int64   `json:"packhouse_id" validate:"required,gt=0"`
	FruitType     string  `json:"fruit_type" validate:"required,max=100"`
	GrossWeightKg float64 `json:"gross_weight_kg" validate:"gte=0"`
	TareWeightKg  float64 `json:"tare_weight_kg" validate:"gte=0"`
}

// WeighBatchRequest records scale readings.
type WeighBatchRequest struct {
	GrossWeightKg float64 `json:"gross_weight_kg" validate:"required,gt=0"`
	TareWeightKg  float64 `json:"tare_weight_kg" validate:"gte=0"`
}

// UpdateBatchRequest patches manual waste fields.
type UpdateBatchRequest struct {
	WasteKg     *float64 `json:"waste_kg,omitempty" validate:"omitempty,gte=0"`
	WasteReason *string  `json:"waste_reason,omitempty" validate:"omitempty,max=255"`
}

// LotRowRequest is one row of a lot split request.
type LotRowRequest struct {
	Grade     string  `json:"grade"`
	Size      *string `json:"size,omitempty" validate:"omitempty,max=50"`
	Unit      string  `json:"unit" validate:"required,oneof=cartons bins"`
	BoxSizeID *int64  `json:"box_size_id,omitempty" validate:"omitempty,gt=0"`
	BinTypeID *int64  `json:"bin_type_id,omitempty" validate:"omitempty,gt=0"`
	Quantity  int     `json:"quantity" validate:"gte=0"`
}

// CreateLotsRequest splits a batch into lots.
type CreateLotsRequest struct {
	Rows []LotRowRequest `json:"rows" validate:"required,min=1,dive"`
}

// UpdateLotRequest patches manual lot fields.
type UpdateLotRequest struct {
	Grade    *string  `json:"grade,omitempty" validate:"omitempty,max=100"`
	Size     *string  `json:"size,omitempty" validate:"omitempty,max=50"`
	WeightKg *float64 `json:"weight_kg,omitempty" validate:"omitempty,gte=0"`
	WasteKg  *float64 `json:"waste_kg,omitempty" validate:"omitempty,gte=0"`
}

// CreateLotsResponse returns the created lots plus the fresh balance.
type CreateLotsResponse struct {
	Lots    []Lot         `json:"lots"`
	Balance BalanceReport `json:"balance"`
}
