package catalog

import "errors"

// BoxSize describes one carton specification.
type BoxSize struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	WeightKg float64 `json:"weight_kg"`
}

// BinType describes one bin specification. Net content is the default weight
// minus the tare of the bin itself.
type BinType struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	DefaultWeightKg float64 `json:"default_weight_kg"`
	TareWeightKg    float64 `json:"tare_weight_kg"`
}

// CapacityOverride maps a box size to a pallet capacity. Overrides are
// ordered; the first match wins.
type CapacityOverride struct {
	BoxSizeID int64 `json:"box_size_id"`
	Capacity  int   `json:"capacity"`
}

// PalletType describes a pallet specification with its default capacity and
// ordered per-box-size overrides.
type PalletType struct {
	ID              int64              `json:"id"`
	Name            string             `json:"name"`
	DefaultCapacity int                `json:"default_capacity"`
	Overrides       []CapacityOverride `json:"overrides,omitempty"`
}

// Snapshot is an immutable, versioned view of the configuration catalog.
// Engines receive a snapshot at call time instead of querying mutable state.
type Snapshot struct {
	Revision    int64                 `json:"revision"`
	BoxSizes    map[int64]BoxSize     `json:"box_sizes"`
	BinTypes    map[int64]BinType     `json:"bin_types"`
	PalletTypes map[string]PalletType `json:"pallet_types"`
}

// ErrUnknownBoxSize indicates a box size id missing from the snapshot.
var ErrUnknownBoxSize = errors.New("catalog: unknown box size")

// ErrUnknownBinType indicates a bin type id missing from the snapshot.
var ErrUnknownBinType = errors.New("catalog: unknown bin type")

// CartonWeightKg returns the per-carton weight for a box size.
func (s Snapshot) CartonWeightKg(boxSizeID int64) (float64, error) {
	box, ok := s.BoxSizes[boxSizeID]
	if !ok {
		return 0, ErrUnknownBoxSize
	}
	return box.WeightKg, nil
}

// BinNetWeightKg returns the net fruit weight held by one bin.
func (s Snapshot) BinNetWeightKg(binTypeID int64) (float64, error) {
	bin, ok := s.BinTypes[binTypeID]
	if !ok {
		return 0, ErrUnknownBinType
	}
	return bin.DefaultWeightKg - bin.TareWeightKg, nil
}

// EffectiveCapacity resolves the pallet capacity for a pallet type when all
// assigned lots share boxSizeID. It returns the first matching override,
// otherwise fallback. A zero fallback resolves to the type default.
func (s Snapshot) EffectiveCapacity(palletTypeName string, boxSizeID int64, fallback int) int {
	pt, ok := s.PalletTypes[palletTypeName]
	if !ok {
		return fallback
	}
	if boxSizeID != 0 {
		for _, ov := range pt.Overrides {
			if ov.BoxSizeID == boxSizeID && ov.Capacity > 0 {
				return ov.Capacity
			}
		}
	}
	if fallback > 0 {
		return fallback
	}
	return pt.DefaultCapacity
}
