package pallets

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/packtrack/packtrack/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the pallets module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the pallets handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers pallet routes under /pallets.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listPallets)
	r.Post("/from-lots", h.createFromLots)
	r.Get("/{palletID}", h.getPallet)
	r.Post("/{palletID}/allocations", h.allocate)
	r.Delete("/{palletID}/allocations/{palletLotID}", h.deallocate)
	r.Post("/{palletID}/advance", h.advance)
}

func (h *Handler) listPallets(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{Status: PalletStatus(r.URL.Query().Get("status"))}
	if raw := r.URL.Query().Get("packhouse_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid packhouse_id")
			return
		}
		filter.PackhouseID = id
	}
	pallets, err := h.service.ListPallets(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list pallets", err)
		return
	}
	httpx.JSON(w, http.StatusOK, pallets)
}

func (h *Handler) createFromLots(w http.ResponseWriter, r *http.Request) {
	var req CreateFromLotsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.CreateFromLots(r.Context(), CreateFromLotsInput{
		PackhouseID:        req.PackhouseID,
		PalletTypeName:     req.PalletTypeName,
		CapacityBoxes:      req.CapacityBoxes,
		Size:               req.Size,
		AllowMixedSizes:    req.AllowMixedSizes,
		AllowMixedBoxTypes: req.AllowMixedBoxTypes,
		Assignments:        assignments(req.Assignments),
		ActorID:            actorID(r),
	})
	if err != nil {
		h.respondError(w, "create from lots", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) getPallet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "palletID")
	if !ok {
		return
	}
	detail, err := h.service.GetPallet(r.Context(), id)
	if err != nil {
		h.respondError(w, "get pallet", err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) allocate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "palletID")
	if !ok {
		return
	}
	var req AllocateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.AllocateToPallet(r.Context(), id, AllocateInput{
		Assignments:        assignments(req.Assignments),
		AllowMixedSizes:    req.AllowMixedSizes,
		AllowMixedBoxTypes: req.AllowMixedBoxTypes,
		ActorID:            actorID(r),
	})
	if err != nil {
		h.respondError(w, "allocate", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) deallocate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "palletID")
	if !ok {
		return
	}
	linkID, ok := h.pathID(w, r, "palletLotID")
	if !ok {
		return
	}
	result, err := h.service.Deallocate(r.Context(), id, linkID, actorID(r))
	if err != nil {
		h.respondError(w, "deallocate", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) advance(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "palletID")
	if !ok {
		return
	}
	var req AdvanceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	pallet, err := h.service.Advance(r.Context(), id, PalletStatus(req.Status), actorID(r))
	if err != nil {
		h.respondError(w, "advance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, pallet)
}

func assignments(reqs []AssignmentRequest) []Assignment {
	out := make([]Assignment, 0, len(reqs))
	for _, a := range reqs {
		out = append(out, Assignment{LotID: a.LotID, BoxCount: a.BoxCount, Size: a.Size})
	}
	return out
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, classify(err))
}

// classify maps pallet sentinels onto the transport error taxonomy.
// Uniformity rejections (mixed sizes, mixed box types, pin mismatches) are
// validation errors: they fire before any mutation and the corrected request
// is safe to retry. An insufficient-boxes failure is a conflict: the
// availability depends on concurrent allocations and the same request may
// succeed on retry.
func classify(err error) error {
	var insufficient *InsufficientBoxesError
	switch {
	case errors.Is(err, httpx.ErrNotFound):
		return err
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrNoAssignments),
		errors.Is(err, ErrCapacityRequired),
		errors.Is(err, ErrMixedSizes),
		errors.Is(err, ErrMixedBoxTypes),
		errors.Is(err, ErrSizeMismatch),
		errors.Is(err, ErrBoxTypeMismatch):
		return fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	case errors.As(err, &insufficient),
		errors.Is(err, ErrPalletImmutable),
		errors.Is(err, ErrLotNotAllocatable):
		return fmt.Errorf("%w: %s", httpx.ErrConflict, err)
	case errors.Is(err, ErrInvalidTransition):
		return fmt.Errorf("%w: %s", httpx.ErrInvariant, err)
	default:
		return err
	}
}

// actorID reads the acting user from the gateway-injected header.
func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}
