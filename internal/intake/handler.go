package intake

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/packtrack/packtrack/internal/catalog"
	"github.com/packtrack/packtrack/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the intake module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the intake handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountBatchRoutes registers batch routes under /batches.
func (h *Handler) MountBatchRoutes(r chi.Router) {
	r.Post("/", h.createBatch)
	r.Get("/{batchID}", h.getBatch)
	r.Patch("/{batchID}", h.updateBatch)
	r.Delete("/{batchID}", h.deleteBatch)
	r.Delete("/{batchID}/purge", h.purgeBatch)
	r.Post("/{batchID}/weigh", h.weighBatch)
	r.Post("/{batchID}/lots", h.createLots)
	r.Get("/{batchID}/lots", h.listLots)
	r.Get("/{batchID}/balance", h.balance)
	r.Post("/{batchID}/close", h.closeRun)
	r.Post("/{batchID}/finalize", h.finalize)
}

// MountLotRoutes registers lot routes under /lots.
func (h *Handler) MountLotRoutes(r chi.Router) {
	r.Patch("/{lotID}", h.updateLot)
	r.Post("/{lotID}/return", h.returnLot)
}

func (h *Handler) createBatch(w http.ResponseWriter, r *http.Request) {
	var req CreateBatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	batch, err := h.service.CreateBatch(r.Context(), CreateBatchInput{
		PackhouseID:   req.PackhouseID,
		FruitType:     req.FruitType,
		GrossWeightKg: req.GrossWeightKg,
		TareWeightKg:  req.TareWeightKg,
		ActorID:       actorID(r),
	})
	if err != nil {
		h.respondError(w, "create batch", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, batch)
}

func (h *Handler) getBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "batchID")
	if !ok {
		return
	}
	batch, err := h.service.GetBatch(r.Context(), id)
	if err != nil {
		h.respondError(w, "get batch", err)
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}

func (h *Handler) updateBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "batchID")
	if !ok {
		return
	}
	var req UpdateBatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	batch, err := h.service.UpdateBatch(r.Context(), id, UpdateBatchInput{
		WasteKg:     req.WasteKg,
		WasteReason: req.WasteReason,
		ActorID:     actorID(r),
	})
	if err != nil {
		h.respondError(w, "update batch", err)
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}

func (h *Handler) deleteBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "batchID")
	if !ok {
		return
	}
	if err := h.service.DeleteBatch(r.Context(), id, actorID(r)); err != nil {
		h.respondError(w, "delete batch", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) purgeBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "batchID")
	if !ok {
		return
	}
	if err := h.service.PurgeBatch(r.Context(), id, actorID(r)); err != nil {
		h.respondError(w, "purge batch", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) weighBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "batchID")
	if !ok {
		return
	}
	var req WeighBatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	batch, err := h.service.WeighBatch(r.Context(), id, req.GrossWeightKg, req.TareWeightKg, actorID(r))
	if err != nil {
		h.respondError(w, "weigh batch", err)
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}

func (h *Handler) createLots(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "batchID")
	if !ok {
		return
	}
	var req CreateLotsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rows := make([]LotRowInput, 0, len(req.Rows))
	for _, row := range req.Rows {
		rows = append(rows, LotRowInput{
			Grade:     row.Grade,
			Size:      row.Size,
			Unit:      LotUnit(row.Unit),
			BoxSizeID: row.BoxSizeID,
			BinTypeID: row.BinTypeID,
			Quantity:  row.Quantity,
		})
	}
	lots, report, err := h.service.CreateLots(r.Context(), id, rows, actorID(r))
	if err != nil {
		h.respondError(w, "create lots", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, CreateLotsResponse{Lots: lots, Balance: report})
}

func (h *Handler) listLots(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "batchID")
	if !ok {
		return
	}
	lots, err := h.service.ListLots(r.Context(), id)
	if err != nil {
		h.respondError(w, "list lots", err)
		return
	}
	httpx.JSON(w, http.StatusOK, lots)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "batchID")
	if !ok {
		return
	}
	report, err := h.service.Balance(r.Context(), id)
	if err != nil {
		h.respondError(w, "balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) closeRun(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "batchID")
	if !ok {
		return
	}
	batch, err := h.service.CloseProductionRun(r.Context(), id, actorID(r))
	if err != nil {
		h.respondError(w, "close run", err)
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}

func (h *Handler) finalize(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "batchID")
	if !ok {
		return
	}
	batch, err := h.service.FinalizeGRN(r.Context(), id, actorID(r))
	if err != nil {
		h.respondError(w, "finalize", err)
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}

func (h *Handler) updateLot(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "lotID")
	if !ok {
		return
	}
	var req UpdateLotRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	lot, err := h.service.UpdateLot(r.Context(), id, UpdateLotInput{
		Grade:    req.Grade,
		Size:     req.Size,
		WeightKg: req.WeightKg,
		WasteKg:  req.WasteKg,
		ActorID:  actorID(r),
	})
	if err != nil {
		h.respondError(w, "update lot", err)
		return
	}
	httpx.JSON(w, http.StatusOK, lot)
}

func (h *Handler) returnLot(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "lotID")
	if !ok {
		return
	}
	lot, err := h.service.ReturnLot(r.Context(), id, actorID(r))
	if err != nil {
		h.respondError(w, "return lot", err)
		return
	}
	httpx.JSON(w, http.StatusOK, lot)
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

// classify maps intake sentinels onto the transport error taxonomy.
func classify(err error) error {
	switch {
	case errors.Is(err, httpx.ErrNotFound):
		return err
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrEmptyRows),
		errors.Is(err, ErrGradeRequired),
		errors.Is(err, ErrUnitFieldsRequired),
		errors.Is(err, catalog.ErrUnknownBoxSize),
		errors.Is(err, catalog.ErrUnknownBinType):
		return fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	case errors.Is(err, ErrBatchFinalized), errors.Is(err, ErrLotTerminal):
		return fmt.Errorf("%w: %s", httpx.ErrConflict, err)
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrUnallocatedBoxes),
		errors.Is(err, ErrNotBalanced),
		errors.Is(err, ErrNotReturnable):
		return fmt.Errorf("%w: %s", httpx.ErrInvariant, err)
	default:
		return err
	}
}

// actorID reads the acting user from the gateway-injected header. Identity
// management is an upstream concern.
func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}
