package report

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/packtrack/packtrack/internal/intake"
	"github.com/packtrack/packtrack/internal/platform/httpx"
)

// Handler serves downloadable reports.
type Handler struct {
	logger *slog.Logger
	intake *intake.Service
}

// NewHandler constructs the report handler.
func NewHandler(logger *slog.Logger, intakeService *intake.Service) *Handler {
	return &Handler{logger: logger, intake: intakeService}
}

// MountRoutes registers report routes under /batches.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{batchID}/balance.xlsx", h.balanceWorkbook)
}

func (h *Handler) balanceWorkbook(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "batchID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid batchID")
		return
	}

	batch, err := h.intake.GetBatch(r.Context(), id)
	if err != nil {
		h.respondError(w, "load batch", err)
		return
	}
	lots, err := h.intake.ListLots(r.Context(), id)
	if err != nil {
		h.respondError(w, "load lots", err)
		return
	}
	balance, err := h.intake.Balance(r.Context(), id)
	if err != nil {
		h.respondError(w, "compute balance", err)
		return
	}

	data, err := BuildBalanceWorkbook(batch, lots, balance)
	if err != nil {
		h.respondError(w, "build workbook", err)
		return
	}

	filename := fmt.Sprintf("balance_%s.xlsx", batch.Reference)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
