package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/packtrack/packtrack/internal/platform/httpx"
)

// Handler wires HTTP endpoints for catalog lookups.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/box-sizes", h.listBoxSizes)
	r.Get("/bin-types", h.listBinTypes)
	r.Get("/pallet-types", h.listPalletTypes)
}

func (h *Handler) listBoxSizes(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.BoxSizes(r.Context())
	if err != nil {
		h.logger.Error("list box sizes", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) listBinTypes(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.BinTypes(r.Context())
	if err != nil {
		h.logger.Error("list bin types", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) listPalletTypes(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.PalletTypes(r.Context())
	if err != nil {
		h.logger.Error("list pallet types", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}
