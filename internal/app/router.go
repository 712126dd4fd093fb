package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/packtrack/packtrack/internal/catalog"
	"github.com/packtrack/packtrack/internal/intake"
	"github.com/packtrack/packtrack/internal/observability"
	"github.com/packtrack/packtrack/internal/pallets"
	"github.com/packtrack/packtrack/internal/report"
	"github.com/packtrack/packtrack/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	CatalogHandler *catalog.Handler
	IntakeHandler  *intake.Handler
	PalletsHandler *pallets.Handler
	ReportHandler  *report.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with PackTrack defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.CatalogHandler != nil {
		r.Route("/catalog", params.CatalogHandler.MountRoutes)
	}
	if params.IntakeHandler != nil {
		r.Route("/batches", params.IntakeHandler.MountBatchRoutes)
		r.Route("/lots", params.IntakeHandler.MountLotRoutes)
	}
	if params.PalletsHandler != nil {
		r.Route("/pallets", params.PalletsHandler.MountRoutes)
	}
	if params.ReportHandler != nil {
		r.Route("/reports/batches", params.ReportHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
