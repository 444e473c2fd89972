package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"sprinkle-migrator/config"
	"sprinkle-migrator/internal/middleware"
)

// NewRouter はルーターを生成する。OTEL有効時はotelhttpで計装する。
func NewRouter(h *MigrationHandler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// ミドルウェア
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	// ルート定義
	r.Get("/healthz", h.Healthz)
	r.Route("/v1/migrations", func(r chi.Router) {
		r.Get("/", h.GetStatus)
		r.Get("/pending", h.GetPending)
		r.Get("/stale", h.GetStale)
		r.Get("/rollback", h.GetRollbackPlan)
		r.Get("/reset", h.GetResetPlan)
		r.Get("/rollbackable", h.GetRollbackable)
	})

	if cfg.OtelEnabled {
		return otelhttp.NewHandler(r, cfg.OtelServiceName)
	}
	return r
}
