package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/fingrupo/fingrupo/internal/api"
	"github.com/fingrupo/fingrupo/internal/auth"
	"github.com/fingrupo/fingrupo/internal/dashboard"
	"github.com/fingrupo/fingrupo/internal/financeiro"
	"github.com/fingrupo/fingrupo/internal/invites"
	"github.com/fingrupo/fingrupo/internal/members"
	"github.com/fingrupo/fingrupo/internal/observability"
	"github.com/fingrupo/fingrupo/internal/patrimonio"
	"github.com/fingrupo/fingrupo/internal/platform/cache"
	"github.com/fingrupo/fingrupo/internal/platform/httpx"
	"github.com/fingrupo/fingrupo/internal/profile"
	"github.com/fingrupo/fingrupo/internal/shared"
	"github.com/fingrupo/fingrupo/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	API            *api.Client
	Redis          *redis.Client
	Metrics        *observability.Metrics

	AuthHandler       *auth.Handler
	DashboardHandler  *dashboard.Handler
	ProfileHandler    *profile.Handler
	MembersHandler    *members.Handler
	InvitesHandler    *invites.Handler
	PatrimonioHandler *patrimonio.Handler
	FinanceiroHandler *financeiro.Handler
}

// NewRouter constructs the chi.Router with fingrupo defaults. Health, metrics
// and static assets are served ahead of the session and gate middleware.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP, chimw.RequestID, chimw.Logger)
	if params.Metrics != nil {
		r.Use(params.Metrics.Middleware)
	}

	r.Get("/healthz", healthHandler(params.Redis))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	r.Group(func(r chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{
			Logger:         params.Logger,
			Config:         params.Config,
			SessionManager: params.SessionManager,
			CSRFManager:    params.CSRFManager,
			Metrics:        params.Metrics,
			API:            params.API,
		}) {
			r.Use(mw)
		}

		mounters := []interface{ MountRoutes(chi.Router) }{
			params.AuthHandler,
			params.DashboardHandler,
			params.ProfileHandler,
			params.MembersHandler,
			params.InvitesHandler,
			params.PatrimonioHandler,
			params.FinanceiroHandler,
		}
		for _, m := range mounters {
			m.MountRoutes(r)
		}
	})

	return r
}

type healthStatus struct {
	Status string `json:"status"`
	Redis  string `json:"redis"`
}

// healthHandler reports liveness plus Redis reachability. The API is not
// probed; its availability is tracked by the api call metrics.
func healthHandler(client *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := healthStatus{Status: "ok", Redis: "ok"}
		code := http.StatusOK
		if client == nil {
			status.Redis = "disabled"
		} else if err := cache.Ping(r.Context(), client); err != nil {
			status.Status, status.Redis = "degraded", err.Error()
			code = http.StatusServiceUnavailable
		}
		httpx.JSON(w, code, status)
	}
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
