package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/fingrupo/fingrupo/internal/api"
	"github.com/fingrupo/fingrupo/internal/auth"
	"github.com/fingrupo/fingrupo/internal/dashboard"
	"github.com/fingrupo/fingrupo/internal/financeiro"
	"github.com/fingrupo/fingrupo/internal/invites"
	"github.com/fingrupo/fingrupo/internal/members"
	"github.com/fingrupo/fingrupo/internal/observability"
	"github.com/fingrupo/fingrupo/internal/patrimonio"
	"github.com/fingrupo/fingrupo/internal/platform/httpx"
	"github.com/fingrupo/fingrupo/internal/profile"
	"github.com/fingrupo/fingrupo/internal/shared"
	"github.com/fingrupo/fingrupo/internal/view"
)

// SessionCookieName names the cookie carrying the redis session id.
const SessionCookieName = "fingrupo_session"

// Deps are the externally owned pieces the application is built from.
type Deps struct {
	Logger  *slog.Logger
	Redis   *redis.Client
	Metrics *observability.Metrics
	// HTTPClient overrides the API transport; tests point it at a fake server.
	HTTPClient *http.Client
}

// New wires every handler and returns the root http.Handler.
func New(cfg *Config, deps Deps) (http.Handler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: config is required")
	}
	if deps.Redis == nil {
		return nil, fmt.Errorf("app: redis client is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	templates, err := view.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("app: parse templates: %w", err)
	}

	opts := []api.Option{api.WithTimeout(cfg.APITimeout)}
	if deps.HTTPClient != nil {
		opts = append(opts, api.WithHTTPClient(deps.HTTPClient))
	}
	if deps.Metrics != nil {
		opts = append(opts, api.WithObserver(deps.Metrics))
	}
	client := api.NewClient(cfg.APIBaseURL, opts...)

	sessionManager := shared.NewSessionManager(deps.Redis, SessionCookieName, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	var recorder httpx.DuplicateRecorder
	if deps.Metrics != nil {
		recorder = deps.Metrics
	}
	guard := httpx.NewGuard(shared.NewIdempotencyStore(deps.Redis, cfg.SubmissionTTL), recorder)

	return NewRouter(RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		API:            client,
		Redis:          deps.Redis,
		Metrics:        deps.Metrics,

		AuthHandler:       auth.NewHandler(logger, templates, sessionManager, csrfManager),
		DashboardHandler:  dashboard.NewHandler(logger, templates, csrfManager),
		ProfileHandler:    profile.NewHandler(logger, templates, csrfManager, guard),
		MembersHandler:    members.NewHandler(logger, templates, csrfManager),
		InvitesHandler:    invites.NewHandler(logger, templates, csrfManager, guard),
		PatrimonioHandler: patrimonio.NewHandler(logger, templates, csrfManager, guard),
		FinanceiroHandler: financeiro.NewHandler(logger, templates, csrfManager, guard),
	}), nil
}
