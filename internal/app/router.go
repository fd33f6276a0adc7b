package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/agentacademy/academy/internal/auth"
	"github.com/agentacademy/academy/internal/content"
	"github.com/agentacademy/academy/internal/newsletter"
	"github.com/agentacademy/academy/internal/observability"
	"github.com/agentacademy/academy/internal/platform/httpx"
	"github.com/agentacademy/academy/internal/rbac"
	"github.com/agentacademy/academy/internal/subscriptions"
	"github.com/agentacademy/academy/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	Auth                *auth.Service
	AuthHandler         *auth.Handler
	ContentHandler      *content.Handler
	NewsletterHandler   *newsletter.Handler
	SubscriptionHandler *subscriptions.Handler
	PermissionsHandler  *rbac.PermissionsHandler
	JobHandler          *jobs.Handler
	Metrics             *observability.Metrics
}

// NewRouter constructs the chi.Router with academy defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Auth:    params.Auth,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	if params.Config == nil || !params.Config.IsProduction() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})

	if params.AuthHandler != nil {
		params.AuthHandler.MountRoutes(r)
	}
	if params.ContentHandler != nil {
		r.Route("/content", func(r chi.Router) {
			params.ContentHandler.MountRoutes(r)
			if params.NewsletterHandler != nil {
				params.NewsletterHandler.MountContentRoutes(r)
			}
		})
	}
	if params.NewsletterHandler != nil {
		params.NewsletterHandler.MountRoutes(r)
	}
	if params.SubscriptionHandler != nil {
		params.SubscriptionHandler.MountRoutes(r)
	}
	if params.PermissionsHandler != nil {
		params.PermissionsHandler.MountRoutes(r)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
