package subscriptions

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agentacademy/academy/internal/platform/httpx"
	"github.com/agentacademy/academy/internal/rbac"
	"github.com/agentacademy/academy/internal/shared"
)

// Handler serves subscription endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers subscription routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/me/subscription", h.mine)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermSubscriptionsEdit))
		r.Put("/admin/subscriptions/{userID}", h.upsert)
	})
}

func (h *Handler) mine(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.JSON(w, http.StatusOK, State{})
		return
	}
	httpx.JSON(w, http.StatusOK, h.service.State(r.Context(), principal.UserID))
}

func (h *Handler) upsert(w http.ResponseWriter, r *http.Request) {
	var input UpsertInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.Upsert(r.Context(), chi.URLParam(r, "userID"), input)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "upsert subscription", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}
