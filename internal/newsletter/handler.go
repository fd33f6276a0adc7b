package newsletter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/agentacademy/academy/internal/content"
	"github.com/agentacademy/academy/internal/platform/httpx"
	"github.com/agentacademy/academy/internal/rbac"
	"github.com/agentacademy/academy/internal/shared"
)

// Enqueuer queues a background send of an item.
type Enqueuer interface {
	EnqueueNewsletterSend(ctx context.Context, itemID uuid.UUID) (string, error)
}

// Handler serves newsletter endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	enqueuer Enqueuer
	rbac     rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, enqueuer Enqueuer, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, enqueuer: enqueuer, rbac: rbac}
}

// MountRoutes registers member newsletter routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/newsletter/subscription", h.setOptIn)
}

// MountContentRoutes registers the send route under the content router.
func (h *Handler) MountContentRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermNewsletterSend))
		r.Post("/{id}/send", h.send)
	})
}

func (h *Handler) setOptIn(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var input OptInInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.SetOptIn(r.Context(), principal.UserID, input); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"opt_in": *input.OptIn})
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid content id")
		return
	}
	if err := h.service.CheckSendable(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	taskID, err := h.enqueuer.EnqueueNewsletterSend(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"task_id": taskID, "item_id": id.String()})
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, content.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", content.ErrNotFound.Error())
	case errors.Is(err, ErrUnknownMember):
		httpx.Problem(w, http.StatusNotFound, "Not Found", ErrUnknownMember.Error())
	case errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrNotPublished), errors.Is(err, ErrAlreadySent):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "newsletter request", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
