package content

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/agentacademy/academy/internal/access"
	"github.com/agentacademy/academy/internal/platform/httpx"
	"github.com/agentacademy/academy/internal/rbac"
	"github.com/agentacademy/academy/internal/shared"
)

// ViewerSource resolves the access viewer of a user.
type ViewerSource interface {
	ViewerFor(ctx context.Context, userID string) access.Viewer
}

// Handler serves content endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	viewers ViewerSource
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, viewers ViewerSource, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, viewers: viewers, rbac: rbac}
}

// MountRoutes registers content routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{slug}", h.show)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermContentCreate))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermContentPublish))
		r.Post("/{id}/publish", h.publish)
		r.Post("/{id}/schedule", h.schedule)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageFromQuery(r.URL.Query())
	result, err := h.service.ListVisible(r.Context(), h.viewer(r), ListQuery{
		Kind:    Kind(r.URL.Query().Get("kind")),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.GetVisible(r.Context(), chi.URLParam(r, "slug"), h.viewer(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input CreateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.Create(r.Context(), actorID(r), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) publish(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	item, err := h.service.Publish(r.Context(), actorID(r), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) schedule(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var input ScheduleInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.Schedule(r.Context(), actorID(r), id, input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) viewer(r *http.Request) access.Viewer {
	p := shared.PrincipalFromContext(r.Context())
	if p == nil || h.viewers == nil {
		return access.Anonymous()
	}
	return h.viewers.ViewerFor(r.Context(), p.UserID)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrUpgradeRequired):
		httpx.RespondError(w, httpx.ErrUpgradeRequired)
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", ErrNotFound.Error())
	case errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrDuplicateSlug):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "content request", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

// parseID reads the {id} URL parameter, answering 400 when malformed.
func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid content id")
		return uuid.Nil, false
	}
	return id, true
}

func actorID(r *http.Request) string {
	if p := shared.PrincipalFromContext(r.Context()); p != nil {
		return p.UserID
	}
	return ""
}
