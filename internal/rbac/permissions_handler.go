package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agentacademy/academy/internal/platform/httpx"
	"github.com/agentacademy/academy/internal/shared"
)

// PermissionsHandler exposes role and permission listings.
type PermissionsHandler struct {
	service *Service
	rbac    Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(service *Service, rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{service: service, rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/me/permissions", h.myPermissions)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermSubscriptionsEdit))
		r.Get("/admin/roles", h.listRoles)
	})
}

func (h *PermissionsHandler) myPermissions(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"role":        principal.Role,
		"permissions": h.service.EffectivePermissions(r.Context(), principal),
	})
}

func (h *PermissionsHandler) listRoles(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": h.service.Roles()})
}
