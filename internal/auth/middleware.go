package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/agentacademy/academy/internal/platform/httpx"
	"github.com/agentacademy/academy/internal/shared"
)

type claimsContextKey struct{}

// Middleware attaches the bearer principal to the request context. Requests
// without a token continue anonymously; a bad token is rejected.
func Middleware(service *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := service.Verify(r.Context(), token)
			if err != nil {
				if !errors.Is(err, shared.ErrInvalidToken) {
					logger.ErrorContext(r.Context(), "verify token", slog.Any("error", err))
					httpx.RespondError(w, err)
					return
				}
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", shared.ErrInvalidToken.Error())
				return
			}
			ctx := shared.ContextWithPrincipal(r.Context(), claims.principal())
			ctx = context.WithValue(ctx, claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Handler serves token lifecycle endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/auth/logout", h.handleLogout)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, _ := r.Context().Value(claimsContextKey{}).(*Claims)
	if claims == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	if err := h.service.Revoke(r.Context(), claims); err != nil {
		h.logger.ErrorContext(r.Context(), "revoke token", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", true
	}
	return strings.TrimSpace(token), true
}
