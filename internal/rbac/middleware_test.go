package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/agentacademy/academy/internal/shared"
)

func serve(t *testing.T, h http.Handler, p *shared.Principal, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if p != nil {
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), p))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequireAny(t *testing.T) {
	mw := Middleware{Service: NewService()}
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := mw.RequireAny(" Content.Publish ", shared.PermNewsletterSend)(ok)

	require.Equal(t, http.StatusUnauthorized, serve(t, h, nil, "/").Code)
	require.Equal(t, http.StatusForbidden, serve(t, h, &shared.Principal{UserID: "m", Role: shared.RoleMember}, "/").Code)
	require.Equal(t, http.StatusNoContent, serve(t, h, &shared.Principal{UserID: "a", Role: shared.RoleAuthor}, "/").Code)
	require.Equal(t, http.StatusForbidden, serve(t, h, &shared.Principal{UserID: "x", Role: "ghost"}, "/").Code)
}

func TestRequireAll(t *testing.T) {
	mw := Middleware{Service: NewService()}
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := mw.RequireAll(shared.PermContentPublish, shared.PermNewsletterSend)(ok)

	require.Equal(t, http.StatusForbidden, serve(t, h, &shared.Principal{UserID: "a", Role: shared.RoleAuthor}, "/").Code)
	require.Equal(t, http.StatusNoContent, serve(t, h, &shared.Principal{UserID: "b", Role: shared.RoleAdmin}, "/").Code)
	require.Equal(t, http.StatusNoContent, serve(t, mw.RequireAll()(ok), nil, "/").Code)
}

func TestPermissionsHandler(t *testing.T) {
	svc := NewService()
	r := chi.NewRouter()
	NewPermissionsHandler(svc, Middleware{Service: svc}).MountRoutes(r)

	require.Equal(t, http.StatusUnauthorized, serve(t, r, nil, "/me/permissions").Code)

	rec := serve(t, r, &shared.Principal{UserID: "m", Role: shared.RoleMember}, "/me/permissions")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), shared.PermContentView)

	require.Equal(t, http.StatusForbidden, serve(t, r, &shared.Principal{UserID: "m", Role: shared.RoleMember}, "/admin/roles").Code)
	require.Equal(t, http.StatusOK, serve(t, r, &shared.Principal{UserID: "a", Role: shared.RoleAdmin}, "/admin/roles").Code)
}
