package shared

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPermissionsForRole(t *testing.T) {
	require.Equal(t, []string{PermContentView}, PermissionsForRole("member"))
	require.Contains(t, PermissionsForRole(" Author "), PermContentPublish)
	require.NotContains(t, PermissionsForRole(RoleAuthor), PermNewsletterSend)
	require.ElementsMatch(t, CoreScopes(), PermissionsForRole(RoleAdmin))
	require.Empty(t, PermissionsForRole("intern"))
	require.False(t, KnownRole("intern"))

	perms := PermissionsForRole(RoleMember)
	perms[0] = "mutated"
	require.Equal(t, PermContentView, PermissionsForRole(RoleMember)[0])
}

func TestPrincipalContext(t *testing.T) {
	ctx := context.Background()
	require.Nil(t, PrincipalFromContext(ctx))

	p := &Principal{UserID: "u1", Role: RoleAdmin}
	require.Equal(t, p, PrincipalFromContext(ContextWithPrincipal(ctx, p)))
}

func TestPagination(t *testing.T) {
	p := NewPagination(0, 0, 45)
	require.Equal(t, Pagination{Page: 1, PerPage: 20, Total: 45, TotalPages: 3}, p)

	page, perPage := PageFromQuery(url.Values{"page": {"3"}, "per_page": {"500"}})
	require.Equal(t, 3, page)
	require.Equal(t, 100, perPage)
	require.Equal(t, 200, Offset(page, perPage))
}

func TestMemoryAuditValidates(t *testing.T) {
	var audit MemoryAudit
	require.Error(t, audit.Record(context.Background(), AuditLog{Action: "content.publish"}))
	require.NoError(t, audit.Record(context.Background(), AuditLog{Action: "content.publish", Entity: "content", EntityID: "1"}))
	require.Len(t, audit.Entries, 1)
}
