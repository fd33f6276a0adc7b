package rbac

import (
	"context"
	"sort"

	"github.com/agentacademy/academy/internal/shared"
)

// Service resolves permissions for principals.
type Service struct{}

// NewService constructs a Service.
func NewService() *Service {
	return &Service{}
}

// Roles lists the platform roles and their permissions.
func (s *Service) Roles() []Role {
	names := []string{shared.RoleMember, shared.RoleAuthor, shared.RoleAdmin}
	roles := make([]Role, 0, len(names))
	for _, name := range names {
		roles = append(roles, Role{Name: name, Permissions: shared.PermissionsForRole(name)})
	}
	return roles
}

// EffectivePermissions returns sorted permission names for the principal.
func (s *Service) EffectivePermissions(_ context.Context, p *shared.Principal) []string {
	if p == nil {
		return nil
	}
	perms := shared.PermissionsForRole(p.Role)
	sort.Strings(perms)
	return perms
}
