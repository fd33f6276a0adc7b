package shared

import "strings"

// Platform permissions.
const (
	PermContentView    = "content.view"
	PermContentCreate  = "content.create"
	PermContentPublish = "content.publish"

	PermNewsletterSend = "newsletter.send"

	PermSubscriptionsView = "subscriptions.view"
	PermSubscriptionsEdit = "subscriptions.edit"

	PermJobsView = "jobs.view"
)

// Roles carried in access tokens.
const (
	RoleMember = "member"
	RoleAuthor = "author"
	RoleAdmin  = "admin"
)

var rolePermissions = map[string][]string{
	RoleMember: {PermContentView},
	RoleAuthor: {PermContentView, PermContentCreate, PermContentPublish},
	RoleAdmin:  CoreScopes(),
}

// CoreScopes lists every permission the platform checks.
func CoreScopes() []string {
	return []string{
		PermContentView,
		PermContentCreate,
		PermContentPublish,
		PermNewsletterSend,
		PermSubscriptionsView,
		PermSubscriptionsEdit,
		PermJobsView,
	}
}

// PermissionsForRole returns the permissions granted to role. Unknown roles
// are granted nothing.
func PermissionsForRole(role string) []string {
	perms := rolePermissions[strings.ToLower(strings.TrimSpace(role))]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// KnownRole reports whether role is one of the platform roles.
func KnownRole(role string) bool {
	_, ok := rolePermissions[strings.ToLower(strings.TrimSpace(role))]
	return ok
}
