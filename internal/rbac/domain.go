// Package rbac enforces role-based permissions on HTTP routes.
package rbac

// Role describes a named permission grouping.
type Role struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}
