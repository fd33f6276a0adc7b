// Package auth verifies bearer access tokens issued by the account backend
// and attaches the resulting principal to requests.
package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/agentacademy/academy/internal/shared"
)

// Claims carried by academy access tokens.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) principal() *shared.Principal {
	role := c.Role
	if role == "" {
		role = shared.RoleMember
	}
	return &shared.Principal{UserID: c.Subject, Email: c.Email, Role: role}
}
