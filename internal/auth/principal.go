package auth

import (
	"context"
	"errors"

	"github.com/alouzou/sondage/backend/internal/models"
)

// Role is a granted authority checked by Require.
type Role string

const (
	RoleAdmin       Role = "ADMIN"
	RoleCreator     Role = "CREATOR"
	RoleParticipant Role = "PARTICIPANT"
)

var (
	// ErrUnauthenticated means no caller identity was supplied with the request.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrForbidden means the caller lacks every role an operation accepts.
	ErrForbidden = errors.New("forbidden")
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Roles    []Role `json:"roles"`
}

// PrincipalFromUser builds the principal a login session carries.
func PrincipalFromUser(u *models.User) Principal {
	roles := make([]Role, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, Role(r))
	}
	return Principal{UserID: u.ID, Username: u.Username, Roles: roles}
}

// HasRole reports whether the principal was granted role.
func (p Principal) HasRole(role Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Require passes when the caller is authenticated and holds at least one of
// roles. With no roles it only checks authentication.
func Require(p Principal, roles ...Role) error {
	if p.Username == "" {
		return ErrUnauthenticated
	}
	if len(roles) == 0 {
		return nil
	}
	for _, role := range roles {
		if p.HasRole(role) {
			return nil
		}
	}
	return ErrForbidden
}

type contextKey string

const principalContextKey contextKey = "principal"

// ContextWithPrincipal stores the caller into ctx.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext extracts the caller stored by the auth middleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(Principal)
	return p, ok
}
