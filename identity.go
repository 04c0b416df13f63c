package gatekeep

import (
	"fmt"
	"time"
)

// Role is the caller's authorization class.
type Role string

const (
	// RoleUser is the default role.
	RoleUser Role = "user"
	// RoleAdmin bypasses ownership checks and passes admin-only routes.
	RoleAdmin Role = "admin"
)

// ParseRole maps a stored role string onto a known [Role].
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// Identity is what downstream handlers see for an authenticated request.
type Identity struct {
	SubjectID string
	Role      Role
	AutoLogin bool
	IssuedAt  time.Time
	// ExpiresAt is set in signed mode only; opaque sessions slide.
	ExpiresAt time.Time

	token string
}

// IsAdmin reports whether the identity carries [RoleAdmin].
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// HasRole reports whether the identity's role is one of roles.
func (i *Identity) HasRole(roles ...Role) bool {
	if i == nil {
		return false
	}
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}

// CheckRole returns [ErrInsufficientRole] unless id holds one of roles.
func CheckRole(id *Identity, roles ...Role) error {
	if !id.HasRole(roles...) {
		return ErrInsufficientRole
	}
	return nil
}

// CheckOwner returns [ErrNotOwner] unless id is ownerID or an admin.
func CheckOwner(id *Identity, ownerID string) error {
	if id == nil {
		return ErrNotOwner
	}
	if id.IsAdmin() {
		return nil
	}
	if ownerID == "" || id.SubjectID != ownerID {
		return ErrNotOwner
	}
	return nil
}
