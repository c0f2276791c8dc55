package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/texnika/texnika-backend/pkg/enums"
)

// AccessTokenClaims is the identity token minted by the account service.
type AccessTokenClaims struct {
	UserID   uuid.UUID      `json:"user_id"`
	Role     enums.UserRole `json:"role"`
	DealerID *uuid.UUID     `json:"dealer_id,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller as seen by domain services.
type Identity struct {
	UserID   uuid.UUID
	Role     enums.UserRole
	DealerID *uuid.UUID
}

// Identity projects the claims onto the domain identity.
func (c *AccessTokenClaims) Identity() Identity {
	return Identity{UserID: c.UserID, Role: c.Role, DealerID: c.DealerID}
}

// IsPrivileged reports whether the caller may act on subjects they do not own.
func (i Identity) IsPrivileged() bool {
	return i.Role.IsPrivileged()
}
