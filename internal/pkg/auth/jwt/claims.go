package jwt

import (
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
)

// Claims defines the JSON Web Token (JWT) claims of a chatroom session.
// A token identifies exactly one active user; it carries no other authority.
type Claims struct {
	// StandardClaims carries exp, iat, iss and nbf. It is embedded without a tag
	// so the registered claims stay at the top level of the token payload.
	jwt.StandardClaims

	// UserID is the id the users store assigned on join.
	UserID uuid.UUID `json:"uid"`
}

// NewClaims returns claims for the given user id.
func NewClaims(uid uuid.UUID) *Claims {
	return &Claims{UserID: uid}
}

// ExpiresAtTime returns the expiry of the claims as a time.Time. A zero time means no expiry.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(c.ExpiresAt, 0)
}
