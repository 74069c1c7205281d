package entity

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is the stored form of an issued refresh token.
// The raw token is never persisted; only its salted hash is.
type RefreshToken struct {
	ID        uuid.UUID  // Unique ID of this stored token.
	UserID    uuid.UUID  // Owner of the session.
	TokenHash string     // Salted hash of the raw refresh token.
	ExpiresAt time.Time  // Absolute expiry, equal to the token's exp claim.
	RevokedAt *time.Time // Set once the token is rotated, logged out or superseded.
	CreatedAt time.Time  // Issue time; probes scan newest first.
}

// IsActive reports whether the token is neither revoked nor expired at now.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return t.RevokedAt == nil && t.ExpiresAt.After(now)
}

// TokenPayload is the identity carried by both access and refresh tokens.
type TokenPayload struct {
	UserID         uuid.UUID
	Email          string
	OrganizationID uuid.UUID
	Role           Role
}

// PayloadFromUser builds the token payload for a user.
func PayloadFromUser(user *User) TokenPayload {
	return TokenPayload{
		UserID:         user.ID,
		Email:          user.Email,
		OrganizationID: user.OrganizationID,
		Role:           user.Role,
	}
}
