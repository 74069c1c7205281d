package service

import (
	"time"

	"meter/internal/domain/entity"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the verified content of an access or refresh token.
type Claims struct {
	Email          string      `json:"email"`
	OrganizationID uuid.UUID   `json:"orgId"`
	Role           entity.Role `json:"role"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// TokenPair is a freshly signed access/refresh pair.
type TokenPair struct {
	AccessToken           string
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
}

// TokenService signs and verifies tokens. Access and refresh tokens use
// independent secrets and lifetimes.
type TokenService interface {
	// IssueTokens signs an access and a refresh token carrying the same payload.
	IssueTokens(payload entity.TokenPayload) (*TokenPair, error)

	// ValidateAccessToken verifies signature and expiry with the access secret.
	ValidateAccessToken(token string) (*Claims, error)

	// ValidateRefreshToken verifies signature and expiry with the refresh secret.
	ValidateRefreshToken(token string) (*Claims, error)

	// AccessTokenDuration is the access token lifetime.
	AccessTokenDuration() time.Duration
	// RefreshTokenDuration is the refresh token lifetime, also used as cookie Max-Age.
	RefreshTokenDuration() time.Duration
}
