package repository

import (
	"context"
	"time"

	"meter/internal/domain/entity"
	"meter/internal/errors"

	"github.com/google/uuid"
)

// ErrRefreshTokenNotFound is returned when no stored refresh token matches,
// including when a conditional revoke finds the row already revoked.
var ErrRefreshTokenNotFound = errors.New("refresh token not found")

// RefreshTokenRepository stores hashed refresh tokens. Rows are revoked, never deleted.
type RefreshTokenRepository interface {
	// Create persists a newly issued refresh token.
	Create(ctx context.Context, token *entity.RefreshToken) error

	// FindActiveByUserID returns up to limit tokens of the user that are not
	// revoked and expire after now, newest first.
	FindActiveByUserID(ctx context.Context, userID uuid.UUID, now time.Time, limit int) ([]*entity.RefreshToken, error)

	// Revoke marks a single token revoked if it is still unrevoked.
	// It returns ErrRefreshTokenNotFound when nothing was updated.
	Revoke(ctx context.Context, id uuid.UUID, at time.Time) error

	// RevokeAllByUserID revokes every unrevoked token of the user and reports how many changed.
	RevokeAllByUserID(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
}
