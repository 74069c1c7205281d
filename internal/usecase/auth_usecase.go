// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"
	"time"

	"meter/internal/domain/entity"
	"meter/internal/domain/service"

	"github.com/google/uuid"
)

// LoginInput defines the credentials a user logs in with.
type LoginInput struct {
	Email    string
	Password string
}

// AuthOutput is a freshly issued token pair and its owner.
type AuthOutput struct {
	AccessToken           string
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	User                  *entity.User
}

// AuthUsecase issues, rotates and revokes tokens.
type AuthUsecase interface {
	// Login checks email and password and issues a new token pair. The user's
	// previous refresh token is revoked.
	Login(ctx context.Context, input LoginInput) (*AuthOutput, error)
	// Refresh exchanges a refresh token for a new pair. Each refresh token works once.
	Refresh(ctx context.Context, refreshToken string) (*AuthOutput, error)
	// Logout revokes the refresh token if it can be matched. It never fails.
	Logout(ctx context.Context, refreshToken string) error
	GetMe(ctx context.Context, userID uuid.UUID) (*entity.User, error)
	VerifyAccessToken(ctx context.Context, accessToken string) (*service.Claims, error)
}
