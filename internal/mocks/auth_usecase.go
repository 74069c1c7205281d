package mocks

import (
	"context"

	"meter/internal/domain/entity"
	"meter/internal/domain/service"
	"meter/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// AuthUsecase is a mock of usecase.AuthUsecase.
type AuthUsecase struct {
	mock.Mock
}

var _ usecase.AuthUsecase = (*AuthUsecase)(nil)

func (m *AuthUsecase) Login(ctx context.Context, input usecase.LoginInput) (*usecase.AuthOutput, error) {
	args := m.Called(ctx, input)
	output, _ := args.Get(0).(*usecase.AuthOutput)

	return output, args.Error(1)
}

func (m *AuthUsecase) Refresh(ctx context.Context, refreshToken string) (*usecase.AuthOutput, error) {
	args := m.Called(ctx, refreshToken)
	output, _ := args.Get(0).(*usecase.AuthOutput)

	return output, args.Error(1)
}

func (m *AuthUsecase) Logout(ctx context.Context, refreshToken string) error {
	return m.Called(ctx, refreshToken).Error(0)
}

func (m *AuthUsecase) GetMe(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(*entity.User)

	return user, args.Error(1)
}

func (m *AuthUsecase) VerifyAccessToken(ctx context.Context, accessToken string) (*service.Claims, error) {
	args := m.Called(ctx, accessToken)
	claims, _ := args.Get(0).(*service.Claims)

	return claims, args.Error(1)
}
