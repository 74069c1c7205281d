package impl

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"meter/config"
	"meter/internal/domain/entity"
	domainerrors "meter/internal/domain/errors"
	"meter/internal/errors"
	"meter/internal/infra/auth"
	"meter/internal/infra/metrics"
	"meter/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "Passw0rd!23"

type authFixture struct {
	store   *memoryStore
	service usecase.AuthUsecase
	user    *entity.User
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.JWT.AccessSecret = "access-secret-at-least-24-chars"
	cfg.JWT.RefreshSecret = "refresh-secret-at-least-24-chars"
	cfg.JWT.AccessTTL = 15 * time.Minute
	cfg.JWT.RefreshTTL = 7 * 24 * time.Hour
	cfg.Auth.BcryptCost = bcrypt.MinCost
	cfg.Auth.RefreshTokenProbeLimit = 5

	tokenService, err := auth.NewJWTService(cfg)
	require.NoError(t, err)
	passwordHasher := auth.NewBcryptHasher(cfg)

	passwordHash, err := passwordHasher.Hash(testPassword)
	require.NoError(t, err)

	store := newMemoryStore()
	user := &entity.User{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		Email:          "demo@example.com",
		PasswordHash:   passwordHash,
		Role:           entity.RoleOwner,
	}
	store.addUser(user)

	srv := NewAuthService(AuthServiceParams{
		TxManager:        store,
		UserRepo:         store.UserRepo(),
		RefreshTokenRepo: store.RefreshTokenRepo(),
		PasswordHasher:   passwordHasher,
		TokenHasher:      auth.NewTokenHasher(cfg),
		TokenService:     tokenService,
		Metrics:          metrics.Noop{},
		Config:           cfg,
		Logger:           discardLogger(),
	})

	return &authFixture{store: store, service: srv, user: user}
}

func (f *authFixture) login(t *testing.T) *usecase.AuthOutput {
	t.Helper()

	output, err := f.service.Login(context.Background(), usecase.LoginInput{Email: f.user.Email, Password: testPassword})
	require.NoError(t, err)

	return output
}

func TestAuthService_Login(t *testing.T) {
	f := newAuthFixture(t)

	output, err := f.service.Login(context.Background(), usecase.LoginInput{
		Email:    "  Demo@Example.COM ",
		Password: testPassword,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, output.AccessToken)
	assert.NotEmpty(t, output.RefreshToken)
	assert.Equal(t, f.user.ID, output.User.ID)

	claims, err := f.service.VerifyAccessToken(context.Background(), output.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID.String(), claims.Subject)
	assert.Equal(t, f.user.Email, claims.Email)
	assert.Equal(t, f.user.OrganizationID, claims.OrganizationID)
	assert.Equal(t, entity.RoleOwner, claims.Role)

	tokens := f.store.tokensOf(f.user.ID)
	require.Len(t, tokens, 1)
	assert.NotEqual(t, output.RefreshToken, tokens[0].TokenHash)
	assert.WithinDuration(t, output.RefreshTokenExpiresAt, tokens[0].ExpiresAt, time.Second)
}

func TestAuthService_Login_InvalidCredentials(t *testing.T) {
	f := newAuthFixture(t)

	tests := []struct {
		name  string
		input usecase.LoginInput
	}{
		{name: "unknown email", input: usecase.LoginInput{Email: "nobody@example.com", Password: testPassword}},
		{name: "wrong password", input: usecase.LoginInput{Email: f.user.Email, Password: "wrong"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Login(context.Background(), tt.input)
			assert.True(t, errors.Is(err, domainerrors.ErrInvalidCredentials))
		})
	}
	assert.Empty(t, f.store.tokensOf(f.user.ID))
}

func TestAuthService_Login_KeepsOneActiveToken(t *testing.T) {
	f := newAuthFixture(t)

	first := f.login(t)
	second := f.login(t)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	assert.Equal(t, 1, f.store.activeTokenCount(f.user.ID, time.Now()))

	_, err := f.service.Refresh(context.Background(), first.RefreshToken)
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidToken))

	_, err = f.service.Refresh(context.Background(), second.RefreshToken)
	assert.NoError(t, err)
}

func TestAuthService_IssuanceLocksUser(t *testing.T) {
	f := newAuthFixture(t)

	output := f.login(t)
	assert.Equal(t, 1, f.store.lockCount(f.user.ID))

	_, err := f.service.Refresh(context.Background(), output.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, 2, f.store.lockCount(f.user.ID))

	// Failed logins never open a transaction.
	_, err = f.service.Login(context.Background(), usecase.LoginInput{Email: f.user.Email, Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, 2, f.store.lockCount(f.user.ID))
}

func TestAuthService_Login_ConcurrentLoginsLeaveOneActiveToken(t *testing.T) {
	f := newAuthFixture(t)

	const attempts = 6
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start

			_, err := f.service.Login(context.Background(), usecase.LoginInput{Email: f.user.Email, Password: testPassword})
			assert.NoError(t, err)
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, attempts, f.store.lockCount(f.user.ID))
	assert.Equal(t, 1, f.store.activeTokenCount(f.user.ID, time.Now()))
	assert.Len(t, f.store.tokensOf(f.user.ID), attempts)
}

func TestAuthService_Refresh_RotatesToken(t *testing.T) {
	f := newAuthFixture(t)
	initial := f.login(t)

	rotated, err := f.service.Refresh(context.Background(), initial.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, initial.RefreshToken, rotated.RefreshToken)
	assert.NotEqual(t, initial.AccessToken, rotated.AccessToken)
	assert.Equal(t, 1, f.store.activeTokenCount(f.user.ID, time.Now()))

	// The presented token works exactly once.
	_, err = f.service.Refresh(context.Background(), initial.RefreshToken)
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidToken))

	_, err = f.service.Refresh(context.Background(), rotated.RefreshToken)
	assert.NoError(t, err)
}

func TestAuthService_Refresh_Errors(t *testing.T) {
	f := newAuthFixture(t)
	output := f.login(t)

	_, err := f.service.Refresh(context.Background(), "   ")
	assert.True(t, errors.Is(err, domainerrors.ErrMissingToken))

	_, err = f.service.Refresh(context.Background(), "not-a-jwt")
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidToken))

	// An access token is signed with the other secret.
	_, err = f.service.Refresh(context.Background(), output.AccessToken)
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidToken))

	f.store.deleteUser(f.user.ID)
	_, err = f.service.Refresh(context.Background(), output.RefreshToken)
	assert.True(t, errors.Is(err, domainerrors.ErrUserNotFound))
}

func TestAuthService_Refresh_ConcurrentRotationHasOneWinner(t *testing.T) {
	f := newAuthFixture(t)
	output := f.login(t)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		invalid   atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start

			_, err := f.service.Refresh(context.Background(), output.RefreshToken)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, domainerrors.ErrInvalidToken):
				invalid.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(attempts-1), invalid.Load())
	assert.Equal(t, 1, f.store.activeTokenCount(f.user.ID, time.Now()))
}

func TestAuthService_Logout(t *testing.T) {
	f := newAuthFixture(t)
	output := f.login(t)

	require.NoError(t, f.service.Logout(context.Background(), output.RefreshToken))
	assert.Equal(t, 0, f.store.activeTokenCount(f.user.ID, time.Now()))

	_, err := f.service.Refresh(context.Background(), output.RefreshToken)
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidToken))

	// Repeats, garbage and blanks all succeed.
	assert.NoError(t, f.service.Logout(context.Background(), output.RefreshToken))
	assert.NoError(t, f.service.Logout(context.Background(), "garbage"))
	assert.NoError(t, f.service.Logout(context.Background(), ""))
}

func TestAuthService_GetMe(t *testing.T) {
	f := newAuthFixture(t)

	user, err := f.service.GetMe(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, f.user.Email, user.Email)

	_, err = f.service.GetMe(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, domainerrors.ErrUserNotFound))
}

func TestAuthService_VerifyAccessToken(t *testing.T) {
	f := newAuthFixture(t)
	output := f.login(t)

	_, err := f.service.VerifyAccessToken(context.Background(), "")
	assert.True(t, errors.Is(err, domainerrors.ErrMissingToken))

	_, err = f.service.VerifyAccessToken(context.Background(), output.RefreshToken)
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidToken))

	claims, err := f.service.VerifyAccessToken(context.Background(), " "+output.AccessToken+" ")
	require.NoError(t, err)
	assert.Equal(t, f.user.ID.String(), claims.Subject)
}
