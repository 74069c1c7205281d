// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"meter/config"
	deliverycontext "meter/internal/delivery/context"
	"meter/internal/domain/entity"
	domainerrors "meter/internal/domain/errors"
	"meter/internal/domain/repository"
	"meter/internal/domain/service"
	"meter/internal/errors"
	"meter/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

const (
	opLogin   = "login"
	opRefresh = "refresh"
	opLogout  = "logout"

	// dummyPassword is hashed once and compared against when the email is
	// unknown, so a miss costs as much as a wrong password.
	dummyPassword = "meter-timing-equalizer"
)

// authService implements the AuthUsecase interface.
type authService struct {
	txManager        repository.TransactionManager
	userRepo         repository.UserRepository
	refreshTokenRepo repository.RefreshTokenRepository
	passwordHasher   service.PasswordHasher
	tokenHasher      service.TokenHasher
	tokenService     service.TokenService
	metrics          service.MetricsRecorder
	probeLimit       int
	logger           *slog.Logger
	now              func() time.Time

	dummyHash func() string
}

// AuthServiceParams holds dependencies for AuthService, injected by Fx.
type AuthServiceParams struct {
	fx.In

	TxManager        repository.TransactionManager
	UserRepo         repository.UserRepository
	RefreshTokenRepo repository.RefreshTokenRepository
	PasswordHasher   service.PasswordHasher
	TokenHasher      service.TokenHasher
	TokenService     service.TokenService
	Metrics          service.MetricsRecorder
	Config           *config.Config
	Logger           *slog.Logger
}

// NewAuthService is the constructor for authService.
func NewAuthService(params AuthServiceParams) usecase.AuthUsecase {
	probeLimit := params.Config.Auth.RefreshTokenProbeLimit
	if probeLimit <= 0 {
		probeLimit = 1
	}

	srv := &authService{
		txManager:        params.TxManager,
		userRepo:         params.UserRepo,
		refreshTokenRepo: params.RefreshTokenRepo,
		passwordHasher:   params.PasswordHasher,
		tokenHasher:      params.TokenHasher,
		tokenService:     params.TokenService,
		metrics:          params.Metrics,
		probeLimit:       probeLimit,
		logger:           params.Logger,
		now:              time.Now,
	}
	srv.dummyHash = sync.OnceValue(func() string {
		hash, err := srv.passwordHasher.Hash(dummyPassword)
		if err != nil {
			srv.logger.Error("Failed to prepare dummy password hash", slog.Any("error", err))
		}

		return hash
	})

	return srv
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *authService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

func (srv *authService) observe(operation string, err error) {
	outcome := service.OutcomeSuccess
	if err != nil {
		outcome = service.OutcomeFailure
	}
	srv.metrics.ObserveAuth(operation, outcome)
}

// Login authenticates by email and password. Unknown email and wrong password
// are indistinguishable to the caller.
func (srv *authService) Login(ctx context.Context, input usecase.LoginInput) (output *usecase.AuthOutput, err error) {
	defer func() { srv.observe(opLogin, err) }()

	email := normalizeEmail(input.Email)
	srv.log(ctx).Debug("Starting user login", slog.String("email", email))

	// 1. Look up the user.
	user, err := srv.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			srv.passwordHasher.Check(input.Password, srv.dummyHash())
			srv.log(ctx).Warn("Login failed", slog.String("email", email), slog.String("reason", "unknown email"))

			return nil, errors.Wrap(domainerrors.ErrInvalidCredentials, "login failed")
		}

		return nil, errors.Wrap(err, "failed to find user by email")
	}

	// 2. Check password outside any transaction (bcrypt is CPU-bound).
	if !srv.passwordHasher.Check(input.Password, user.PasswordHash) {
		srv.log(ctx).Warn("Login failed", slog.String("email", email), slog.String("reason", "password mismatch"))

		return nil, errors.Wrap(domainerrors.ErrInvalidCredentials, "login failed")
	}

	// 3. Issue and persist the new pair.
	output, err = srv.issueTokens(ctx, user, nil)
	if err != nil {
		return nil, err
	}
	srv.log(ctx).Info("User logged in", slog.Any("user_id", user.ID))

	return output, nil
}

// Refresh rotates a refresh token. The presented token is revoked with a
// conditional update, so of two concurrent refreshes with the same token
// exactly one wins and the other sees ErrInvalidToken.
func (srv *authService) Refresh(ctx context.Context, refreshToken string) (output *usecase.AuthOutput, err error) {
	defer func() { srv.observe(opRefresh, err) }()

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, errors.Wrap(domainerrors.ErrMissingToken, "refresh token is required")
	}

	// 1. Verify signature and expiry.
	claims, err := srv.tokenService.ValidateRefreshToken(refreshToken)
	if err != nil {
		srv.log(ctx).Warn("Refresh token rejected", slog.Any("error", err))

		return nil, errors.Wrap(domainerrors.ErrInvalidToken, "refresh token verification failed")
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrInvalidToken, "refresh token subject")
	}

	// 2. The user must still exist.
	user, err := srv.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	// 3. Match the raw token against the newest active stored hashes.
	matched, err := srv.matchStoredToken(ctx, userID, refreshToken)
	if err != nil {
		return nil, err
	}
	if matched == nil {
		srv.log(ctx).Warn("Refresh token not found among active tokens", slog.Any("user_id", userID))

		return nil, errors.Wrap(domainerrors.ErrInvalidToken, "refresh token is revoked or unknown")
	}

	// 4. Revoke it and issue the replacement in the same transaction.
	output, err = srv.issueTokens(ctx, user, &matched.ID)
	if err != nil {
		return nil, err
	}
	srv.log(ctx).Debug("Refresh token rotated", slog.Any("user_id", userID))

	return output, nil
}

// Logout revokes the presented refresh token when it verifies and matches.
// Every failure is logged and swallowed.
func (srv *authService) Logout(ctx context.Context, refreshToken string) error {
	var err error
	defer func() { srv.observe(opLogout, err) }()

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil
	}

	claims, verr := srv.tokenService.ValidateRefreshToken(refreshToken)
	if verr != nil {
		srv.log(ctx).Debug("Logout with unverifiable token", slog.Any("error", verr))

		return nil
	}
	userID, verr := claims.UserID()
	if verr != nil {
		return nil
	}

	matched, err := srv.matchStoredToken(ctx, userID, refreshToken)
	if err != nil {
		srv.log(ctx).Warn("Logout lookup failed", slog.Any("error", err))

		return nil
	}
	if matched == nil {
		return nil
	}

	if err = srv.refreshTokenRepo.Revoke(ctx, matched.ID, srv.now()); err != nil && !errors.Is(err, repository.ErrRefreshTokenNotFound) {
		srv.log(ctx).Warn("Logout revoke failed", slog.Any("error", err), slog.Any("user_id", userID))

		return nil
	}
	srv.log(ctx).Info("User logged out", slog.Any("user_id", userID))

	return nil
}

// GetMe returns the authenticated user's current record.
func (srv *authService) GetMe(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	return srv.findUser(ctx, userID)
}

// VerifyAccessToken checks an access token and returns its claims.
func (srv *authService) VerifyAccessToken(ctx context.Context, accessToken string) (*service.Claims, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, errors.Wrap(domainerrors.ErrMissingToken, "access token is required")
	}

	claims, err := srv.tokenService.ValidateAccessToken(accessToken)
	if err != nil {
		srv.log(ctx).Debug("Access token rejected", slog.Any("error", err))

		return nil, errors.Wrap(domainerrors.ErrInvalidToken, "access token verification failed")
	}

	return claims, nil
}

func (srv *authService) findUser(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	user, err := srv.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, errors.Wrap(domainerrors.ErrUserNotFound, "user no longer exists")
		}

		return nil, errors.Wrap(err, "failed to find user")
	}

	return user, nil
}

// matchStoredToken probes at most probeLimit of the user's newest active
// tokens. It returns nil without error when none matches.
func (srv *authService) matchStoredToken(ctx context.Context, userID uuid.UUID, rawToken string) (*entity.RefreshToken, error) {
	tokens, err := srv.refreshTokenRepo.FindActiveByUserID(ctx, userID, srv.now(), srv.probeLimit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list active refresh tokens")
	}

	for _, token := range tokens {
		if srv.tokenHasher.Check(rawToken, token.TokenHash) {
			return token, nil
		}
	}

	return nil, nil
}

// issueTokens signs a pair, then in one transaction locks the user row,
// revokes the presented token (when rotating), revokes every other active
// token of the user and stores the new hash.
func (srv *authService) issueTokens(ctx context.Context, user *entity.User, rotatedID *uuid.UUID) (*usecase.AuthOutput, error) {
	pair, err := srv.tokenService.IssueTokens(entity.PayloadFromUser(user))
	if err != nil {
		return nil, errors.Wrap(err, "failed to issue tokens")
	}

	tokenHash, err := srv.tokenHasher.Hash(pair.RefreshToken)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrPasswordHashFailed, err.Error())
	}

	now := srv.now()
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		refreshRepo := repoFactory.RefreshTokenRepo()

		// 1. Lock the user row; issuances for one user run one at a time.
		if err := repoFactory.UserRepo().LockByID(ctx, user.ID); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return errors.Wrap(domainerrors.ErrUserNotFound, "user no longer exists")
			}

			return errors.Wrap(err, "failed to lock user")
		}

		// 2. Claim the presented token; losing a concurrent rotation ends here.
		if rotatedID != nil {
			if err := refreshRepo.Revoke(ctx, *rotatedID, now); err != nil {
				if errors.Is(err, repository.ErrRefreshTokenNotFound) {
					return errors.Wrap(domainerrors.ErrInvalidToken, "refresh token already used")
				}

				return errors.Wrap(err, "failed to revoke presented refresh token")
			}
		}

		// 3. Keep at most one active token per user.
		if _, err := refreshRepo.RevokeAllByUserID(ctx, user.ID, now); err != nil {
			return errors.Wrap(err, "failed to revoke previous refresh tokens")
		}

		// 4. Store the new token hash.
		if err := refreshRepo.Create(ctx, &entity.RefreshToken{
			UserID:    user.ID,
			TokenHash: tokenHash,
			ExpiresAt: pair.RefreshTokenExpiresAt,
			CreatedAt: now,
		}); err != nil {
			return errors.Wrap(err, "failed to store refresh token")
		}

		return nil
	})
	if err != nil {
		srv.log(ctx).Warn("Failed to persist refresh token", slog.Any("error", err), slog.Any("user_id", user.ID))

		return nil, err
	}

	return &usecase.AuthOutput{
		AccessToken:           pair.AccessToken,
		RefreshToken:          pair.RefreshToken,
		RefreshTokenExpiresAt: pair.RefreshTokenExpiresAt,
		User:                  user,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
