package auth

import (
	"time"

	"meter/config"
	"meter/internal/domain/entity"
	"meter/internal/domain/service"
	"meter/internal/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// jwtService signs HS256 tokens with independent secrets for access and refresh.
type jwtService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewJWTService builds the token service from the validated JWT config.
func NewJWTService(cfg *config.Config) (service.TokenService, error) {
	if cfg.JWT.AccessSecret == "" || cfg.JWT.RefreshSecret == "" {
		return nil, errors.New("jwt secrets must be provided")
	}
	if cfg.JWT.AccessTTL <= 0 || cfg.JWT.RefreshTTL <= 0 {
		return nil, errors.New("jwt token lifetimes must be positive")
	}

	return &jwtService{
		accessSecret:  []byte(cfg.JWT.AccessSecret),
		refreshSecret: []byte(cfg.JWT.RefreshSecret),
		accessTTL:     cfg.JWT.AccessTTL,
		refreshTTL:    cfg.JWT.RefreshTTL,
		now:           time.Now,
	}, nil
}

// IssueTokens signs an access and a refresh token for the same payload.
func (s *jwtService) IssueTokens(payload entity.TokenPayload) (*service.TokenPair, error) {
	issuedAt := s.now()

	accessToken, err := s.sign(payload, issuedAt, s.accessTTL, s.accessSecret)
	if err != nil {
		return nil, errors.Wrap(err, "sign access token")
	}

	refreshExpiresAt := issuedAt.Add(s.refreshTTL)
	refreshToken, err := s.sign(payload, issuedAt, s.refreshTTL, s.refreshSecret)
	if err != nil {
		return nil, errors.Wrap(err, "sign refresh token")
	}

	return &service.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		// Truncated to the second, matching the exp claim.
		RefreshTokenExpiresAt: refreshExpiresAt.Truncate(time.Second),
	}, nil
}

func (s *jwtService) ValidateAccessToken(token string) (*service.Claims, error) {
	return s.parse(token, s.accessSecret)
}

func (s *jwtService) ValidateRefreshToken(token string) (*service.Claims, error) {
	return s.parse(token, s.refreshSecret)
}

func (s *jwtService) AccessTokenDuration() time.Duration {
	return s.accessTTL
}

// RefreshTokenDuration returns the configured duration for refresh tokens.
func (s *jwtService) RefreshTokenDuration() time.Duration {
	return s.refreshTTL
}

func (s *jwtService) sign(payload entity.TokenPayload, issuedAt time.Time, ttl time.Duration, secret []byte) (string, error) {
	claims := service.Claims{
		Email:          payload.Email,
		OrganizationID: payload.OrganizationID,
		Role:           payload.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   payload.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
			// A random jti keeps two tokens minted in the same second distinct.
			ID: uuid.NewString(),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (s *jwtService) parse(tokenString string, secret []byte) (*service.Claims, error) {
	claims := &service.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}

		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if !token.Valid {
		return nil, errors.New("token is not valid")
	}
	if _, err := claims.UserID(); err != nil {
		return nil, errors.Wrap(err, "token subject is not a user id")
	}

	return claims, nil
}
