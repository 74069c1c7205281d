// Package middleware holds the echo middleware specific to the public API.
package middleware

import (
	"strings"

	deliverycontext "meter/internal/delivery/context"
	domainerrors "meter/internal/domain/errors"
	"meter/internal/errors"
	"meter/internal/usecase"

	"github.com/labstack/echo/v4"
)

const bearerScheme = "bearer"

// AuthMiddleware authenticates bearer access tokens and gates catalog sync by role.
type AuthMiddleware struct {
	authUC usecase.AuthUsecase
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(authUC usecase.AuthUsecase) *AuthMiddleware {
	return &AuthMiddleware{authUC: authUC}
}

// Authenticate verifies the Authorization bearer token and stores its claims.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if !ok {
			return errors.Wrap(domainerrors.ErrMissingToken, "authorization header")
		}

		claims, err := m.authUC.VerifyAccessToken(c.Request().Context(), token)
		if err != nil {
			return errors.WithStack(err)
		}
		deliverycontext.SetClaims(c, claims)

		return next(c)
	}
}

// RequireCatalogSync admits the roles allowed to sync the billing catalog.
// It must run after Authenticate. Other roles get a forbidden error.
func (m *AuthMiddleware) RequireCatalogSync() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := deliverycontext.GetClaims(c)
			if !ok {
				return errors.Wrap(domainerrors.ErrMissingToken, "no authenticated user")
			}
			if !claims.Role.CanSyncCatalog() {
				return errors.Wrapf(domainerrors.ErrCatalogSyncForbidden, "role %s", claims.Role)
			}

			return next(c)
		}
	}
}

// bearerToken extracts the credentials of a Bearer authorization header. The
// scheme is matched case-insensitively.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)

	return token, token != ""
}
