// Package handler contains the HTTP handlers of the public API.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"meter/config"
	"meter/internal/delivery/api/response"
	"meter/internal/delivery/api/validator"
	deliverycontext "meter/internal/delivery/context"
	"meter/internal/domain/entity"
	domainerrors "meter/internal/domain/errors"
	"meter/internal/domain/service"
	"meter/internal/errors"
	"meter/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// AuthHandlerParams holds dependencies for AuthHandler, injected by Fx.
type AuthHandlerParams struct {
	fx.In

	AuthUC       usecase.AuthUsecase
	TokenService service.TokenService
	Config       *config.Config
	Logger       *slog.Logger
}

// AuthHandler serves login, refresh, logout and the current user.
type AuthHandler struct {
	authUC       usecase.AuthUsecase
	cookieName   string
	cookieMaxAge time.Duration
	secureCookie bool
	logger       *slog.Logger
}

// NewAuthHandler is the constructor for AuthHandler
func NewAuthHandler(params AuthHandlerParams) *AuthHandler {
	return &AuthHandler{
		authUC:       params.AuthUC,
		cookieName:   params.Config.JWT.RefreshCookieName,
		cookieMaxAge: params.TokenService.RefreshTokenDuration(),
		secureCookie: params.Config.IsProduction(),
		logger:       params.Logger,
	}
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest is the optional body of refresh and logout. The cookie is
// used when the body carries no token.
type RefreshRequest struct {
	RefreshToken *string `json:"refreshToken"`
}

// AuthUserResponse is the public view of a user.
type AuthUserResponse struct {
	ID             uuid.UUID   `json:"id"`
	OrganizationID uuid.UUID   `json:"organizationId"`
	Email          string      `json:"email"`
	Role           entity.Role `json:"role"`
}

// TokenResponse is returned by login and refresh. The refresh token travels
// only in the cookie.
type TokenResponse struct {
	AccessToken string           `json:"accessToken"`
	User        AuthUserResponse `json:"user"`
}

// Login handles the user login request.
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "Invalid login input")
	}
	if err := c.Validate(&req); err != nil {
		return response.ValidationError(c, validator.Fields(err))
	}

	output, err := h.authUC.Login(c.Request().Context(), usecase.LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		return errors.WithStack(err)
	}
	h.setRefreshCookie(c, output.RefreshToken)

	return c.JSON(http.StatusOK, tokenResponse(output))
}

// Refresh rotates the refresh token taken from the body or the cookie.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "Invalid refresh input")
	}

	output, err := h.authUC.Refresh(c.Request().Context(), h.refreshToken(c, req))
	if err != nil {
		return errors.WithStack(err)
	}
	h.setRefreshCookie(c, output.RefreshToken)

	return c.JSON(http.StatusOK, tokenResponse(output))
}

// Logout revokes the presented refresh token and clears the cookie. It
// succeeds whatever the token's state.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		h.logger.Debug("Ignoring malformed logout body", slog.Any("error", err))
	}

	if err := h.authUC.Logout(c.Request().Context(), h.refreshToken(c, req)); err != nil {
		return errors.WithStack(err)
	}
	h.clearRefreshCookie(c)

	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// Me returns the authenticated user's current record.
func (h *AuthHandler) Me(c echo.Context) error {
	userID, ok := deliverycontext.GetUserID(c)
	if !ok {
		return errors.Wrap(domainerrors.ErrInvalidToken, "token subject")
	}

	user, err := h.authUC.GetMe(c.Request().Context(), userID)
	if err != nil {
		return errors.WithStack(err)
	}

	return c.JSON(http.StatusOK, map[string]AuthUserResponse{"user": authUserResponse(user)})
}

func (h *AuthHandler) refreshToken(c echo.Context, req RefreshRequest) string {
	if req.RefreshToken != nil {
		return *req.RefreshToken
	}
	if cookie, err := c.Cookie(h.cookieName); err == nil {
		return cookie.Value
	}

	return ""
}

func (h *AuthHandler) setRefreshCookie(c echo.Context, token string) {
	cookie := h.baseCookie()
	cookie.Value = token
	cookie.MaxAge = int(h.cookieMaxAge / time.Second)
	cookie.Expires = time.Now().Add(h.cookieMaxAge)
	c.SetCookie(cookie)
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	cookie := h.baseCookie()
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0)
	c.SetCookie(cookie)
}

func (h *AuthHandler) baseCookie() *http.Cookie {
	return &http.Cookie{
		Name:     h.cookieName,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

func tokenResponse(output *usecase.AuthOutput) TokenResponse {
	return TokenResponse{
		AccessToken: output.AccessToken,
		User:        authUserResponse(output.User),
	}
}

func authUserResponse(user *entity.User) AuthUserResponse {
	return AuthUserResponse{
		ID:             user.ID,
		OrganizationID: user.OrganizationID,
		Email:          user.Email,
		Role:           user.Role,
	}
}
