package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"meter/config"
	apimiddleware "meter/internal/delivery/api/middleware"
	"meter/internal/delivery/api/router"
	"meter/internal/delivery/api/router/handler"
	deliverycontext "meter/internal/delivery/context"
	"meter/internal/domain/entity"
	domainerrors "meter/internal/domain/errors"
	"meter/internal/domain/service"
	"meter/internal/errors"
	"meter/internal/infra/auth"
	"meter/internal/infra/metrics"
	"meter/internal/mocks"
	"meter/internal/usecase"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const validToken = "valid-access-token"

type apiFixture struct {
	echo      *echo.Echo
	authUC    *mocks.AuthUsecase
	catalogUC *mocks.CatalogUsecase
	user      *entity.User
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details any    `json:"details"`
	} `json:"error"`
	Meta struct {
		RequestID string `json:"request_id"`
	} `json:"meta"`
}

func newAPIFixture(t *testing.T, env string) *apiFixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.Env.Env = env
	cfg.HTTP.MaxRequestBodySize = "100KB"
	cfg.JWT.AccessSecret = "access-secret-at-least-24-chars"
	cfg.JWT.RefreshSecret = "refresh-secret-at-least-24-chars"
	cfg.JWT.AccessTTL = 15 * time.Minute
	cfg.JWT.RefreshTTL = 7 * 24 * time.Hour
	cfg.JWT.RefreshCookieName = "refresh_token"
	cfg.CORS.FrontendOrigin = "http://localhost:3000"
	cfg.App.Name = "api"
	cfg.App.Version = "0.1.0"

	tokenService, err := auth.NewJWTService(cfg)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	authUC := &mocks.AuthUsecase{}
	catalogUC := &mocks.CatalogUsecase{}
	m := metrics.New(cfg)

	e := newEcho(ServerParams{
		Cfg:     cfg,
		Logger:  logger,
		Metrics: m,
		RouterParams: router.RouterParams{
			AuthHandler: handler.NewAuthHandler(handler.AuthHandlerParams{
				AuthUC:       authUC,
				TokenService: tokenService,
				Config:       cfg,
				Logger:       logger,
			}),
			BillingHandler: handler.NewBillingHandler(handler.BillingHandlerParams{CatalogUC: catalogUC, Logger: logger}),
			HealthHandler:  handler.NewHealthHandler(cfg),
			AuthMiddleware: apimiddleware.NewAuthMiddleware(authUC),
			Metrics:        m,
		},
	})

	user := &entity.User{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		Email:          "demo@example.com",
		Role:           entity.RoleOwner,
	}

	t.Cleanup(func() {
		authUC.AssertExpectations(t)
		catalogUC.AssertExpectations(t)
	})

	return &apiFixture{echo: e, authUC: authUC, catalogUC: catalogUC, user: user}
}

func (f *apiFixture) do(method, path, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, fn := range mutate {
		fn(req)
	}
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)

	return rec
}

// authenticateAs makes validToken verify to the fixture user with role.
func (f *apiFixture) authenticateAs(role entity.Role) {
	f.authUC.On("VerifyAccessToken", mock.Anything, validToken).Return(&service.Claims{
		Email:            f.user.Email,
		OrganizationID:   f.user.OrganizationID,
		Role:             role,
		RegisteredClaims: jwt.RegisteredClaims{Subject: f.user.ID.String()},
	}, nil)
}

func withBearer(scheme string) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set(echo.HeaderAuthorization, scheme+" "+validToken)
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	return body
}

func refreshCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == "refresh_token" {
			return cookie
		}
	}

	return nil
}

func TestAPI_Login(t *testing.T) {
	f := newAPIFixture(t, "develop")
	f.authUC.On("Login", mock.Anything, usecase.LoginInput{Email: "demo@example.com", Password: "secret"}).
		Return(&usecase.AuthOutput{
			AccessToken:           "access",
			RefreshToken:          "refresh",
			RefreshTokenExpiresAt: time.Now().Add(7 * 24 * time.Hour),
			User:                  f.user,
		}, nil).Once()

	rec := f.do(http.MethodPost, "/api/auth/login", `{"email":"demo@example.com","password":"secret"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "access", body["accessToken"])
	assert.NotContains(t, body, "refreshToken")
	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, f.user.ID.String(), user["id"])
	assert.Equal(t, f.user.OrganizationID.String(), user["organizationId"])
	assert.Equal(t, "OWNER", user["role"])
	assert.NotContains(t, user, "passwordHash")

	cookie := refreshCookie(rec)
	require.NotNil(t, cookie)
	assert.Equal(t, "refresh", cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.False(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, 7*24*60*60, cookie.MaxAge)
}

func TestAPI_Login_SecureCookieInProduction(t *testing.T) {
	f := newAPIFixture(t, "production")
	f.authUC.On("Login", mock.Anything, mock.Anything).
		Return(&usecase.AuthOutput{AccessToken: "access", RefreshToken: "refresh", User: f.user}, nil).Once()

	rec := f.do(http.MethodPost, "/api/auth/login", `{"email":"demo@example.com","password":"secret"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	cookie := refreshCookie(rec)
	require.NotNil(t, cookie)
	assert.True(t, cookie.Secure)
}

func TestAPI_Login_ValidationFailure(t *testing.T) {
	f := newAPIFixture(t, "develop")

	rec := f.do(http.MethodPost, "/api/auth/login", `{"email":"not-an-email"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_FAILED", body.Error.Code)
	assert.NotNil(t, body.Error.Details)
	f.authUC.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
}

func TestAPI_Login_InvalidCredentials(t *testing.T) {
	f := newAPIFixture(t, "develop")
	f.authUC.On("Login", mock.Anything, mock.Anything).
		Return(nil, errors.Wrap(domainerrors.ErrInvalidCredentials, "login failed")).Once()

	rec := f.do(http.MethodPost, "/api/auth/login", `{"email":"demo@example.com","password":"wrong"}`,
		func(req *http.Request) { req.Header.Set(deliverycontext.HeaderXRequestID, "req-123") })
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	body := decodeError(t, rec)
	assert.Equal(t, "INVALID_CREDENTIALS", body.Error.Code)
	assert.Nil(t, body.Error.Details)
	assert.Equal(t, "req-123", body.Meta.RequestID)
	assert.Equal(t, "req-123", rec.Header().Get(deliverycontext.HeaderXRequestID))
	assert.Nil(t, refreshCookie(rec))
}

func TestAPI_Refresh_TokenSource(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		cookie string
		want   string
	}{
		{name: "cookie only", cookie: "from-cookie", want: "from-cookie"},
		{name: "body wins over cookie", body: `{"refreshToken":"from-body"}`, cookie: "from-cookie", want: "from-body"},
		{name: "neither", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t, "develop")
			f.authUC.On("Refresh", mock.Anything, tt.want).
				Return(&usecase.AuthOutput{AccessToken: "access-2", RefreshToken: "refresh-2", User: f.user}, nil).Once()

			rec := f.do(http.MethodPost, "/api/auth/refresh", tt.body, func(req *http.Request) {
				if tt.cookie != "" {
					req.AddCookie(&http.Cookie{Name: "refresh_token", Value: tt.cookie})
				}
			})
			require.Equal(t, http.StatusOK, rec.Code)

			cookie := refreshCookie(rec)
			require.NotNil(t, cookie)
			assert.Equal(t, "refresh-2", cookie.Value)
		})
	}
}

func TestAPI_Refresh_MissingToken(t *testing.T) {
	f := newAPIFixture(t, "develop")
	f.authUC.On("Refresh", mock.Anything, "").
		Return(nil, errors.Wrap(domainerrors.ErrMissingToken, "refresh token is required")).Once()

	rec := f.do(http.MethodPost, "/api/auth/refresh", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "MISSING_TOKEN", decodeError(t, rec).Error.Code)
}

func TestAPI_Logout_ClearsCookie(t *testing.T) {
	f := newAPIFixture(t, "develop")
	f.authUC.On("Logout", mock.Anything, "stale").Return(nil).Once()

	rec := f.do(http.MethodPost, "/api/auth/logout", "", func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "stale"})
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	cookie := refreshCookie(rec)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Less(t, cookie.MaxAge, 0)
}

func TestAPI_Me(t *testing.T) {
	f := newAPIFixture(t, "develop")

	rec := f.do(http.MethodGet, "/api/auth/me", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "MISSING_TOKEN", decodeError(t, rec).Error.Code)

	rec = f.do(http.MethodGet, "/api/auth/me", "", func(req *http.Request) {
		req.Header.Set(echo.HeaderAuthorization, "Basic abc")
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "MISSING_TOKEN", decodeError(t, rec).Error.Code)

	f.authenticateAs(entity.RoleMember)
	f.authUC.On("GetMe", mock.Anything, f.user.ID).Return(f.user, nil).Once()

	// The scheme is matched case-insensitively.
	rec = f.do(http.MethodGet, "/api/auth/me", "", withBearer("bearer"))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		User handler.AuthUserResponse `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, f.user.ID, body.User.ID)
	assert.Equal(t, f.user.Email, body.User.Email)
}

func TestAPI_Me_InvalidToken(t *testing.T) {
	f := newAPIFixture(t, "develop")
	f.authUC.On("VerifyAccessToken", mock.Anything, validToken).
		Return(nil, errors.Wrap(domainerrors.ErrInvalidToken, "expired")).Once()

	rec := f.do(http.MethodGet, "/api/auth/me", "", withBearer("Bearer"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", decodeError(t, rec).Error.Code)
}

func TestAPI_CatalogSync_RoleGate(t *testing.T) {
	tests := []struct {
		role    entity.Role
		allowed bool
	}{
		{role: entity.RoleOwner, allowed: true},
		{role: entity.RoleAdmin, allowed: true},
		{role: entity.RoleMember, allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.role.String(), func(t *testing.T) {
			f := newAPIFixture(t, "develop")
			f.authenticateAs(tt.role)
			if tt.allowed {
				f.catalogUC.On("SyncCatalog", mock.Anything).Return(&usecase.SyncResult{
					SyncedProducts: 2,
					SyncedPrices:   3,
					SyncedAt:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
				}, nil).Once()
			}

			rec := f.do(http.MethodPost, "/api/billing/catalog/sync", "", withBearer("Bearer"))
			if !tt.allowed {
				require.Equal(t, http.StatusForbidden, rec.Code)
				body := decodeError(t, rec)
				assert.Equal(t, "FORBIDDEN", body.Error.Code)
				assert.Equal(t, "Only owner/admin can sync billing catalog", body.Error.Message)
				f.catalogUC.AssertNotCalled(t, "SyncCatalog", mock.Anything)

				return
			}

			require.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `{"syncedProducts":2,"syncedPrices":3,"syncedAt":"2026-01-02T03:04:05Z"}`, rec.Body.String())
		})
	}
}

func TestAPI_CatalogSync_Unauthenticated(t *testing.T) {
	f := newAPIFixture(t, "develop")

	rec := f.do(http.MethodPost, "/api/billing/catalog/sync", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_Plans(t *testing.T) {
	f := newAPIFixture(t, "develop")
	f.authenticateAs(entity.RoleMember)
	amount := int64(1500)
	f.catalogUC.On("GetPlans", mock.Anything).Return(&usecase.PlansOutput{Plans: []usecase.PlanView{{
		PriceID:         "price_1",
		ProductID:       "prod_1",
		ProductName:     "Starter",
		Active:          true,
		Type:            "recurring",
		Currency:        "usd",
		UnitAmount:      &amount,
		BillingStrategy: entity.BillingStrategyBasePlusOverage,
		Metadata:        map[string]string{},
	}}}, nil).Once()

	rec := f.do(http.MethodGet, "/api/billing/plans", "", withBearer("Bearer"))
	require.Equal(t, http.StatusOK, rec.Code)

	var body usecase.PlansOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Plans, 1)
	assert.Equal(t, "price_1", body.Plans[0].PriceID)
	assert.Equal(t, entity.BillingStrategyBasePlusOverage, body.Plans[0].BillingStrategy)
}

func TestAPI_StripeHealth(t *testing.T) {
	f := newAPIFixture(t, "develop")
	f.authenticateAs(entity.RoleMember)
	f.catalogUC.On("ProviderStatus", mock.Anything).Return(&usecase.ProviderStatus{
		Provider:  "stripe",
		Status:    "ok",
		AccountID: "acct_123",
	}, nil).Once()

	rec := f.do(http.MethodGet, "/api/stripe/health", "", withBearer("Bearer"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"provider":"stripe","status":"ok","accountId":"acct_123","livemode":false}`, rec.Body.String())
}

func TestAPI_StripeHealth_UpstreamUnavailable(t *testing.T) {
	f := newAPIFixture(t, "develop")
	f.authenticateAs(entity.RoleMember)
	f.catalogUC.On("ProviderStatus", mock.Anything).
		Return(nil, errors.Wrap(domainerrors.ErrUpstreamUnavailable, "retrieve account")).Once()

	rec := f.do(http.MethodGet, "/api/stripe/health", "", withBearer("Bearer"))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "UPSTREAM_UNAVAILABLE", decodeError(t, rec).Error.Code)
}

func TestAPI_HealthAndVersion(t *testing.T) {
	f := newAPIFixture(t, "develop")

	rec := f.do(http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	_, err := time.Parse(time.RFC3339Nano, health["timestamp"])
	assert.NoError(t, err)

	rec = f.do(http.MethodGet, "/api/version", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"name":"api","version":"0.1.0"}`, rec.Body.String())
}

func TestAPI_UnknownRouteAndMetrics(t *testing.T) {
	f := newAPIFixture(t, "develop")

	rec := f.do(http.MethodGet, "/api/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Error.Code)

	f.do(http.MethodGet, "/api/health", "")

	rec = f.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `meter_http_requests_total{method="GET",route="/api/health",status="200"} 1`)
}

func TestAPI_CORSAllowsFrontendWithCredentials(t *testing.T) {
	f := newAPIFixture(t, "develop")

	rec := f.do(http.MethodOptions, "/api/auth/login", "", func(req *http.Request) {
		req.Header.Set(echo.HeaderOrigin, "http://localhost:3000")
		req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "true", rec.Header().Get(echo.HeaderAccessControlAllowCredentials))
}
