package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	deliverycontext "meter/internal/delivery/context"
	"meter/internal/domain/entity"
	domainerrors "meter/internal/domain/errors"
	"meter/internal/domain/service"
	"meter/internal/errors"
	"meter/internal/mocks"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

func newAuthContext() (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/billing/catalog/sync", nil)
	rec := httptest.NewRecorder()

	return e.NewContext(req, rec), rec
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{header: "Bearer abc", want: "abc", ok: true},
		{header: "bearer abc", want: "abc", ok: true},
		{header: "BEARER   abc  ", want: "abc", ok: true},
		{header: "Basic abc"},
		{header: "Bearer"},
		{header: "Bearer   "},
		{header: ""},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, ok := bearerToken(tt.header)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequireCatalogSync(t *testing.T) {
	gate := NewAuthMiddleware(&mocks.AuthUsecase{}).RequireCatalogSync()(okHandler)

	tests := []struct {
		role    entity.Role
		allowed bool
	}{
		{role: entity.RoleOwner, allowed: true},
		{role: entity.RoleAdmin, allowed: true},
		{role: entity.RoleMember, allowed: false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			c, rec := newAuthContext()
			deliverycontext.SetClaims(c, &service.Claims{Role: tt.role})

			err := gate(c)
			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, http.StatusNoContent, rec.Code)

				return
			}
			assert.True(t, errors.Is(err, domainerrors.ErrForbidden))
			assert.True(t, errors.Is(err, domainerrors.ErrCatalogSyncForbidden))
		})
	}

	t.Run("without claims", func(t *testing.T) {
		c, _ := newAuthContext()

		err := gate(c)
		assert.True(t, errors.Is(err, domainerrors.ErrMissingToken))
	})
}
