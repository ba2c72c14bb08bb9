package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func newApp() *fiber.App {
	app := fiber.New()
	app.Get("/scoped", Protected(secret), OrganizationScope(), func(c *fiber.Ctx) error {
		return c.SendString(OrganizationID(c).String())
	})
	return app
}

func TestOrganizationScope(t *testing.T) {
	orgID := uuid.New()
	app := newApp()

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing token", "", fiber.StatusBadRequest},
		{"bad signature", "Bearer " + func() string {
			tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"organization_id": orgID.String()}).SignedString([]byte("other"))
			return tok
		}(), fiber.StatusUnauthorized},
		{"no organization claim", "Bearer " + sign(t, jwt.MapClaims{"user_id": "u1", "exp": time.Now().Add(time.Hour).Unix()}), fiber.StatusForbidden},
		{"scoped", "Bearer " + sign(t, jwt.MapClaims{"organization_id": orgID.String(), "exp": time.Now().Add(time.Hour).Unix()}), fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/scoped", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
