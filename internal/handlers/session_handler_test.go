package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdantlab/leaflens-backend/internal/config"
	"github.com/verdantlab/leaflens-backend/internal/dto"
	"github.com/verdantlab/leaflens-backend/internal/models"
)

const sessionTestSecret = "session-test-secret"

func sessionTestApp() *fiber.App {
	app := fiber.New()
	handler := NewSessionHandler(&config.Config{JWTSecret: sessionTestSecret})
	app.Get("/api/session", handler.Current)
	return app
}

func signedToken(t *testing.T, secret, role string) (uuid.UUID, string) {
	t.Helper()
	id := uuid.New()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   id.String(),
		"email": "leaf@example.com",
		"role":  role,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return id, signed
}

func fetchSession(t *testing.T, app *fiber.App, authorization string) dto.SessionResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	if authorization != "" {
		req.Header.Set(fiber.HeaderAuthorization, authorization)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body dto.SessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestSessionCurrent_AnonymousGetsAuthSurface(t *testing.T) {
	app := sessionTestApp()

	body := fetchSession(t, app, "")
	assert.Equal(t, SurfaceAuth, body.Surface)
	assert.Nil(t, body.User)
}

func TestSessionCurrent_UserAndAdminSurfaces(t *testing.T) {
	app := sessionTestApp()

	for role, surface := range map[string]string{
		models.RoleUser:  SurfaceUser,
		models.RoleAdmin: SurfaceAdmin,
	} {
		id, signed := signedToken(t, sessionTestSecret, role)

		body := fetchSession(t, app, "Bearer "+signed)
		assert.Equal(t, surface, body.Surface)
		require.NotNil(t, body.User)
		assert.Equal(t, id, body.User.ID)
		assert.Equal(t, "leaf@example.com", body.User.Email)
		assert.Equal(t, role, body.User.Role)
	}
}

func TestSessionCurrent_BadTokenFallsBackToAuthSurface(t *testing.T) {
	app := sessionTestApp()

	_, forged := signedToken(t, "some-other-secret", models.RoleUser)

	for name, header := range map[string]string{
		"wrong signing key": "Bearer " + forged,
		"garbage token":     "Bearer not-a-jwt",
		"missing scheme":    "Basic dXNlcjpwYXNz",
	} {
		body := fetchSession(t, app, header)
		assert.Equal(t, SurfaceAuth, body.Surface, name)
		assert.Nil(t, body.User, name)
	}
}

func TestSurfaceFor(t *testing.T) {
	assert.Equal(t, SurfaceAdmin, SurfaceFor(models.RoleAdmin))
	assert.Equal(t, SurfaceUser, SurfaceFor(models.RoleUser))
	assert.Equal(t, SurfaceAuth, SurfaceFor(""))
	assert.Equal(t, SurfaceAuth, SurfaceFor("superuser"))
}
