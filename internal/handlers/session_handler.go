package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/verdantlab/leaflens-backend/internal/config"
	"github.com/verdantlab/leaflens-backend/internal/dto"
	"github.com/verdantlab/leaflens-backend/internal/models"
)

const (
	SurfaceAuth  = "auth"
	SurfaceUser  = "user"
	SurfaceAdmin = "admin"
)

// SurfaceFor maps a session role to the client surface. Pure function of
// session state: no principal means the auth surface.
func SurfaceFor(role string) string {
	switch role {
	case models.RoleAdmin:
		return SurfaceAdmin
	case models.RoleUser:
		return SurfaceUser
	default:
		return SurfaceAuth
	}
}

// SessionHandler resolves which surface the client should render. It sits on
// a public route so an anonymous caller gets the auth surface instead of 401.
type SessionHandler struct {
	cfg *config.Config
}

func NewSessionHandler(cfg *config.Config) *SessionHandler {
	return &SessionHandler{cfg: cfg}
}

func (h *SessionHandler) Current(c *fiber.Ctx) error {
	claims, ok := h.bearerClaims(c)
	if !ok {
		return c.JSON(dto.SessionResponse{Surface: SurfaceAuth})
	}

	sub, _ := claims["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return c.JSON(dto.SessionResponse{Surface: SurfaceAuth})
	}

	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)

	return c.JSON(dto.SessionResponse{
		Surface: SurfaceFor(role),
		User:    &dto.UserResponse{ID: id, Email: email, Role: role},
	})
}

func (h *SessionHandler) bearerClaims(c *fiber.Ctx) (jwt.MapClaims, bool) {
	auth := c.Get(fiber.HeaderAuthorization)
	raw, found := strings.CutPrefix(auth, "Bearer ")
	if !found || raw == "" {
		return nil, false
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(h.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	return claims, ok
}
