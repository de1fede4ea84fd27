package auth

import (
	"strings"

	"medchain-backend/internal/config"
	"medchain-backend/internal/ledger"
	"medchain-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	CtxUserIDKey   = "user_id"
	CtxUserRoleKey = "user_role"
	CtxSessionKey  = "session"
)

// Session is the authenticated caller, resolved from the bearer token on
// every request.
type Session struct {
	UserID string          `json:"userId"`
	Email  string          `json:"email"`
	Name   string          `json:"name"`
	Role   models.UserRole `json:"role"`
}

func (s Session) Actor() ledger.Actor {
	return ledger.Actor{ID: s.UserID, Role: s.Role, Name: s.Name}
}

func SessionFrom(c *fiber.Ctx) (Session, bool) {
	s, ok := c.Locals(CtxSessionKey).(Session)
	return s, ok
}

// RequireSession returns the session or a 401.
func RequireSession(c *fiber.Ctx) (Session, error) {
	s, ok := SessionFrom(c)
	if !ok {
		return Session{}, fiber.NewError(fiber.StatusUnauthorized, "authentication required")
	}
	return s, nil
}

func JWTMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing Authorization header")
		}
		if err := authenticate(c, cfg.JWTSecret, authHeader); err != nil {
			return err
		}
		return c.Next()
	}
}

// OptionalJWT attaches a session when a token is sent and lets anonymous
// requests through. A token that is present but invalid is still rejected.
func OptionalJWT(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if authHeader := c.Get("Authorization"); authHeader != "" {
			if err := authenticate(c, cfg.JWTSecret, authHeader); err != nil {
				return err
			}
		}
		return c.Next()
	}
}

func authenticate(c *fiber.Ctx, secret, authHeader string) error {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return fiber.NewError(fiber.StatusUnauthorized, "Authorization must be 'Bearer <token>'")
	}

	claims, err := ParseToken(secret, strings.TrimSpace(parts[1]))
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
	}

	c.Locals(CtxUserIDKey, claims.UserID)
	c.Locals(CtxUserRoleKey, claims.Role)
	c.Locals(CtxSessionKey, Session{
		UserID: claims.UserID,
		Email:  claims.Email,
		Name:   claims.Name,
		Role:   claims.Role,
	})
	return nil
}

// RequireRole admits sessions whose role tier matches one of allowedRoles,
// so Distributor passes wherever Wholesaler does.
func RequireRole(allowedRoles ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(CtxUserRoleKey).(models.UserRole)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "role unavailable")
		}

		for _, r := range allowedRoles {
			if r.Tier() == role.Tier() {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "insufficient permissions")
	}
}
