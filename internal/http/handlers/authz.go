package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"agriconnect/internal/domain"
	applog "agriconnect/internal/log"
	"agriconnect/internal/services"
)

const sessionCookie = "sid"

func sessionToken(c *fiber.Ctx) string {
	if h := c.Get(fiber.HeaderAuthorization); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
	}
	return c.Cookies(sessionCookie)
}

// Authenticate puts the session's user in c.Locals("user") when the
// request carries a valid token. It never rejects.
func Authenticate(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tok := sessionToken(c)
		if tok == "" {
			return c.Next()
		}
		u, err := auth.CurrentUser(c.UserContext(), tok)
		if err != nil {
			return fail(c, "auth.session", err)
		}
		if u != nil {
			c.Locals("user", u)
		}
		return c.Next()
	}
}

func currentUser(c *fiber.Ctx) *domain.User {
	u, _ := c.Locals("user").(*domain.User)
	return u
}

// RequireRole admits logged-in users holding one of roles; no roles means
// any logged-in user.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u := currentUser(c)
		if u == nil {
			applog.Security(c, "access.denied.anonymous", nil)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "login required"})
		}
		if len(roles) == 0 {
			return c.Next()
		}
		for _, r := range roles {
			if u.Role == r {
				return c.Next()
			}
		}
		applog.Security(c, "access.denied.role", map[string]any{"need": roles})
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "access denied"})
	}
}

// RequireUser admits any logged-in user.
func RequireUser() fiber.Handler { return RequireRole() }
