package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	applog "agriconnect/internal/log"
	"agriconnect/internal/services"
)

type AuthHandler struct {
	Auth         *services.AuthService
	SecureCookie bool
}

func (h *AuthHandler) setSession(c *fiber.Ctx, token string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   h.SecureCookie,
		Expires:  expires,
	})
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var in services.RegisterInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	ctx, cancel := writeCtx(c)
	defer cancel()

	u, token, err := h.Auth.Register(ctx, in)
	if err != nil {
		return fail(c, "auth.register", err)
	}
	h.setSession(c, token, time.Time{})
	applog.Audit(c, "auth.register", map[string]any{"user_id": u.ID, "role": u.Role})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"token": token, "user": u})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var in loginRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	ctx, cancel := writeCtx(c)
	defer cancel()

	u, token, err := h.Auth.Login(ctx, in.Email, in.Password)
	if err != nil {
		applog.Security(c, "auth.login.fail", map[string]any{"email": in.Email})
		return fail(c, "auth.login", err)
	}
	h.setSession(c, token, time.Time{})
	applog.Audit(c, "auth.login.success", map[string]any{"user_id": u.ID})
	return c.JSON(fiber.Map{"token": token, "user": u})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	ctx, cancel := writeCtx(c)
	defer cancel()
	if tok := sessionToken(c); tok != "" {
		if err := h.Auth.Logout(ctx, tok); err != nil {
			return fail(c, "auth.logout", err)
		}
	}
	h.setSession(c, "", time.Now().Add(-time.Hour))
	applog.Audit(c, "auth.logout", nil)
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	return c.JSON(currentUser(c))
}
