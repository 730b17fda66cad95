package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"agriconnect/internal/domain"
	applog "agriconnect/internal/log"
)

const genericError = "something went wrong, please try again"

var statusByError = []struct {
	err    error
	status int
}{
	{domain.ErrValidation, fiber.StatusBadRequest},
	{domain.ErrInvalidStatus, fiber.StatusBadRequest},
	{domain.ErrProductNotFound, fiber.StatusNotFound},
	{domain.ErrOrderNotFound, fiber.StatusNotFound},
	{domain.ErrInsufficientInventory, fiber.StatusConflict},
	{domain.ErrInvalidTransition, fiber.StatusConflict},
	{domain.ErrProductInUse, fiber.StatusConflict},
	{domain.ErrEmailTaken, fiber.StatusConflict},
	{domain.ErrUnauthorized, fiber.StatusForbidden},
	{domain.ErrBadCreds, fiber.StatusUnauthorized},
}

// StatusFor maps a service error to its HTTP status. Unknown errors are 500.
func StatusFor(err error) int {
	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return fiber.StatusInternalServerError
}

// fail writes err as {"error": ...}. Server errors are logged and replaced
// by a generic message.
func fail(c *fiber.Ctx, action string, err error) error {
	return failWith(c, action, err, StatusFor(err))
}

func failWith(c *fiber.Ctx, action string, err error, status int) error {
	switch {
	case status >= 500:
		applog.Error(c, action, err, nil)
		return c.Status(status).JSON(fiber.Map{"error": genericError})
	case status == fiber.StatusForbidden:
		applog.Security(c, action+".denied", map[string]any{"reason": err.Error()})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func badRequest(c *fiber.Ctx, msg string) error {
	applog.Security(c, "validation.fail", map[string]any{"reason": msg})
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// ErrorHandler is the app-wide fallback for panics and unhandled errors.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < 500 {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	applog.Error(c, "server.error", err, nil)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": genericError})
}
