package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	writeTimeout = 5 * time.Second
	readTimeout  = 3 * time.Second
)

func writeCtx(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), writeTimeout)
}

func readCtx(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), readTimeout)
}
