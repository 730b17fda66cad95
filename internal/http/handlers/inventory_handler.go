package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"agriconnect/internal/services"
)

type InventoryHandler struct {
	Inv *services.InventoryService
}

func (h *InventoryHandler) Check(c *fiber.Ctx) error {
	raw := strings.TrimSpace(c.Query("productId"))
	if raw == "" {
		return badRequest(c, "missing productId")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return badRequest(c, "productId must be a positive integer")
	}

	ctx, cancel := readCtx(c)
	defer cancel()
	avail, err := h.Inv.CheckAvailability(ctx, id)
	if err != nil {
		return fail(c, "inventory.check", err)
	}
	return c.JSON(avail)
}
