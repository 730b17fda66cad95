package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	applog "agriconnect/internal/log"
	"agriconnect/internal/services"
)

type ProductHandler struct {
	Catalog *services.CatalogService
	Inv     *services.InventoryService
}

func optFloat(c *fiber.Ctx, key string) (*float64, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, false
	}
	return &f, true
}

// Search: GET /api/products?crop=&lat=&lng=&radius=&page=
func (h *ProductHandler) Search(c *fiber.Ctx) error {
	q := services.SearchQuery{
		Crop:     strings.TrimSpace(c.Query("crop")),
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("pageSize", 24),
	}
	if len(q.Crop) > 80 {
		return badRequest(c, "crop filter too long")
	}
	var ok bool
	if q.Lat, ok = optFloat(c, "lat"); !ok {
		return badRequest(c, "lat must be a number")
	}
	if q.Lng, ok = optFloat(c, "lng"); !ok {
		return badRequest(c, "lng must be a number")
	}
	if r, ok := optFloat(c, "radius"); !ok {
		return badRequest(c, "radius must be a number")
	} else if r != nil {
		q.RadiusKm = *r
	}

	ctx, cancel := readCtx(c)
	defer cancel()
	out, err := h.Catalog.Search(ctx, q)
	if err != nil {
		return fail(c, "products.search", err)
	}
	return c.JSON(out)
}

func (h *ProductHandler) Mine(c *fiber.Ctx) error {
	ctx, cancel := readCtx(c)
	defer cancel()
	out, err := h.Catalog.ListForFarmer(ctx, currentUser(c).ID)
	if err != nil {
		return fail(c, "products.mine", err)
	}
	return c.JSON(out)
}

func (h *ProductHandler) LowStock(c *fiber.Ctx) error {
	ctx, cancel := readCtx(c)
	defer cancel()
	out, err := h.Inv.LowStock(ctx, currentUser(c).ID)
	if err != nil {
		return fail(c, "products.low_stock", err)
	}
	return c.JSON(out)
}

func (h *ProductHandler) Create(c *fiber.Ctx) error {
	var in services.ProductInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	ctx, cancel := writeCtx(c)
	defer cancel()

	p, err := h.Catalog.Create(ctx, currentUser(c).ID, in)
	if err != nil {
		return fail(c, "products.create", err)
	}
	applog.Audit(c, "products.create", map[string]any{"product_id": p.ID, "crop": p.CropName})
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *ProductHandler) Update(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return badRequest(c, "invalid product id")
	}
	var in services.ProductUpdate
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	ctx, cancel := writeCtx(c)
	defer cancel()

	p, err := h.Catalog.Update(ctx, currentUser(c).ID, int64(id), in)
	if err != nil {
		return fail(c, "products.update", err)
	}
	applog.Audit(c, "products.update", map[string]any{
		"product_id": p.ID, "price": p.PricePerKg.String(), "qty": p.AvailableQty.String(),
	})
	return c.JSON(p)
}

func (h *ProductHandler) Delete(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return badRequest(c, "invalid product id")
	}
	ctx, cancel := writeCtx(c)
	defer cancel()

	if err := h.Catalog.Delete(ctx, currentUser(c).ID, int64(id)); err != nil {
		return fail(c, "products.delete", err)
	}
	applog.Audit(c, "products.delete", map[string]any{"product_id": id})
	return c.SendStatus(fiber.StatusNoContent)
}
