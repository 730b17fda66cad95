package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"agriconnect/internal/config"
	"agriconnect/internal/domain"
	applog "agriconnect/internal/log"
)

// NewApp builds the fiber app with middleware and every route.
func NewApp(cfg config.Config, d *Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      cfg.ServiceName,
		BodyLimit:    1 << 20, // 1 MiB
		ErrorHandler: ErrorHandler,
	})

	// ---------- Middlewares ----------
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimitPerMin,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/healthz"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.global.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	}))
	app.Use(Authenticate(d.Auth))

	api := app.Group("/api")

	// Auth (login throttled)
	auth := api.Group("/auth")
	auth.Post("/register", d.AuthHandler.Register)
	auth.Post("/login", limiter.New(limiter.Config{
		Max:        5,
		Expiration: 10 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many attempts, please try again later"})
		},
	}), d.AuthHandler.Login)
	auth.Post("/logout", d.AuthHandler.Logout)
	auth.Get("/me", RequireUser(), d.AuthHandler.Me)

	// Catalog
	farmer := RequireRole(domain.RoleFarmer)
	api.Get("/products", d.ProductHandler.Search)
	api.Get("/products/mine", farmer, d.ProductHandler.Mine)
	api.Get("/products/low-stock", farmer, d.ProductHandler.LowStock)
	api.Post("/products", farmer, d.ProductHandler.Create)
	api.Put("/products/:id", farmer, d.ProductHandler.Update)
	api.Delete("/products/:id", farmer, d.ProductHandler.Delete)

	api.Get("/availability", limiter.New(limiter.Config{
		Max:        15,
		Expiration: 30 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|avail"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.availability.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	}), d.InventoryHandler.Check)

	// Orders; fixed paths before /:uuid
	orders := api.Group("/orders")
	orders.Post("/", RequireRole(domain.RoleConsumer), d.OrderHandler.Place)
	orders.Get("/consumer", RequireRole(domain.RoleConsumer), d.OrderHandler.ListConsumer)
	orders.Get("/farmer", farmer, d.OrderHandler.ListFarmer)
	orders.Get("/earnings", farmer, d.OrderHandler.Earnings)
	orders.Get("/:uuid", RequireUser(), d.OrderHandler.View)
	orders.Patch("/:id/status", farmer, d.OrderHandler.UpdateStatus)

	// Health & 404
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	})
	return app
}
