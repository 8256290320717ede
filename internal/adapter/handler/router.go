package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/ibrahimkeyboad/spendguard/internal/adapter/middleware"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Transactions *TransactionHandler
	Users        *UserHandler
	Emergency    *EmergencyHandler
	Investments  *InvestmentHandler
	Alerts       *AlertHandler // optional; mounted only with an audit store
}

// NewApp builds the fiber app with every route under /v1. Mutating routes
// honour the Idempotency-Key header.
func NewApp(h Handlers, idem middleware.IdempotencyStore) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/v1")
	replay := middleware.Idempotency(idem)

	api.Post("/transactions/classify", replay, h.Transactions.Classify)
	api.Put("/transactions/classify", replay, h.Transactions.Classify)
	api.Get("/transactions/:user_id", h.Transactions.GetHistory)

	api.Get("/users/:user_id/caps", h.Users.GetCaps)
	api.Put("/users/:user_id/caps", h.Users.UpdateCaps)
	if h.Alerts != nil {
		api.Get("/users/:user_id/alerts", h.Alerts.List)
	}

	api.Post("/emergency/alert", h.Emergency.Alert)
	api.Post("/emergency/fund", replay, h.Emergency.TopUp)
	api.Post("/emergency/withdraw", replay, h.Emergency.Withdraw)

	api.Post("/investments/pms", replay, h.Investments.InvestPMS)
	api.Get("/investments/suggest", h.Investments.Suggest)

	return app
}
