package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/StockPilotApp/StockPilot/app/controllers"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// Initialize webhook controller with repositories
	controllers.InitializeWebhookController()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Topic arrives as a path suffix, e.g. POST /webhooks/orders/create
	app.Post("/webhooks/+", controllers.HandleWebhook)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
