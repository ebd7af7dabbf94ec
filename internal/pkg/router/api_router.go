package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/StockPilotApp/StockPilot/app/controllers"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())

	v1 := api.Group("/v1")

	// Job administration
	v1.Get("/jobs/:id", controllers.HandleGetJob)
	v1.Delete("/jobs/:id", controllers.HandleCancelJob)
	v1.Post("/jobs/:id/retry", controllers.HandleRetryJob)
	v1.Get("/queues/stats", controllers.HandleQueueStats)
	v1.Get("/queues/keys", controllers.HandleQueueKeys)
	v1.Delete("/queues/keys/*", controllers.HandleDeleteQueueKey)

	// Manual sync triggers
	v1.Post("/sync/product", controllers.HandleSyncProduct)
	v1.Post("/batch", controllers.HandleBatchOperation)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
