package api

import (
	"github.com/bilgisen/newsenrich/internal/middleware"
	"github.com/gofiber/fiber/v2"
)

// SetupRoutes configures all the routes for the application
func SetupRoutes(app *fiber.App, h *Handlers, adminKey string) {
	api := app.Group("/api/v1")

	api.Get("/health", h.HealthCheck)
	api.Get("/feeds", h.GetFeeds)

	news := api.Group("/news")
	{
		news.Get("", middleware.ValidateQueryParams[NewsQuery](), h.GetNews)
		news.Get("/:id", h.GetNewsByID)
	}

	admin := api.Group("/admin", middleware.AdminOnly(adminKey))
	{
		admin.Post("/load", middleware.ValidateRequest[LoadRequest](), h.LoadFeed)
		admin.Delete("/cache", middleware.ValidateQueryParams[CacheQuery](), h.ClearCache)
	}

	// 404 Handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Endpoint not found",
		})
	})
}
