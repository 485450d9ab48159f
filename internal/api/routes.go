package api

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(app *fiber.App, handler *Handler, apiToken string) {
	app.Use(RequestID())
	app.Use(ErrorHandler())

	// Health checks (sem rate limiting)
	app.Get("/health", handler.HealthCheck)
	app.Get("/ready", handler.ReadinessCheck)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/swagger/*", swagger.HandlerDefault)

	v1 := app.Group("/api/v1")
	v1.Use(RateLimiter())
	v1.Use(PrometheusMiddleware())

	runs := v1.Group("/runs")
	runs.Get("/", handler.ListRuns)
	runs.Get("/current", handler.CurrentRun)
	runs.Post("/", TokenAuth(apiToken), handler.StartRun)

	v1.Post("/transform", handler.Transform)
}
