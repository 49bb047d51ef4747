package server

import (
	"github.com/bookrel/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check routes
	health := func(c echo.Context) error {
		return c.String(200, "OK")
	}
	e.GET("/health", health)
	e.GET("/api/health", health)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiRoutes := e.Group("/api")

	// Graph routes
	apiRoutes.GET("/graph/snapshot", routes.GetSnapshotHandler)
	apiRoutes.GET("/graph/:bookId", routes.GetGraphHandler)
	apiRoutes.POST("/graph/seed", routes.SeedHandler)

	// Ingestion routes
	apiRoutes.POST("/nlp/ingestUrl", routes.IngestURLHandler)
	apiRoutes.POST("/nlp/ingestText", routes.IngestTextHandler)
	e.POST("/ingest/url", routes.IngestURLHandler)
	e.POST("/ingest/text", routes.IngestTextHandler)
}
