package routes

import (
	"net/http"

	"github.com/bookrel/backend/internal/server/middleware"
	"github.com/bookrel/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// SeedHandler creates the demonstration book unless it already exists.
func SeedHandler(c echo.Context) error {
	ctx := c.Request().Context()
	svc := c.(*middleware.AppContext).App.Query

	res, err := svc.Seed(ctx)
	if err != nil {
		return writeError(c, err)
	}

	logger.Info("[HTTP] Seeded demonstration book", "result", res)
	return c.JSON(http.StatusOK, res)
}
