package routes

import (
	"errors"
	"net/http"

	"github.com/bookrel/backend/pkg/client"
	"github.com/bookrel/backend/pkg/common"
	"github.com/bookrel/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

const kindBadRequest = "BadRequest"

// statusOf maps an error to the HTTP status it is answered with.
func statusOf(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidWindow),
		errors.Is(err, common.ErrEmptyInput),
		errors.Is(err, common.ErrMergeConflict),
		errors.Is(err, common.ErrFetch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the JSON error body for err.
func writeError(c echo.Context, err error) error {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		logger.Error("[HTTP] Handler failed", "path", c.Path(), "err", err)
	}
	return c.JSON(status, client.ErrorResponse{
		Error:   common.Kind(err),
		Message: err.Error(),
	})
}

// badRequest answers a request that could not be bound or validated.
func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, client.ErrorResponse{
		Error:   kindBadRequest,
		Message: message,
	})
}
