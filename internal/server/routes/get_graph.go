package routes

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/bookrel/backend/internal/server/middleware"
	"github.com/bookrel/backend/pkg/window"

	"github.com/labstack/echo/v4"
)

func queryInt(c echo.Context, name string) (*int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer", name)
	}
	return &v, nil
}

func queryFilter(c echo.Context) (window.Filter, error) {
	var f window.Filter
	if raw := c.QueryParam("minWeight"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return f, fmt.Errorf("minWeight must be a number")
		}
		f.MinWeight = &v
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return f, err
	}
	f.Limit = limit
	return f, nil
}

// GetGraphHandler returns the part of a book's graph that overlaps the
// chapter range given by fromChapter and toChapter.
func GetGraphHandler(c echo.Context) error {
	bookID, err := strconv.ParseInt(c.Param("bookId"), 10, 64)
	if err != nil {
		return badRequest(c, "bookId must be an integer")
	}
	from, err := queryInt(c, "fromChapter")
	if err != nil {
		return badRequest(c, err.Error())
	}
	to, err := queryInt(c, "toChapter")
	if err != nil {
		return badRequest(c, err.Error())
	}
	filter, err := queryFilter(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx := c.Request().Context()
	svc := c.(*middleware.AppContext).App.Query
	snap, err := svc.GetGraph(ctx, bookID, from, to, filter)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

// GetSnapshotHandler returns what a reader at the given progress through
// the book may see.
func GetSnapshotHandler(c echo.Context) error {
	var (
		bookID        int64
		progress      float64
		totalChapters int
	)
	err := echo.QueryParamsBinder(c).
		FailFast(true).
		MustInt64("bookId", &bookID).
		MustFloat64("progress", &progress).
		MustInt("totalChapters", &totalChapters).
		BindError()
	if err != nil {
		return badRequest(c, "bookId, progress and totalChapters are required numbers")
	}
	lookback, err := queryInt(c, "window")
	if err != nil {
		return badRequest(c, err.Error())
	}
	filter, err := queryFilter(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx := c.Request().Context()
	svc := c.(*middleware.AppContext).App.Query
	snap, err := svc.Snapshot(ctx, bookID, progress, totalChapters, lookback, filter)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}
