package routes

import (
	"net/http"

	"github.com/bookrel/backend/internal/server/middleware"
	"github.com/bookrel/backend/pkg/logger"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// IngestURLHandler fetches a book from a URL and merges its relationships
// into the given book.
func IngestURLHandler(c echo.Context) error {
	type ingestURLBody struct {
		BookID int64  `json:"bookId" validate:"required"`
		URL    string `json:"url" validate:"required,url"`
	}

	data := new(ingestURLBody)
	if err := c.Bind(data); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(data); err != nil {
		return badRequest(c, "bookId and a valid url are required")
	}

	ctx := c.Request().Context()
	svc := c.(*middleware.AppContext).App.Query
	g, err := svc.IngestURL(ctx, data.BookID, data.URL)
	if err != nil {
		return writeError(c, err)
	}

	logger.Info("[HTTP] Ingested url", "book_id", data.BookID, "nodes", len(g.Nodes), "edges", len(g.Edges))
	return c.JSON(http.StatusOK, g)
}

// IngestTextHandler merges the relationships found in raw text into the
// given book. Blank text is answered with an EmptyInputError.
func IngestTextHandler(c echo.Context) error {
	type ingestTextBody struct {
		BookID int64  `json:"bookId" validate:"required"`
		Text   string `json:"text"`
	}

	data := new(ingestTextBody)
	if err := c.Bind(data); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(data); err != nil {
		return badRequest(c, "bookId is required")
	}

	ctx := c.Request().Context()
	svc := c.(*middleware.AppContext).App.Query
	g, err := svc.IngestText(ctx, data.BookID, data.Text)
	if err != nil {
		return writeError(c, err)
	}

	logger.Info("[HTTP] Ingested text", "book_id", data.BookID, "nodes", len(g.Nodes), "edges", len(g.Edges))
	return c.JSON(http.StatusOK, g)
}
