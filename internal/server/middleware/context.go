package middleware

import (
	"github.com/bookrel/backend/pkg/query"

	"github.com/labstack/echo/v4"
)

// App holds the collaborators shared by every request.
type App struct {
	Query query.GraphQueryClient
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app}
			return next(cc)
		}
	}
}
