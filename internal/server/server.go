package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	mid "github.com/bookrel/backend/internal/server/middleware"
	"github.com/bookrel/backend/pkg/logger"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// Config holds the HTTP settings of the server.
type Config struct {
	// CORSOrigins restricts cross-origin requests. Empty allows any origin.
	CORSOrigins []string
	// BodyLimit caps request bodies, e.g. "64M".
	BodyLimit string
}

// New builds the echo instance with middleware and routes registered.
func New(app *mid.App, cfg Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &CustomValidator{validator: validator.New()}

	if cfg.BodyLimit == "" {
		cfg.BodyLimit = "64M"
	}

	e.Use(mid.RequestID())
	e.Use(mid.AppContextMiddleware(app))
	if len(cfg.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.CORSOrigins,
		}))
	} else {
		e.Use(middleware.CORS())
	}
	e.Use(mid.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))

	RegisterRoutes(e)
	return e
}

// Run serves e on port until ctx is cancelled and then shuts it down
// gracefully.
func Run(ctx context.Context, e *echo.Echo, port string) error {
	if port == "" {
		port = "8080"
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
		return err
	}
	return nil
}
