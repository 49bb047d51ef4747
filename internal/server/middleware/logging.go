package middleware

import (
	"github.com/bookrel/backend/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// RequestID tags every request with a nanoid unless the caller sent one.
func RequestID() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string {
			id, err := gonanoid.New()
			if err != nil {
				return ""
			}
			return id
		},
	})
}

// RequestLogger writes one access log line per request through the
// process logger.
func RequestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			keyvals := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			switch {
			case v.Status >= 500:
				logger.Error("[HTTP] Request failed", logger.With(keyvals, "err", v.Error)...)
			case v.Error != nil:
				logger.Warn("[HTTP] Request rejected", logger.With(keyvals, "err", v.Error)...)
			default:
				logger.Info("[HTTP] Request", keyvals...)
			}
			return nil
		},
	})
}
