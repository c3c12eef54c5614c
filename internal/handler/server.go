package handler

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type ServerConfig struct {
	AllowOrigins []string
	// RateLimit is requests per second per client IP; zero disables limiting.
	RateLimit float64
	RateBurst int
	BodyLimit string
	// RequestTimeout bounds each request's context; zero leaves it open.
	RequestTimeout time.Duration
}

// NewEcho builds the API server with the shared middleware stack. Routes
// are registered on the returned /api group.
func NewEcho(cfg ServerConfig, logger *zap.Logger) (*echo.Echo, *echo.Group) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler(logger)

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(
		middleware.Recover(),
		middleware.RequestID(),
		RequestLogger(logger),
		middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{echo.GET, echo.POST, echo.DELETE, echo.OPTIONS},
		}),
	)
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.ContextTimeout(cfg.RequestTimeout))
	}

	api := e.Group("/api", RateLimiter(cfg.RateLimit, cfg.RateBurst))
	return e, api
}
