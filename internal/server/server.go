// Package server assembles the echo application: middleware, auth and
// role guards, and every route.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/workmatch/api/internal/auth"
	"github.com/workmatch/api/internal/marketplace"
	"github.com/workmatch/api/internal/messaging"
	mware "github.com/workmatch/api/internal/middleware"
	"github.com/workmatch/api/internal/user"
)

// Deps is what New wires together. Hub may be nil, which disables the
// websocket route.
type Deps struct {
	Service        *marketplace.Service
	Hub            *messaging.Hub
	JWTSecret      []byte
	Logger         *slog.Logger
	RequestTimeout time.Duration
	RateLimit      float64
}

// New returns the configured echo instance.
func New(d Deps) *echo.Echo {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newValidator()
	e.HTTPErrorHandler = errorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			}
			level := slog.LevelInfo
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				if v.Status >= 500 {
					level = slog.LevelError
				}
			}
			logger.LogAttrs(context.Background(), level, "request", attrs...)
			return nil
		},
	}))

	store := d.Service.Store()
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/ready", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			logger.Warn("readiness check failed", slog.Any("error", err))
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "store unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})

	jwt := mware.JWTMiddleware(d.JWTSecret)
	clientOnly := mware.RequireRoles(user.RoleClient)
	workerOnly := mware.RequireRoles(user.RoleWorker)

	api := e.Group("")
	api.Use(jwt)
	if d.RequestTimeout > 0 {
		api.Use(middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{Timeout: d.RequestTimeout}))
	}
	if d.RateLimit > 0 {
		api.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(d.RateLimit))))
	}

	h := marketplace.NewHandler(d.Service)

	api.GET("/auth/me", auth.Me(store))
	api.GET("/users/:id/profile", h.GetProfile)

	api.POST("/bids", h.CreateBid, workerOnly)
	api.GET("/bids/my", h.ListMyBids, workerOnly)
	api.GET("/bids/incoming", h.ListIncomingBids, clientOnly)
	api.GET("/bids/job/:jobId", h.ListBidsForJob, clientOnly)
	api.PATCH("/bids/:bidId/status", h.UpdateBidStatus, clientOnly)

	api.POST("/jobs", h.CreateJob, clientOnly)
	api.GET("/jobs", h.ListJobs)
	api.GET("/jobs/my", h.MyJobs)
	api.GET("/jobs/:id", h.GetJob)
	api.DELETE("/jobs/:id", h.DeleteJob, clientOnly)
	api.PATCH("/jobs/:id/status", h.UpdateJobStatus, clientOnly)
	api.PATCH("/jobs/:id/worker-status", h.UpdateWorkerJobStatus, workerOnly)

	if d.Hub != nil {
		e.GET("/jobs/:id/ws", d.Hub.Serve(d.Service), jwt)
	}

	return e
}
