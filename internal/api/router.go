package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fleetops/fleet-dashboard/internal/api/handler"
	"github.com/fleetops/fleet-dashboard/internal/api/middleware"
	"github.com/fleetops/fleet-dashboard/internal/api/ws"
	"github.com/fleetops/fleet-dashboard/internal/core/domain"
	"github.com/fleetops/fleet-dashboard/internal/core/ports"
	"github.com/fleetops/fleet-dashboard/internal/core/service"
	mongodb "github.com/fleetops/fleet-dashboard/internal/infrastructure/db/mongo"
	redisdb "github.com/fleetops/fleet-dashboard/internal/infrastructure/db/redis"
	"github.com/fleetops/fleet-dashboard/internal/infrastructure/queue"
)

// Deps carries everything the router wires together.
type Deps struct {
	Mongo      *mongo.Database
	Redis      *redis.Client
	JWTSecret  string
	Fleet      ports.FleetService
	History    ports.HistoryRepository
	Ingest     *queue.Ingest
	Hub        *ws.Hub
	FeedStatus func() string
	// FeedReconnect resets the feed retry budget; nil when no upstream
	// feed is configured.
	FeedReconnect func()
	Log           zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)
	e.Validator = handler.NewValidator()

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("fleet"))

	e.GET("/metrics", echoprometheus.NewHandler())

	// --- Auth routes ---
	authRepo := mongodb.NewAuthRepository(d.Mongo)
	authService := service.NewAuthService(authRepo, d.JWTSecret, 24*time.Hour)
	authHandler := handler.NewAuthHandler(authService)

	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(d.Mongo, d.Redis, d.FeedStatus)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	// --- Authenticated dashboard API ---
	v1 := e.Group("/v1", middleware.Auth(d.JWTSecret))

	fleetHandler := handler.NewFleetHandler(d.Fleet, d.History, d.Ingest)
	v1.GET("/drivers", fleetHandler.List)
	v1.GET("/drivers/:id", fleetHandler.Get)
	v1.GET("/drivers/:id/route", fleetHandler.Route)
	v1.GET("/drivers/:id/history", fleetHandler.History)
	v1.POST("/updates", fleetHandler.SubmitUpdate, middleware.RBAC(domain.RoleAdmin))

	tokenHandler := handler.NewTokenHandler(redisdb.NewTokenStore(d.Redis))
	v1.GET("/map-token", tokenHandler.Get)
	v1.PUT("/map-token", tokenHandler.Put, middleware.RBAC(domain.RoleAdmin))

	feedHandler := handler.NewFeedHandler(d.FeedStatus, d.FeedReconnect)
	v1.GET("/feed", feedHandler.Status)
	v1.POST("/feed/reconnect", feedHandler.Reconnect, middleware.RBAC(domain.RoleAdmin))

	v1.GET("/stream", d.Hub.ServeWS)

	return e
}
