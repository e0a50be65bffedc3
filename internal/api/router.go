package api

import (
	"sync"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/99minutos/orderdesk/internal/api/docs"
	"github.com/99minutos/orderdesk/internal/api/handler"
	"github.com/99minutos/orderdesk/internal/api/middleware"
	"github.com/99minutos/orderdesk/internal/core/domain"
	"github.com/99minutos/orderdesk/internal/core/ports"
	"github.com/99minutos/orderdesk/internal/pkg/validation"
)

// Deps are the collaborators the router wires into handlers. Mongo and Redis
// are optional and only feed the readiness probe.
type Deps struct {
	Accounts  ports.AccountService
	Orders    ports.OrderService
	JWTSecret string
	Logger    zerolog.Logger

	Mongo *mongo.Database
	Redis *redis.Client

	// RequestLog enables echo's access log middleware.
	RequestLog bool
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	if deps.RequestLog {
		e.Use(echomiddleware.Logger())
	}
	e.Use(httpMetrics())

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(deps.Accounts)
	userHandler := handler.NewUserHandler(deps.Accounts)
	orderHandler := handler.NewOrderHandler(deps.Orders)
	authMiddleware := middleware.Auth(deps.JWTSecret)
	adminOnly := middleware.RBAC(domain.RoleAdmin)

	api := e.Group("/api")
	api.POST("/login", authHandler.Login)

	// --- Purchases ---
	orders := api.Group("/orders", authMiddleware)
	orders.GET("", orderHandler.List)
	orders.POST("", orderHandler.Create)

	// --- Accounts (admin only) ---
	users := api.Group("/users", authMiddleware, adminOnly)
	users.GET("", userHandler.List)
	users.POST("", userHandler.Create)
	users.GET("/:id", userHandler.Get)
	users.PUT("/:id", userHandler.Update)
	users.DELETE("/:id", userHandler.Delete)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(deps.Mongo, deps.Redis)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthDepsHandler.Readiness)

	// --- Ops ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

var (
	httpMetricsOnce sync.Once
	httpMetricsMW   echo.MiddlewareFunc
)

// httpMetrics registers the request collectors once per process; every router
// built afterwards shares them.
func httpMetrics() echo.MiddlewareFunc {
	httpMetricsOnce.Do(func() {
		httpMetricsMW = echoprometheus.NewMiddleware("orderdesk_api")
	})
	return httpMetricsMW
}
