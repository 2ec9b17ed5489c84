package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"dispatch/internal/handler"
	"dispatch/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	AuthHandler      *handler.AuthHandler
	DashboardHandler *handler.DashboardHandler
	AdminHandler     *handler.AdminHandler
	Authenticator    middleware.Authenticator
	CookieName       string
	RedisClient      redis.Cmdable
	NewRelicApp      *newrelic.Application
	Logger           *zap.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.RequestLogger(deps.Logger.Named("http")))

	router.Use(middleware.RouteGate(middleware.TokenSessionChecker{
		Authenticator: deps.Authenticator,
		CookieName:    deps.CookieName,
	}, deps.Logger))

	if deps.RedisClient != nil {
		router.Use(middleware.IdempotencyMiddleware(deps.RedisClient, deps.CookieName, deps.Logger))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Pages.
	router.GET("/", handler.LoginPage)
	router.GET("/dashboard", handler.DashboardPage)

	requireSession := middleware.RequireSession(deps.Authenticator, deps.CookieName)

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Auth routes.
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/signup", deps.AuthHandler.SignUp)
			authRoutes.POST("/login", deps.AuthHandler.Login)
			authRoutes.POST("/logout", requireSession, deps.AuthHandler.Logout)
		}

		// Dashboard routes.
		dashboard := v1.Group("/dashboard", requireSession)
		{
			dashboard.GET("", deps.DashboardHandler.Get)
			dashboard.GET("/events", deps.DashboardHandler.Events)
		}

		// Order routes.
		orders := v1.Group("/orders", requireSession)
		{
			orders.POST("/:id/accept", deps.DashboardHandler.Accept)
			orders.POST("/:id/reject", deps.DashboardHandler.Reject)
		}

		// Driver routes.
		drivers := v1.Group("/drivers", requireSession)
		{
			drivers.POST("/register", deps.DashboardHandler.RegisterDriver)
		}

		// Admin routes.
		admin := v1.Group("/admin")
		{
			admin.POST("/seed", deps.AdminHandler.Seed)
		}
	}

	return router
}
