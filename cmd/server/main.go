package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"dispatch/internal/app"
	"dispatch/internal/auth"
	"dispatch/internal/config"
	"dispatch/internal/feed"
	"dispatch/internal/handler"
	"dispatch/internal/logger"
	internalRedis "dispatch/internal/redis"
	"dispatch/internal/repository/postgres"
	"dispatch/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	log, err := logger.New("dispatch-server", cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Warn("failed to initialize New Relic", zap.Error(err))
		} else {
			log.Info("New Relic enabled", zap.String("app", cfg.NewRelic.AppName))
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	log.Info("connected to PostgreSQL")

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("connected to Redis")

	changes, err := feed.NewPGFeed(cfg.Database.DSN(), cfg.Feed, log.Named("feed"))
	if err != nil {
		log.Fatal("failed to open change feed", zap.Error(err))
	}

	feedCtx, stopFeed := context.WithCancel(context.Background())
	feedDone := make(chan struct{})
	go func() {
		defer close(feedDone)
		if err := changes.Run(feedCtx); err != nil {
			log.Error("change feed stopped", zap.Error(err))
		}
	}()

	server, sessions := wireServer(db, redisClient, changes, nrApp, cfg, log)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go sessions.Run(sweepCtx, time.Minute)

	// Start server in goroutine.
	go func() {
		log.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	stopSweep()
	sessions.CloseAll()
	stopFeed()
	<-feedDone

	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	log.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server together with
// the session registry that must be drained on shutdown.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	changes feed.Feed,
	nrApp *newrelic.Application,
	cfg *config.Config,
	log *zap.Logger,
) (*http.Server, *service.SessionRegistry) {
	// Initialize Redis stores.
	sessionStore := internalRedis.NewSessionStore(redisClient)
	counterBacklog := internalRedis.NewCounterBacklog(redisClient, log.Named("backlog"))

	// Initialize repositories.
	userRepo := postgres.NewUserRepository(db)
	profileRepo := postgres.NewProfileRepository(db)
	orderRepo := postgres.NewOrderRepository(db)

	// Initialize services.
	provider := auth.NewJWTProvider(cfg.Auth, sessionStore)
	accountService := auth.NewAccountService(userRepo, profileRepo, provider, log.Named("accounts"))
	seedService := service.NewSeedService(orderRepo, log.Named("seed"))
	sessions := service.NewSessionRegistry(func() *service.OrderController {
		return service.NewOrderController(orderRepo, profileRepo, changes, counterBacklog, log.Named("orders"))
	}, log.Named("sessions"))

	// Initialize handlers.
	authHandler := handler.NewAuthHandler(accountService, provider, sessions, cfg.Auth.CookieName, cfg.Auth.SessionTTL, log)
	dashboardHandler := handler.NewDashboardHandler(sessions, log)
	adminHandler := handler.NewAdminHandler(seedService)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		AuthHandler:      authHandler,
		DashboardHandler: dashboardHandler,
		AdminHandler:     adminHandler,
		Authenticator:    provider,
		CookieName:       cfg.Auth.CookieName,
		RedisClient:      redisClient,
		NewRelicApp:      nrApp,
		Logger:           log,
	})

	// Create HTTP server. The events stream resets its own deadlines per write.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, sessions
}
