package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/pushgate/pushgate/internal/api"
	"github.com/pushgate/pushgate/internal/config"
	"github.com/pushgate/pushgate/internal/gateway"
	"github.com/pushgate/pushgate/internal/handlers"
	"github.com/pushgate/pushgate/internal/logging"
	"github.com/pushgate/pushgate/internal/middleware"
	"github.com/pushgate/pushgate/internal/policy"
	"github.com/pushgate/pushgate/internal/rpc"
	"github.com/pushgate/pushgate/internal/services"
	"github.com/pushgate/pushgate/internal/session"
	"github.com/pushgate/pushgate/internal/token"
)

const serviceVersion = "1.0.0"

const sessionSweepInterval = time.Minute

func main() {
	// CLI flags
	configPath := pflag.StringP("config", "c", "config.yaml", "Path to config file")
	version := pflag.BoolP("version", "v", false, "Print version and exit")
	port := pflag.IntP("port", "p", 8080, "HTTP server listen port")
	logLevel := pflag.StringP("log-level", "l", "info", "Log level (debug, info, warn, error)")
	secret := pflag.String("secret", "", "Override token secret from config")

	pflag.Parse()

	if *version {
		fmt.Println("pushgated version " + serviceVersion)
		os.Exit(0)
	}

	// Load configuration
	if pflag.Lookup("secret").Changed && *secret != "" {
		os.Setenv("GATEWAY_SECRET", *secret)
	}
	cfg, err := config.LoadWithPath(*configPath)
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Override config with CLI flags if set
	if pflag.Lookup("port").Changed {
		cfg.Server.Port = *port
	}
	if pflag.Lookup("log-level").Changed {
		cfg.Logging.Level = *logLevel
	}

	// Initialize logger
	logger, err := logging.InitLogger(logging.LoggingConfig(cfg.Logging))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		zap.String("policy_mode", cfg.Policy.Mode),
		zap.String("session_backend", cfg.Session.Backend),
		zap.Bool("subscription_token_mode", cfg.Auth.SubscriptionTokenMode))

	// Initialize Redis when the session backend needs it
	var redisClient *redis.Client
	if cfg.Session.Backend == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	// Initialize session store and manager
	var store session.Store
	if redisClient != nil {
		store = session.NewRedisStore(redisClient)
	} else {
		store = session.NewMemoryStore()
	}
	sessions := session.NewManager(store, cfg.Session.TTL)

	// Initialize core services
	codec := token.NewCodec(cfg.Auth.Secret, token.WithLeeway(cfg.Auth.ClockSkewLeeway))

	policyOpts := policy.Options{
		ConnectionTTL:     cfg.Auth.ConnectionTokenTTL(),
		SubscriptionTTL:   cfg.Auth.SubscriptionTokenTTL(),
		UniChannels:       cfg.Policy.UniChannels,
		AllowedNamespaces: cfg.Policy.AllowedNamespaces,
		AllowAnonymous:    cfg.Auth.AllowAnonymous,
		RoleLookupTimeout: cfg.Policy.RoleLookupTimeout,
	}
	authPolicy, err := policy.New(cfg.Policy.Mode, policyOpts, sessions)
	if err != nil {
		logger.Fatal("Failed to build authorization policy", zap.Error(err))
	}

	signing := services.NewSigningService(cfg.Gateway.SignatureSecret)

	gatewayClient := gateway.New(cfg.Gateway.APIURL, cfg.Gateway.APIKey, cfg.Gateway.Timeout)
	defer gatewayClient.Close()

	registry := rpc.NewRegistry(logger)
	rpc.RegisterBuiltins(registry, gatewayClient, logger)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(cfg, sessions)
	tokenHandler := handlers.NewTokenHandler(codec, authPolicy, cfg.Auth.ConnectionTokenTTL(), cfg.Auth.SubscriptionTokenTTL())
	proxyHandler := handlers.NewProxyHandler(codec, authPolicy, registry, cfg.Auth.SubscriptionTokenMode, logger)
	statusHandler := handlers.NewStatusHandler(cfg, serviceVersion, redisClient)

	// Rate limiting needs Redis; skip it on the memory backend
	var rateLimiter *middleware.RateLimiter
	if redisClient != nil {
		rateLimiter = middleware.NewRateLimiter(redisClient)
	}

	// Initialize router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware(logger))

	api.SetupRoutes(router, api.Deps{
		Auth:             authHandler,
		Token:            tokenHandler,
		Proxy:            proxyHandler,
		Status:           statusHandler,
		Signing:          signing,
		RequireSignature: cfg.Gateway.RequireSignature,
		Sessions:         sessions,
		SessionCookie:    cfg.Session.CookieName,
		RateLimiter:      rateLimiter,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Sweep expired sessions in the background. The Redis backend expires
	// natively, so the sweep is a no-op there.
	sweepStopCh := make(chan struct{})
	go func() {
		ticker := time.NewTicker(sessionSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				removed, err := sessions.SweepExpired(context.Background())
				if err != nil {
					logger.Error("Session sweep failed", zap.Error(err))
					continue
				}
				if removed > 0 {
					logger.Debug("Swept expired sessions", zap.Int("removed", removed))
				}
			case <-sweepStopCh:
				return
			}
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Shutting down server...")

		close(sweepStopCh)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Fatal("Server forced to shutdown", zap.Error(err))
		}
	}()

	logger.Info("Starting server", zap.Int("port", cfg.Server.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("Server error", zap.Error(err))
	}
}
