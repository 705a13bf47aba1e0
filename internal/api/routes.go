package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pushgate/pushgate/internal/handlers"
	"github.com/pushgate/pushgate/internal/middleware"
	"github.com/pushgate/pushgate/internal/services"
	"github.com/pushgate/pushgate/internal/session"
)

// Deps carries everything the route table needs.
type Deps struct {
	Auth    *handlers.AuthHandler
	Token   *handlers.TokenHandler
	Proxy   *handlers.ProxyHandler
	Status  *handlers.StatusHandler
	Signing *services.SigningService
	// RequireSignature gates the proxy group on the broker signature header.
	RequireSignature bool
	Sessions         *session.Manager
	SessionCookie    string
	RateLimiter      *middleware.RateLimiter
}

// SetupRoutes configures all API routes with their middleware.
func SetupRoutes(router *gin.Engine, deps Deps) {
	logger := logrus.New()

	// Global middleware
	router.Use(middleware.Logger(logger))
	router.Use(middleware.ErrorHandler())

	// Public routes
	public := router.Group("/")
	{
		public.GET("/status", deps.Status.Status)
		public.GET("/health", deps.Status.Health)
		public.POST("/login", deps.Auth.Login)
		public.POST("/logout", deps.Auth.Logout)
	}

	// Proxy callbacks from the broker. These are server-to-server calls; they
	// carry no session, optionally gated by the shared-secret signature.
	proxy := router.Group("/gateway")
	if deps.RequireSignature {
		proxy.Use(middleware.RequireSignature(deps.Signing))
	}
	{
		proxy.POST("/connect", deps.Proxy.Connect)
		proxy.POST("/refresh", deps.Proxy.Refresh)
		proxy.POST("/subscribe", deps.Proxy.Subscribe)
		proxy.POST("/sub_refresh", deps.Proxy.SubRefresh)
		proxy.POST("/publish", deps.Proxy.Publish)
		proxy.POST("/rpc", deps.Proxy.RPC)
	}

	// Token issue surface for browser clients holding a session.
	tokens := router.Group("/token")
	tokens.Use(middleware.SessionAuth(deps.Sessions, deps.SessionCookie))
	if deps.RateLimiter != nil {
		tokens.Use(deps.RateLimiter.RateLimit())
	}
	{
		tokens.POST("/connection", deps.Token.ConnectionToken)
		tokens.POST("/subscription", deps.Token.SubscriptionToken)
	}
}
