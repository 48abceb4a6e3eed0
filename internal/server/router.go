package server

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/teamhub-api/internal/handler"
	"github.com/noah-isme/teamhub-api/internal/middleware"
	"github.com/noah-isme/teamhub-api/internal/service"
	"github.com/noah-isme/teamhub-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/teamhub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/teamhub-api/pkg/middleware/requestid"
)

// Options carries the HTTP surface settings.
type Options struct {
	APIPrefix       string
	AllowedOrigins  []string
	CSRFExemptPaths []string
	Cookies         middleware.CookieSettings
	EnableDocs      bool
}

// Dependencies are the services the router exposes. OAuth and RateLimiter
// are optional.
type Dependencies struct {
	Logger      *zap.Logger
	Metrics     *service.MetricsService
	Tokens      *service.TokenService
	Sessions    *service.SessionService
	Auth        *service.AuthService
	OAuth       *service.OAuthService
	CSRF        *service.CSRFService
	RateLimiter *service.RateLimitService
	Readiness   map[string]handler.ReadinessCheck
}

// NewRouter builds the gin engine with every route and middleware in order.
func NewRouter(opts Options, deps Dependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	metricsHandler := handler.NewMetricsHandler(deps.Metrics, deps.Readiness)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	cookies := opts.Cookies
	accessGuard := middleware.AccessGuard(deps.Tokens, deps.Sessions, deps.Metrics, deps.Logger)
	refreshGuard := middleware.RefreshGuard(deps.Tokens)
	loginLimit := func(c *gin.Context) { c.Next() }
	if deps.RateLimiter != nil {
		loginLimit = middleware.LoginRateLimit(deps.RateLimiter)
	}

	csrfHandler := handler.NewCSRFHandler(deps.CSRF, deps.Tokens, cookies)
	tokenHandler := handler.NewTokenHandler(deps.Auth, deps.Tokens, cookies, deps.Logger)
	sessionHandler := handler.NewSessionHandler(deps.Sessions, deps.Auth)
	userHandler := handler.NewUserHandler()

	api := r.Group(opts.APIPrefix)
	api.Use(middleware.CSRF(deps.CSRF, deps.Tokens, opts.CSRFExemptPaths))

	api.GET("/csrf-token", csrfHandler.Token)

	auth := api.Group("/auth")
	{
		var authHandler *handler.AuthHandler
		if deps.OAuth != nil {
			authHandler = handler.NewAuthHandler(deps.Auth, deps.OAuth)
			auth.POST("/oauth", loginLimit, authHandler.OAuthLogin)
			auth.GET("/oauth/start", authHandler.OAuthStart)
			auth.GET("/oauth/status", authHandler.OAuthStatus)
			auth.GET("/google/callback", authHandler.OAuthCallback)
		} else {
			authHandler = handler.NewAuthHandler(deps.Auth, nil)
		}
		auth.POST("/local/login", loginLimit, authHandler.LocalLogin)

		auth.POST("/tokens/refresh", tokenHandler.Issue)
		auth.GET("/tokens/access", refreshGuard, tokenHandler.Rotate)
		auth.DELETE("/tokens/refresh", tokenHandler.Logout)
	}

	tokens := api.Group("/tokens")
	{
		tokens.POST("/refresh", tokenHandler.Issue)
		tokens.GET("/access", refreshGuard, tokenHandler.Rotate)
	}

	api.DELETE("/sessions/me", tokenHandler.Logout)

	sessions := api.Group("/sessions", accessGuard)
	{
		sessions.GET("/active", sessionHandler.Active)
		sessions.GET("/current", sessionHandler.Current)
		sessions.GET("/security-check", sessionHandler.SecurityCheck)
		sessions.DELETE("/revoke-all/except-current", sessionHandler.RevokeOthers)
		sessions.DELETE("/:sessionId", sessionHandler.Revoke)
	}

	api.GET("/users", accessGuard, userHandler.Me)

	return r
}
