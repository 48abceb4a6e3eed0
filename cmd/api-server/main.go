package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	_ "github.com/noah-isme/teamhub-api/api/swagger"
	"github.com/noah-isme/teamhub-api/internal/handler"
	"github.com/noah-isme/teamhub-api/internal/middleware"
	"github.com/noah-isme/teamhub-api/internal/repository"
	"github.com/noah-isme/teamhub-api/internal/server"
	"github.com/noah-isme/teamhub-api/internal/service"
	"github.com/noah-isme/teamhub-api/pkg/cache"
	"github.com/noah-isme/teamhub-api/pkg/config"
	"github.com/noah-isme/teamhub-api/pkg/csrf"
	"github.com/noah-isme/teamhub-api/pkg/database"
	"github.com/noah-isme/teamhub-api/pkg/jobs"
	"github.com/noah-isme/teamhub-api/pkg/logger"
)

// @title TeamHub Auth API
// @version 1.0.0
// @description Cookie-based session lifecycle: login, token rotation, revocation and CSRF.
// @BasePath /api
// @schemes http https

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	readiness := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}

	store, closeStore, err := openSessionStore(ctx, cfg, db, readiness)
	if err != nil {
		return err
	}
	defer closeStore()

	metrics := service.NewMetricsService()
	validate := validator.New()

	tokens, err := service.NewTokenService(service.TokenConfig{
		AccessSecret:  cfg.Tokens.AccessSecret,
		RefreshSecret: cfg.Tokens.RefreshSecret,
		AccessTTL:     cfg.Tokens.AccessTTL,
		RefreshTTL:    cfg.Tokens.RefreshTTL,
		Issuer:        cfg.Tokens.Issuer,
	})
	if err != nil {
		return err
	}

	accounts := repository.NewAccountRepository(db)
	sessions := service.NewSessionService(store, accounts, metrics, logr)
	auth := service.NewAuthService(accounts, repository.NewLoginTicketRepository(redisClient), tokens, sessions, metrics, validate, logr,
		service.AuthConfig{TicketTTL: cfg.Sessions.TicketTTL})

	purges := jobs.NewQueue("sessions", sessions.HandlePurgeJob, jobs.QueueConfig{
		Workers: cfg.Sessions.PurgeWorkers,
		Logger:  logr,
	})
	purges.Start(ctx)
	defer purges.Stop()
	sessions.AttachPurgeQueue(purges)
	go purges.Every(ctx, cfg.Sessions.PurgeInterval, sessions.PurgeJob)

	var oauth *service.OAuthService
	if cfg.OAuth.ClientID != "" {
		provider := service.NewGoogleProvider(cfg.OAuth.ClientID, cfg.OAuth.ClientSecret, cfg.OAuth.RedirectURL,
			cfg.OAuth.AuthURL, cfg.OAuth.TokenURL, cfg.OAuth.UserInfoURL)
		oauth = service.NewOAuthService(provider, accounts, repository.NewOAuthFlowRepository(redisClient), auth, validate, logr, cfg.OAuth.FlowTTL)
	} else {
		logr.Info("google sign-in disabled: GOOGLE_CLIENT_ID not set")
	}

	var limiter *service.RateLimitService
	if cfg.RateLimit.LoginLimit > 0 {
		limiter = service.NewRateLimitService(repository.NewRateLimitRepository(redisClient), cfg.RateLimit.LoginLimit, cfg.RateLimit.LoginWindow, metrics, logr)
	}

	router := server.NewRouter(server.Options{
		APIPrefix:       cfg.APIPrefix,
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		CSRFExemptPaths: cfg.CSRF.ExemptPaths,
		Cookies: middleware.CookieSettings{
			Secure:     cfg.Cookies.Secure,
			Domain:     cfg.Cookies.Domain,
			AccessTTL:  cfg.Tokens.AccessTTL,
			RefreshTTL: cfg.Tokens.RefreshTTL,
			CSRFTTL:    cfg.Tokens.RefreshTTL,
		},
		EnableDocs: cfg.Env != config.EnvProduction,
	}, server.Dependencies{
		Logger:      logr,
		Metrics:     metrics,
		Tokens:      tokens,
		Sessions:    sessions,
		Auth:        auth,
		OAuth:       oauth,
		CSRF:        service.NewCSRFService(csrf.NewSigner(cfg.CSRF.Secret, cfg.Tokens.RefreshTTL), metrics, logr),
		RateLimiter: limiter,
		Readiness:   readiness,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "session_store", cfg.Sessions.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openSessionStore returns the configured refresh-token backend. Mongo adds
// its own readiness check.
func openSessionStore(ctx context.Context, cfg *config.Config, db *sqlx.DB, readiness map[string]handler.ReadinessCheck) (service.SessionStore, func(), error) {
	if cfg.Sessions.Store != config.StoreMongo {
		return repository.NewSessionRepository(db), func() {}, nil
	}

	client, mdb, err := database.NewMongo(ctx, cfg.Mongo)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	store := repository.NewMongoSessionRepository(mdb)
	if err := store.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo indexes: %w", err)
	}
	readiness["mongo"] = mongoPing(client)
	return store, func() { _ = client.Disconnect(context.Background()) }, nil
}

func mongoPing(client *mongodriver.Client) handler.ReadinessCheck {
	return func(ctx context.Context) error { return client.Ping(ctx, nil) }
}
