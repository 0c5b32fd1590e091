package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ashteams-intelligence/backend/ai"
	"ashteams-intelligence/backend/internal/service"
	"ashteams-intelligence/backend/internal/store"
	"ashteams-intelligence/backend/pkg/config"
	"ashteams-intelligence/backend/pkg/jwt"
	"ashteams-intelligence/backend/pkg/logger"
	"ashteams-intelligence/backend/pkg/observability"
	"ashteams-intelligence/backend/pkg/router"
	"ashteams-intelligence/backend/pkg/secrets"
)

func main() {
	cfg := config.New()

	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"
	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("Starting server", "env", cfg.Server.Env)

	shutdownTracing, err := observability.SetupTracing("ashteams-intelligence")
	if err != nil {
		log.LogError(err, "Failed to set up tracing")
	}
	if _, err := observability.SetupMetrics(); err != nil {
		log.LogError(err, "Failed to set up metrics")
	}

	if err := secrets.Init(log); err != nil {
		log.LogError(err, "Failed to initialize secrets manager")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		cfg.OpenRouter.APIKey = secrets.GetSecretWithDefault(ctx, "openrouter_api_key", cfg.OpenRouter.APIKey)
		cfg.JWT.Secret = secrets.GetSecretWithDefault(ctx, "jwt_secret", cfg.JWT.Secret)
		cancel()
	}

	var st store.Store
	if cfg.Database.URL != "" {
		gormStore, err := store.NewGormStore(cfg.Database.URL)
		if err != nil {
			log.LogError(err, "Failed to connect to database")
			os.Exit(1)
		}
		st = gormStore
		log.Info("Using database store")
	} else {
		st = store.NewMemoryStore()
		log.Info("Using in-memory store")
	}

	provider := ai.NewClient(ai.Config{
		APIKey:       cfg.OpenRouter.APIKey,
		BaseURL:      cfg.OpenRouter.BaseURL,
		Model:        cfg.OpenRouter.Model,
		Temperature:  cfg.OpenRouter.Temperature,
		MaxTokens:    cfg.OpenRouter.MaxTokens,
		SystemPrompt: cfg.OpenRouter.SystemPrompt,
		SiteURL:      cfg.OpenRouter.SiteURL,
		SiteTitle:    cfg.OpenRouter.SiteTitle,
		Timeout:      cfg.OpenRouter.Timeout,
	})
	if cfg.OpenRouter.APIKey == "" {
		log.Warn("No completion provider credential configured; replies will fall back to the apology message")
	}

	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expiry)

	r := router.New(router.Deps{
		Logger:      log,
		Config:      cfg,
		JWTService:  jwtService,
		UserService: service.NewUserService(st, jwtService),
		ChatService: service.NewChatService(st, provider, log),
	})
	r.SetupRoutes()

	if cfg.OpenAPI.SchemaPath != "" {
		r.AddOpenAPIValidation(cfg.OpenAPI.SchemaPath)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r.Engine,
	}

	go func() {
		log.Info("Server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(err, "Server failed to start")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(ctx); err != nil {
			log.LogError(err, "Failed to shut down tracing")
		}
	}

	log.Info("Server exited gracefully")
}
