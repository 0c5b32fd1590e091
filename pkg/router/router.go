package router

import (
	"strings"
	"time"

	"ashteams-intelligence/backend/internal/api"
	"ashteams-intelligence/backend/internal/service"
	"ashteams-intelligence/backend/pkg/config"
	"ashteams-intelligence/backend/pkg/errors"
	"ashteams-intelligence/backend/pkg/jwt"
	"ashteams-intelligence/backend/pkg/logger"
	"ashteams-intelligence/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Track server start time for uptime reporting
var startTime = time.Now()

// Deps holds everything the router needs to register routes
type Deps struct {
	Logger      *logger.Logger
	Config      *config.Config
	JWTService  *jwt.Service
	UserService *service.UserService
	ChatService *service.ChatService
}

// Router is the main router for the application
type Router struct {
	Engine *gin.Engine
	Logger *logger.Logger
	Config *config.Config
	deps   Deps
}

// New creates a new router with logging, recovery, rate limiting and
// metrics middleware installed
func New(deps Deps) *Router {
	logger.SetGlobal(deps.Logger)

	if deps.Config.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Logger middleware first to capture all requests
	engine.Use(logger.Middleware(deps.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())

	limiterOpts := middleware.DefaultRateLimiterOptions()
	limiterOpts.Limit = rate.Limit(deps.Config.Security.RateLimit)
	limiterOpts.Burst = deps.Config.Security.RateLimitBurst
	rateLimiter := middleware.NewRateLimiter(deps.Logger, limiterOpts)
	engine.Use(rateLimiter.Middleware())
	engine.Use(middleware.Metrics())

	return &Router{
		Engine: engine,
		Logger: deps.Logger,
		Config: deps.Config,
		deps:   deps,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	r.Engine.Use(corsMiddleware(r.Config.Security.AllowedOrigins))

	r.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := r.Engine.Group("/api")
	apiGroup.GET("/health", r.healthCheckHandler())
	apiGroup.Use(middleware.OptionalAuth(r.deps.JWTService))

	api.NewAuthHandler(r.deps.UserService, r.Logger).RegisterRoutes(apiGroup)
	api.NewChatHandler(r.deps.ChatService, r.Logger).RegisterRoutes(apiGroup)
}

// healthCheckHandler returns a simple health check handler
func (r *Router) healthCheckHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
			"env":    r.Config.Server.Env,
			"uptime": time.Since(startTime).Round(time.Second).String(),
			"time":   time.Now().Format(time.RFC3339),
		})
	}
}

// corsMiddleware reflects allowed origins and answers preflight requests
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		switch {
		case allowAll:
			if origin == "" {
				origin = "*"
			}
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		case origin != "" && originAllowed(origin, allowedOrigins):
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, Authorization, Origin, Cache-Control")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func originAllowed(origin string, allowed []string) bool {
	for _, o := range allowed {
		if strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
