package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port    string
		Env     string
		Timeout time.Duration
		BaseURL string
	}

	// Completion provider configuration
	OpenRouter struct {
		APIKey       string
		BaseURL      string
		Model        string
		Temperature  float64
		MaxTokens    int
		SystemPrompt string
		SiteURL      string
		SiteTitle    string
		Timeout      time.Duration
	}

	// JWT configuration
	JWT struct {
		Secret string
		Expiry time.Duration
	}

	// Database configuration; an empty URL selects the in-memory store
	Database struct {
		URL string
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// OpenAPI request validation
	OpenAPI struct {
		SchemaPath string
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates the Config instance from environment variables. Uses a
// singleton so every package sees the same values.
func New() *Config {
	once.Do(func() {
		godotenv.Load()

		instance = &Config{}

		instance.Server.Port = getEnvString("PORT", "5000")
		instance.Server.Env = getEnvString("APP_ENV", "development")
		instance.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
		instance.Server.BaseURL = getEnvString("SITE_URL", "http://localhost:"+instance.Server.Port)

		instance.OpenRouter.APIKey = getEnvString("OPENROUTER_API_KEY", getEnvString("OPENROUTER_KEY", ""))
		instance.OpenRouter.BaseURL = getEnvString("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1")
		instance.OpenRouter.Model = getEnvString("OPENROUTER_MODEL", "microsoft/phi-4")
		instance.OpenRouter.Temperature = getEnvFloat("OPENROUTER_TEMPERATURE", 0.7)
		instance.OpenRouter.MaxTokens = getEnvInt("OPENROUTER_MAX_TOKENS", 2048)
		instance.OpenRouter.SystemPrompt = getEnvString("AI_SYSTEM_PROMPT", "")
		instance.OpenRouter.SiteURL = instance.Server.BaseURL
		instance.OpenRouter.SiteTitle = getEnvString("SITE_TITLE", "Ashteams AI")
		instance.OpenRouter.Timeout = getEnvDuration("OPENROUTER_TIMEOUT", 60*time.Second)

		instance.JWT.Secret = getEnvString("JWT_SECRET", "")
		instance.JWT.Expiry = getEnvDuration("JWT_EXPIRY", 24*time.Hour)

		instance.Database.URL = getEnvString("DATABASE_URL", "")

		instance.Security.RateLimit = getEnvFloat("RATE_LIMIT", 5)
		instance.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
		instance.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})

		instance.Logging.Level = getEnvString("LOG_LEVEL", "info")
		instance.Logging.Format = getEnvString("LOG_FORMAT", "json")

		instance.OpenAPI.SchemaPath = getEnvString("OPENAPI_SCHEMA_PATH", "")
	})

	return instance
}

// Get returns the configuration singleton
func Get() *Config {
	return New()
}

func getEnvString(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnvString(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnvString(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnvString(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	value := getEnvString(key, "")
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
