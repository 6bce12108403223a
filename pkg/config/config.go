package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DevJWTSecret signs session tokens when JWT_SECRET_KEY is unset outside
// production.
const DevJWTSecret = "aarogya-dev-secret"

// Config holds runtime settings read from the environment.
type Config struct {
	AppEnv       string
	IsStaging    bool
	IsProduction bool
	Port         string
	LogLevel     string
	CORSOrigins  []string

	// session tokens issued by the identity provider
	JWTSecret string
	JWTIssuer string

	// completion provider: "gemini", "openai" or "local"
	LLMProvider     string
	GeminiAPIKey    string
	GeminiModel     string
	GeminiBaseURL   string
	IsGeminiEnabled bool
	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIBaseURL   string
	FramingMode     string // "system" or "inline"

	// persistence: "sqlite", "mysql" or "mongo"
	StoreDriver   string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string
	RedisURL      string

	// tracing is off unless an OTLP collector is configured
	OTelEndpoint string

	PipelineMaxDuration time.Duration
	GateTimeout         time.Duration
	GateCacheTTL        time.Duration
	GateCacheMaxItems   int

	// runtime tunables
	RateLimitWindow      time.Duration
	RateLimitCapacity    int
	UserConcurrencyLimit int
	DuplicateWindow      time.Duration
}

// loadAppEnv loads .env unless running in production. A missing file is fine.
func loadAppEnv() error {
	if os.Getenv("APP_ENV") == "production" {
		return nil
	}
	if _, err := os.Stat(".env"); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(); err != nil {
		return fmt.Errorf("loading .env file: %w", err)
	}
	return nil
}

// Load reads configuration from the environment (and .env outside production).
func Load() (*Config, error) {
	if err := loadAppEnv(); err != nil {
		return nil, err
	}

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		Port:     getEnv("PORT", "5000"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		JWTSecret: os.Getenv("JWT_SECRET_KEY"),
		JWTIssuer: os.Getenv("JWT_ISSUER"),

		LLMProvider:     strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiBaseURL:   getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		IsGeminiEnabled: getEnv("IS_GEMINI_ENABLED", "1") == "1",
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:   os.Getenv("OPENAI_BASE_URL"),
		FramingMode:     strings.ToLower(getEnv("FRAMING_MODE", "system")),

		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
		DatabaseURL:   getEnv("DATABASE_URL", "aarogya.db"),
		MongoURI:      os.Getenv("MONGODB_URI"),
		MongoDatabase: getEnv("MONGODB_DATABASE", "aarogya"),
		RedisURL:      os.Getenv("REDIS_URL"),

		OTelEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),

		PipelineMaxDuration: seconds("PIPELINE_MAX_DURATION_SECONDS", 60),
		GateTimeout:         seconds("GATE_TIMEOUT_SECONDS", 15),
		GateCacheTTL:        seconds("GATE_CACHE_TTL_SECONDS", 600),
		GateCacheMaxItems:   atoiOr(os.Getenv("GATE_CACHE_MAX_ITEMS"), 500),

		RateLimitWindow:      seconds("RATE_LIMIT_WINDOW_SECONDS", 10),
		RateLimitCapacity:    atoiOr(os.Getenv("RATE_LIMIT_CAPACITY"), 5),
		UserConcurrencyLimit: atoiOr(os.Getenv("USER_CONCURRENCY_LIMIT"), 2),
		DuplicateWindow:      seconds("DUPLICATE_WINDOW_SECONDS", 5),
	}

	for _, o := range strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	if !slices.Contains([]string{"development", "staging", "production"}, cfg.AppEnv) {
		return nil, fmt.Errorf("APP_ENV must be 'development', 'staging' or 'production', got %q", cfg.AppEnv)
	}
	cfg.IsStaging = cfg.AppEnv == "staging"
	cfg.IsProduction = cfg.AppEnv == "production"

	if !slices.Contains([]string{"gemini", "openai", "local"}, cfg.LLMProvider) {
		return nil, fmt.Errorf("LLM_PROVIDER must be 'gemini', 'openai' or 'local', got %q", cfg.LLMProvider)
	}
	if !slices.Contains([]string{"sqlite", "mysql", "mongo"}, cfg.StoreDriver) {
		return nil, fmt.Errorf("STORE_DRIVER must be 'sqlite', 'mysql' or 'mongo', got %q", cfg.StoreDriver)
	}
	if cfg.StoreDriver == "mongo" && cfg.MongoURI == "" {
		return nil, errors.New("MONGODB_URI is required when STORE_DRIVER=mongo")
	}
	if cfg.IsProduction && cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET_KEY must be set in production")
	}
	if cfg.PipelineMaxDuration <= 0 {
		cfg.PipelineMaxDuration = 60 * time.Second
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func seconds(key string, def int) time.Duration {
	return time.Duration(atoiOr(os.Getenv(key), def)) * time.Second
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}
