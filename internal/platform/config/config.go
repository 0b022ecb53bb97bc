// Package config builds runtime configuration from the environment so main
// stays lean.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store backends selectable via CARDMILL_STORE.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config captures everything the server needs at startup. Loaded once; the
// quota policy table itself lives in its own YAML file (see PolicyPath).
type Config struct {
	Addr      string
	PublicDir string
	LogFormat string

	// PolicyPath points at the campaign quota table. A missing or malformed
	// table is fatal at startup.
	PolicyPath string

	// Timezone used to derive "today" for quota accounting.
	Timezone *time.Location

	Store  StoreConfig
	Redis  RedisConfig
	OpenAI OpenAIConfig
	Admin  AdminConfig
}

// StoreConfig selects and parameterizes the counter store backend.
type StoreConfig struct {
	Backend     string
	SQLitePath  string
	PostgresDSN string
}

// RedisConfig configures the optional Redis-backed counter store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// OpenAIConfig configures the upstream image-generation API.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Size           string
	PromptTemplate string
	RequestTimeout time.Duration
}

// AdminConfig configures the admin surface. PasswordHash is a bcrypt hash;
// leaving it empty disables admin login.
type AdminConfig struct {
	PasswordHash  string
	JWTSigningKey string
	TokenTTL      time.Duration
}

// defaultPromptTemplate mirrors the postcard prompt the service was built
// around; override with CARDMILL_PROMPT_TEMPLATE.
const defaultPromptTemplate = "Illustrated Disney Pixar, Christmas Postcard with %s. " +
	"Merry Christmas text must be in picture handwritten font, '%s' text must be in picture, " +
	"ensuring all elements are centrally composed to prevent cropping and all the text is inside the picture"

// LoadDotEnv loads a .env file if one exists. Existing environment variables
// are not overwritten, so deployment env always wins.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// FromEnv builds a Config from environment variables. The upstream API key is
// required; everything else has development defaults.
func FromEnv() (Config, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return Config{}, errors.New("OPENAI_API_KEY is not set")
	}

	tz := getEnv("CARDMILL_TZ", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Config{}, fmt.Errorf("invalid CARDMILL_TZ %q: %w", tz, err)
	}

	backend := getEnv("CARDMILL_STORE", StoreSQLite)
	switch backend {
	case StoreMemory, StoreSQLite, StorePostgres, StoreRedis:
	default:
		return Config{}, fmt.Errorf("invalid CARDMILL_STORE %q", backend)
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Config{
		Addr:       getEnv("CARDMILL_ADDR", ":3002"),
		PublicDir:  getEnv("CARDMILL_PUBLIC_DIR", "public"),
		LogFormat:  getEnv("CARDMILL_LOG_FORMAT", "text"),
		PolicyPath: getEnv("CARDMILL_POLICY_PATH", "configs/policy.yaml"),
		Timezone:   loc,
		Store: StoreConfig{
			Backend:     backend,
			SQLitePath:  getEnv("CARDMILL_SQLITE_PATH", "api_usage.db"),
			PostgresDSN: os.Getenv("CARDMILL_POSTGRES_DSN"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("CARDMILL_REDIS_URL"),
			PoolSize:     getEnvInt("CARDMILL_REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("CARDMILL_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		OpenAI: OpenAIConfig{
			APIKey:         apiKey,
			BaseURL:        getEnv("CARDMILL_OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:          getEnv("CARDMILL_IMAGE_MODEL", "dall-e-3"),
			Size:           getEnv("CARDMILL_IMAGE_SIZE", "1024x1024"),
			PromptTemplate: getEnv("CARDMILL_PROMPT_TEMPLATE", defaultPromptTemplate),
			RequestTimeout: 2 * time.Minute,
		},
		Admin: AdminConfig{
			PasswordHash:  os.Getenv("CARDMILL_ADMIN_PASSWORD_HASH"),
			JWTSigningKey: jwtSigningKey,
			TokenTTL:      time.Hour,
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
