package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                   string
	AllowedOrigin          string
	DatabaseURL            string
	DBMaxConns             int
	AutoMigrate            bool
	RedisAddr              string
	RedisPassword          string
	RedisDB                int
	SummaryCacheTTLSeconds int
	AuthSecret             string
	AccessTokenTTLMinutes  int
	LogLevel               string
	LogDevelopment         bool
	MediaDir               string
	MediaBaseURL           string
	RecurringIntervalMin   int
	RecurringDelaySeconds  int
	BulkConcurrency        int
	ServiceName            string
	TraceStdout            bool
}

// Load reads the process environment. A .env file in the working directory
// is applied first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port:                   getEnv("PORT", "8080"),
		AllowedOrigin:          getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:5173"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		DBMaxConns:             getInt("DB_MAX_CONNS", 20, 1),
		AutoMigrate:            getBool("AUTO_MIGRATE", true),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                getInt("REDIS_DB", 0, 0),
		SummaryCacheTTLSeconds: getInt("SUMMARY_CACHE_TTL_SECONDS", 300, 1),
		AuthSecret:             strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:  getInt("ACCESS_TOKEN_TTL_MINUTES", 480, 1),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogDevelopment:         getBool("LOG_DEVELOPMENT", false),
		MediaDir:               getEnv("MEDIA_DIR", "./media"),
		MediaBaseURL:           strings.TrimRight(getEnv("MEDIA_BASE_URL", "http://127.0.0.1:8080/media"), "/"),
		RecurringIntervalMin:   getInt("RECURRING_INTERVAL_MINUTES", 60, 1),
		RecurringDelaySeconds:  getInt("RECURRING_STARTUP_DELAY_SECONDS", 5, 0),
		BulkConcurrency:        getInt("BULK_CONCURRENCY", 8, 1),
		ServiceName:            getEnv("OTEL_SERVICE_NAME", "gestor-brecho-backend"),
		TraceStdout:            getBool("TRACE_STDOUT", false),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

// getInt falls back when the value is missing, malformed or below min.
func getInt(key string, fallback int, min int) int {
	parsed, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || parsed < min {
		return fallback
	}
	return parsed
}

func getBool(key string, fallback bool) bool {
	parsed, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return parsed
}
