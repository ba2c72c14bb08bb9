package config

import (
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              string
	DBDriver          string
	DatabaseURL       string
	JWTSecret         string
	LogLevel          string
	DefaultCurrency   string
	CommitMaxAttempts int

	LowBalanceCron    string
	LowBalanceLessons int

	BrevoAPIKey     string
	EmailSender     string
	EmailSenderName string
}

var loadEnvOnce sync.Once

// Getenv returns a single variable from .env or the process environment.
func Getenv(key string) string {
	loadEnvOnce.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			slog.Debug(".env file not found, reading from system environment variables")
		}
	})
	return os.Getenv(key)
}

// Load reads the whole application configuration, applying defaults for unset values.
func Load() *Config {
	return &Config{
		Port:              getEnv("PORT", "8080"),
		DBDriver:          getEnv("DB_DRIVER", "postgres"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DefaultCurrency:   getEnv("DEFAULT_CURRENCY", "PLN"),
		CommitMaxAttempts: getEnvInt("COMMIT_MAX_ATTEMPTS", 3),
		LowBalanceCron:    getEnv("LOW_BALANCE_CRON", "0 7 * * *"),
		LowBalanceLessons: getEnvInt("LOW_BALANCE_LESSONS", 2),
		BrevoAPIKey:       getEnv("BREVO_API_KEY", ""),
		EmailSender:       getEnv("EMAIL_SENDER", ""),
		EmailSenderName:   getEnv("EMAIL_SENDER_NAME", ""),
	}
}

func getEnv(key, fallback string) string {
	if value := Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("Invalid integer in environment, using default", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return value
}
