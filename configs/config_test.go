package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DEFAULT_CURRENCY", "")
	t.Setenv("COMMIT_MAX_ATTEMPTS", "")
	t.Setenv("LOW_BALANCE_LESSONS", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "PLN", cfg.DefaultCurrency)
	assert.Equal(t, 3, cfg.CommitMaxAttempts)
	assert.Equal(t, 2, cfg.LowBalanceLessons)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("COMMIT_MAX_ATTEMPTS", "5")
	t.Setenv("LOW_BALANCE_LESSONS", "not-a-number")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 5, cfg.CommitMaxAttempts)
	assert.Equal(t, 2, cfg.LowBalanceLessons)
}

func TestGetenv_ReadsProcessEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	assert.Equal(t, "s3cret", Getenv("JWT_SECRET"))
	assert.Equal(t, "s3cret", Load().JWTSecret)
}
