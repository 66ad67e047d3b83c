package config_test

import (
	"testing"
	"time"

	"market/internal/config"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.AppPort)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.False(t, cfg.RabbitMQEnabled)
	assert.Equal(t, "market.events", cfg.RabbitMQExchange)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("APP_PORT", ":9090")
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("RABBITMQ_ENABLED", "true")

	cfg, err := config.LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.AppPort)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.True(t, cfg.RabbitMQEnabled)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	v := viper.New()
	v.Set("DATABASE_DRIVER", "oracle")

	_, err := config.LoadFrom(v)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}
