package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:                      "development",
		Port:                     "8080",
		JWTSecret:                "secure-secret-at-least-32-chars-long",
		DBDriver:                 "postgres",
		DBPassword:               "secure-password",
		DBSSLMode:                "require",
		FeedLimit:                50,
		FeedCacheTTLSeconds:      30,
		DBConnMaxLifetimeMinutes: 5,
		RetentionEnabled:         true,
		RetentionDays:            30,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{"valid development config", func(c *Config) {}, false},
		{"missing port", func(c *Config) { c.Port = "" }, true},
		{"missing jwt secret", func(c *Config) { c.JWTSecret = "" }, true},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }, true},
		{"sqlite in development", func(c *Config) { c.DBDriver = "sqlite" }, false},
		{"zero feed limit", func(c *Config) { c.FeedLimit = 0 }, true},
		{"negative cache ttl", func(c *Config) { c.FeedCacheTTLSeconds = -1 }, true},
		{"zero retention days", func(c *Config) { c.RetentionDays = 0 }, true},
		{"zero retention days when disabled", func(c *Config) {
			c.RetentionEnabled = false
			c.RetentionDays = 0
		}, false},
		{"tracing with bad exporter", func(c *Config) {
			c.TracingEnabled = true
			c.TracingExporter = "jaeger"
		}, true},
		{"tracing with bad ratio", func(c *Config) {
			c.TracingEnabled = true
			c.TracingExporter = "otlp"
			c.TracingSamplerRatio = 1.5
		}, true},
		{"production default secret", func(c *Config) {
			c.Env = "production"
			c.JWTSecret = defaultJWTSecret
		}, true},
		{"production sqlite", func(c *Config) {
			c.Env = "prod"
			c.DBDriver = "sqlite"
		}, true},
		{"production disabled ssl", func(c *Config) {
			c.Env = "production"
			c.DBSSLMode = "disable"
		}, true},
		{"production weak db password", func(c *Config) {
			c.Env = "production"
			c.DBPassword = "password"
		}, true},
		{"production valid", func(c *Config) { c.Env = "production" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_DefaultsAndEnv(t *testing.T) {
	defer viper.Reset()

	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_DRIVER", "  SQLite ")
	t.Setenv("FEED_LIMIT", "20")
	t.Setenv("ATOMIC_COUNTERS", "false")

	c, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, 20, c.FeedLimit)
	assert.False(t, c.AtomicCounters)
	assert.Equal(t, 30, c.RetentionDays)
	assert.Equal(t, "@daily", c.RetentionSchedule)
	assert.Equal(t, 30*time.Second, c.FeedCacheTTL())
	assert.Equal(t, 5*time.Minute, c.ConnMaxLifetime())
	assert.True(t, c.IsDevelopment())
	assert.False(t, c.IsProduction())
}
