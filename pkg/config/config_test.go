package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("ALLOWED_ORIGINS", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.True(t, cfg.UseLocalDB)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "primary", cfg.InteractionsBackend)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadConfig_ProductionForcesExternalDatabase(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("POSTGRES_DSN", "  postgres://u:p@db:5432/site  ")
	t.Setenv("DEBUG", "true")
	t.Setenv("SITE_URL", "https://betiharisociety.org/")
	t.Setenv("ALLOWED_ORIGINS", "https://betiharisociety.org, https://www.betiharisociety.org")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.False(t, cfg.UseLocalDB)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "postgres://u:p@db:5432/site", cfg.PostgresDSN)
	assert.Equal(t, "https://betiharisociety.org", cfg.SiteURL)
	assert.Equal(t, []string{"https://betiharisociety.org", "https://www.betiharisociety.org"}, cfg.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Environment:         "development",
			Port:                "3000",
			JWTSecret:           "s3cret",
			UseLocalDB:          true,
			InteractionsBackend: "primary",
			FetchTimeout:        5 * time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing port", mutate: func(c *Config) { c.Port = "" }, wantErr: "PORT"},
		{name: "default secret in production", mutate: func(c *Config) {
			c.Environment = "production"
			c.JWTSecret = defaultJWTSecret
		}, wantErr: "JWT_SECRET"},
		{name: "default secret in development", mutate: func(c *Config) { c.JWTSecret = defaultJWTSecret }},
		{name: "no database", mutate: func(c *Config) { c.UseLocalDB = false }, wantErr: "POSTGRES_DSN"},
		{name: "dynamodb without table", mutate: func(c *Config) {
			c.InteractionsBackend = "dynamodb"
		}, wantErr: "DYNAMODB_INTERACTIONS_TABLE"},
		{name: "unknown interactions backend", mutate: func(c *Config) { c.InteractionsBackend = "redis" }, wantErr: "INTERACTIONS_BACKEND"},
		{name: "zero fetch timeout", mutate: func(c *Config) { c.FetchTimeout = 0 }, wantErr: "FETCH_TIMEOUT"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(c)
			err := c.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestConfiguredHelpers(t *testing.T) {
	c := &Config{}
	assert.False(t, c.MailerConfigured())
	assert.False(t, c.MediaConfigured())

	c.SMTPHost = "smtp.example.org"
	c.EmailFrom = "no-reply@example.org"
	c.MediaBucket = "media"
	assert.True(t, c.MailerConfigured())
	assert.True(t, c.MediaConfigured())
}
