package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storepos/backend/internal/config"
)

const strongSecret = "0123456789abcdef0123456789abcdef"

func devConfig() *config.Config {
	return &config.Config{
		App:  config.AppConfig{Env: "dev", Timezone: "UTC", AllowedOrigins: []string{"http://127.0.0.1:3000"}},
		Auth: config.AuthConfig{Secret: strongSecret},
	}
}

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	cfg := devConfig()
	cfg.Auth.Secret = "short"
	require.Error(t, validateSecurityConfig(cfg))
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	require.NoError(t, validateSecurityConfig(devConfig()))
}

func TestValidateSecurityConfigRejectsUnknownTimezone(t *testing.T) {
	cfg := devConfig()
	cfg.App.Timezone = "Mars/Olympus_Mons"
	err := validateSecurityConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POS_TIMEZONE")
}

func TestValidateSecurityConfigProduction(t *testing.T) {
	cfg := devConfig()
	cfg.App.Env = "production"
	require.Error(t, validateSecurityConfig(cfg), "database url is required")

	cfg.DB.URL = "postgres://pos@localhost/pos"
	require.NoError(t, validateSecurityConfig(cfg))

	cfg.App.AllowedOrigins = []string{"*"}
	require.Error(t, validateSecurityConfig(cfg))
}
