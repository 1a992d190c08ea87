package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"REDIS_URL":      "redis://localhost:6379/0",
		"CATALOG_SOURCE": "",
		"CART_TTL":       "",
		"PORT":           "",
	})
	require.NoError(t, err)
	require.Equal(t, CatalogEmbedded, cfg.CatalogSource)
	require.Equal(t, 720*time.Hour, cfg.CartTTL)
	require.Equal(t, "€", cfg.CurrencySymbol)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.True(t, cfg.SecurityHeadersEnabled)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"REDIS_URL":                "redis://localhost:6379/0",
		"CATALOG_SOURCE":           "file",
		"CATALOG_PATH":             "/srv/catalog.json",
		"CATALOG_DEFAULT_LIMIT":    "500",
		"CATALOG_MAX_LIMIT":        "60",
		"CART_TTL":                 "48h",
		"RATE_LIMIT_MAX":           "abc",
		"SECURITY_HEADERS_ENABLED": "off",
		"CORS_ALLOWED_ORIGINS":     "https://shop.example, ,https://admin.example",
		"PORT":                     ":9000",
	})
	require.NoError(t, err)
	require.Equal(t, "/srv/catalog.json", cfg.CatalogPath)
	require.Equal(t, 60, cfg.CatalogDefaultLimit)
	require.Equal(t, 48*time.Hour, cfg.CartTTL)
	require.Equal(t, 120, cfg.RateLimitMax)
	require.False(t, cfg.SecurityHeadersEnabled)
	require.Equal(t, []string{"https://shop.example", "https://admin.example"}, cfg.CORSAllowedOrigins)
	require.Equal(t, ":9000", cfg.HTTPAddr())
}

func TestLoadValidation(t *testing.T) {
	_, err := LoadForTests(map[string]string{"REDIS_URL": ""})
	require.Error(t, err)

	_, err = LoadForTests(map[string]string{
		"REDIS_URL":      "redis://localhost:6379/0",
		"CATALOG_SOURCE": "postgres",
		"DATABASE_URL":   "",
	})
	require.ErrorContains(t, err, "DATABASE_URL")

	_, err = LoadForTests(map[string]string{
		"REDIS_URL":      "redis://localhost:6379/0",
		"CATALOG_SOURCE": "file",
		"CATALOG_PATH":   "",
	})
	require.ErrorContains(t, err, "CATALOG_PATH")

	_, err = LoadForTests(map[string]string{
		"REDIS_URL":      "redis://localhost:6379/0",
		"CATALOG_SOURCE": "s3",
	})
	require.Error(t, err)
}
