package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetEnv borra las variables y las restaura al terminar el test.
// envconfig trata una variable vacía como presente, así que no alcanza con Setenv("").
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_Defaults(t *testing.T) {
	unsetEnv(t, "AUTH_MODE", "PORT", "DB_DSN", "DB_AUTO_MIGRATE", "UPCOMING_REPORT_DAYS",
		"CATALOG_CACHE_TTL", "JWT_TTL", "JWT_REFRESH_TTL")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, AuthModeDev, cfg.AuthMode)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 7, cfg.UpcomingReportDays)
	assert.Equal(t, 5*time.Minute, cfg.CatalogCacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTRefreshTTL)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("AUTH_MODE", "JWT")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_TTL", "30m")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("UPCOMING_REPORT_DAYS", "14")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, AuthModeJWT, cfg.AuthMode)
	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, 30*time.Minute, cfg.JWTTTL)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, 14, cfg.UpcomingReportDays)
}

func TestValidate(t *testing.T) {
	base := Config{Port: 8080, AuthMode: AuthModeDev, UpcomingReportDays: 7}
	require.NoError(t, base.Validate())

	c := base
	c.AuthMode = AuthModeJWT
	assert.Error(t, c.Validate())

	c = base
	c.AuthMode = AuthModeRemote
	c.IAMBaseURL = "https://iam.local"
	assert.Error(t, c.Validate())
	c.IAMAPIKey = "k"
	assert.NoError(t, c.Validate())

	c = base
	c.AuthMode = "basic"
	assert.Error(t, c.Validate())

	c = base
	c.DBAutoMigrate = true
	assert.Error(t, c.Validate())

	c = base
	c.UpcomingReportDays = 0
	assert.Error(t, c.Validate())
}
