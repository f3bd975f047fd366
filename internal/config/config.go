package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type AuthMode string

const (
	// AuthModeDev acepta X-Debug-User-ID sin verificar nada. Solo desarrollo.
	AuthModeDev    AuthMode = "dev"
	AuthModeJWT    AuthMode = "jwt"
	AuthModeRemote AuthMode = "remote"
)

// Config se lee de variables de entorno (sin prefijo).
type Config struct {
	AppName string `envconfig:"APP_NAME" default:"pet-vaccination-clinic"`
	Port    int    `envconfig:"PORT" default:"8080"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// DBDSN vacío = repositorios en memoria.
	DBDSN         string `envconfig:"DB_DSN"`
	DBAutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"false"`

	AuthMode      AuthMode      `envconfig:"AUTH_MODE" default:"dev"`
	JWTSecret     string        `envconfig:"JWT_SECRET"`
	JWTTTL        time.Duration `envconfig:"JWT_TTL" default:"24h"`
	JWTRefreshTTL time.Duration `envconfig:"JWT_REFRESH_TTL" default:"168h"`
	IAMBaseURL    string        `envconfig:"IAM_BASE_URL"`
	IAMAPIKey     string        `envconfig:"IAM_API_KEY"`
	IAMTimeout    time.Duration `envconfig:"IAM_TIMEOUT" default:"5s"`

	CatalogCacheTTL time.Duration `envconfig:"CATALOG_CACHE_TTL" default:"5m"`
	RateLimitRPS    float64       `envconfig:"RATE_LIMIT_RPS" default:"0"`
	RateLimitBurst  int           `envconfig:"RATE_LIMIT_BURST" default:"20"`

	// ventana por defecto de GET /reports/upcoming; due_soon queda fijo en 7 días
	UpcomingReportDays int `envconfig:"UPCOMING_REPORT_DAYS" default:"7"`

	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"5s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.AuthMode = AuthMode(strings.ToLower(strings.TrimSpace(string(cfg.AuthMode))))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.AuthMode {
	case AuthModeDev:
	case AuthModeJWT:
		if strings.TrimSpace(c.JWTSecret) == "" {
			return fmt.Errorf("config: JWT_SECRET is required when AUTH_MODE=jwt")
		}
	case AuthModeRemote:
		if strings.TrimSpace(c.IAMBaseURL) == "" || strings.TrimSpace(c.IAMAPIKey) == "" {
			return fmt.Errorf("config: IAM_BASE_URL and IAM_API_KEY are required when AUTH_MODE=remote")
		}
	default:
		return fmt.Errorf("config: unknown AUTH_MODE %q", c.AuthMode)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid PORT %d", c.Port)
	}
	if c.UpcomingReportDays < 1 {
		return fmt.Errorf("config: UPCOMING_REPORT_DAYS must be >= 1")
	}
	if c.DBAutoMigrate && c.DBDSN == "" {
		return fmt.Errorf("config: DB_AUTO_MIGRATE requires DB_DSN")
	}
	return nil
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
