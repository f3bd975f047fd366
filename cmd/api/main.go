// @title Pet Vaccination Clinic API
// @version 1.0
// @description Mascotas, catálogo de vacunas y registros de vacunación con acceso por rol (dueño / staff).
// @BasePath /
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	jwtauth "pet-vaccination-clinic/internal/adapters/auth/jwt"
	"pet-vaccination-clinic/internal/adapters/auth/remote"
	pg "pet-vaccination-clinic/internal/adapters/storage/postgres"
	"pet-vaccination-clinic/internal/config"
	"pet-vaccination-clinic/internal/platform/logger"
	"pet-vaccination-clinic/internal/platform/metrics"
	"pet-vaccination-clinic/internal/ports/auth"
	"pet-vaccination-clinic/internal/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: logger.ParseFormat(cfg.LogFormat),
		App:    cfg.AppName,
	})

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

func run(cfg config.Config, log logger.Logger) error {
	var db *sql.DB
	if cfg.DBDSN != "" {
		if cfg.DBAutoMigrate {
			if err := pg.MigrateUp(cfg.DBDSN, log); err != nil {
				return err
			}
			log.Info("migrations applied", nil)
		}

		opened, err := pg.Open(cfg.DBDSN)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer opened.Close()
		db = opened
		log.Info("using postgres storage", nil)
	} else {
		log.Warn("DB_DSN not set, using in-memory storage", nil)
	}

	verifier, issuer, err := authAdapters(cfg)
	if err != nil {
		return err
	}
	if cfg.AuthMode == config.AuthModeDev {
		log.Warn("auth mode dev: X-Debug-User-ID is trusted without verification", nil)
	}

	h := router.NewRouter(router.Options{
		AuthVerifier:       verifier,
		TokenIssuer:        issuer,
		DB:                 db,
		Logger:             log,
		Metrics:            metrics.New("pet_vaccination"),
		CatalogCacheTTL:    cfg.CatalogCacheTTL,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		UpcomingReportDays: cfg.UpcomingReportDays,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      h,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", map[string]any{"addr": srv.Addr, "auth_mode": string(cfg.AuthMode)})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// authAdapters elige verifier/issuer según AUTH_MODE. En dev ambos son nil.
func authAdapters(cfg config.Config) (auth.AuthVerifier, auth.TokenIssuer, error) {
	switch cfg.AuthMode {
	case config.AuthModeJWT:
		svc, err := jwtauth.New(jwtauth.Config{
			Secret:     cfg.JWTSecret,
			Issuer:     cfg.AppName,
			TTL:        cfg.JWTTTL,
			RefreshTTL: cfg.JWTRefreshTTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return svc, svc, nil
	case config.AuthModeRemote:
		client, err := remote.NewClient(remote.Config{
			BaseURL: cfg.IAMBaseURL,
			APIKey:  cfg.IAMAPIKey,
			Timeout: cfg.IAMTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return remote.NewVerifier(client), nil, nil
	default:
		return nil, nil, nil
	}
}
