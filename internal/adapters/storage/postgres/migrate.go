package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"pet-vaccination-clinic/internal/platform/logger"
	"pet-vaccination-clinic/migrations"
)

// NewMigrator arma un *migrate.Migrate sobre las migraciones embebidas.
// dsn debe ser una URL postgres:// (o postgresql://).
func NewMigrator(dsn string, log logger.Logger) (*migrate.Migrate, error) {
	url, err := MigrateURL(dsn)
	if err != nil {
		return nil, err
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("migrations source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return nil, fmt.Errorf("migrations init: %w", err)
	}
	if log != nil {
		m.Log = &migrateLogger{log: log.With(map[string]any{"component": "migrate"})}
	}
	return m, nil
}

// MigrateUp aplica todas las migraciones pendientes. Sin cambios no es error.
func MigrateUp(dsn string, log logger.Logger) error {
	m, err := NewMigrator(dsn, log)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations up: %w", err)
	}
	return nil
}

// MigrateURL cambia el esquema de la URL al del driver pgx/v5 de golang-migrate.
func MigrateURL(dsn string) (string, error) {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix), nil
		}
	}
	if strings.HasPrefix(dsn, "pgx5://") {
		return dsn, nil
	}
	return "", fmt.Errorf("migrations: unsupported dsn, expected postgres:// url")
}

type migrateLogger struct {
	log logger.Logger
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.log.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), nil)
}

func (l *migrateLogger) Verbose() bool { return false }
