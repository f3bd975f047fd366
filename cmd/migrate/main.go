package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/kelseyhightower/envconfig"

	pg "pet-vaccination-clinic/internal/adapters/storage/postgres"
	"pet-vaccination-clinic/internal/platform/logger"
)

type migrateConfig struct {
	DBDSN     string `envconfig:"DB_DSN" required:"true"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

func main() {
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	var cfg migrateConfig
	if err := envconfig.Process("", &cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: logger.ParseFormat(cfg.LogFormat),
		App:    "migrate",
	})

	m, err := pg.NewMigrator(cfg.DBDSN, log)
	if err != nil {
		fatal(log, "migration init failed", err)
	}
	defer m.Close()

	switch args[0] {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			fatal(log, "up failed", err)
		}
		log.Info("migrations: up completed", nil)

	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				fatal(log, "down: invalid steps argument", fmt.Errorf("%q", args[1]))
			}
			steps = n
		}
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			fatal(log, "down failed", err)
		}
		log.Info("migrations: down completed", map[string]any{"steps": steps})

	case "version":
		v, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			fatal(log, "version failed", err)
		}
		fmt.Printf("version: %d  dirty: %v\n", v, dirty)

	case "force":
		if len(args) < 2 {
			fatal(log, "force: version argument required", nil)
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			fatal(log, "force: invalid version", fmt.Errorf("%q", args[1]))
		}
		if err := m.Force(v); err != nil {
			fatal(log, "force failed", err)
		}
		log.Info("migrations: forced", map[string]any{"version": v})

	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: migrate <command> [args]

Commands:
  up           Apply all pending migrations
  down [N]     Rollback N migrations (default: 1)
  version      Print current migration version
  force <V>    Force set migration version (bypass dirty state)

Environment:
  DB_DSN       Required. postgres:// URL.`)
}

func fatal(log logger.Logger, msg string, err error) {
	fields := map[string]any{}
	if err != nil {
		fields["error"] = err.Error()
	}
	log.Error(msg, fields)
	os.Exit(1)
}
