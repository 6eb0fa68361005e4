// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package postgres contains the shared PostgreSQL connection and
// migration helpers used by all repositories.
package postgres

import (
	"fmt"

	"github.com/absmach/certkeeper/internal/env"
	"github.com/absmach/certkeeper/pkg/errors"
	_ "github.com/jackc/pgx/v5/stdlib" // required for SQL access
	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
)

var (
	errConfig    = errors.New("failed to load postgresql configuration")
	errConnect   = errors.New("failed to connect to postgresql server")
	errMigration = errors.New("failed to apply migrations")
)

// Config defines the options that are used when connecting to a PostgreSQL instance.
type Config struct {
	Host        string `env:"DB_HOST,notEmpty"     envDefault:"localhost"`
	Port        string `env:"DB_PORT,notEmpty"     envDefault:"5432"`
	User        string `env:"DB_USER,notEmpty"     envDefault:"certkeeper"`
	Pass        string `env:"DB_PASS,notEmpty"     envDefault:"certkeeper"`
	Name        string `env:"DB"                   envDefault:""`
	SSLMode     string `env:"DB_SSL_MODE,notEmpty" envDefault:"disable"`
	SSLCert     string `env:"DB_SSL_CERT"          envDefault:""`
	SSLKey      string `env:"DB_SSL_KEY"           envDefault:""`
	SSLRootCert string `env:"DB_SSL_ROOT_CERT"     envDefault:""`
}

// Setup creates a connection to the PostgreSQL instance and applies any
// unapplied database migrations. A non-nil error is returned to indicate failure.
func Setup(cfg Config, migrations migrate.MemoryMigrationSource) (*sqlx.DB, error) {
	db, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := MigrateDB(db, migrations); err != nil {
		return nil, err
	}
	return db, nil
}

// SetupWithConfig loads the connection configuration from the environment
// under the given prefix, connects and applies migrations.
func SetupWithConfig(prefix string, migrations migrate.MemoryMigrationSource, defConfig Config) (*sqlx.DB, error) {
	cfg := defConfig
	if err := env.Parse(&cfg, env.Options{Prefix: prefix}); err != nil {
		return nil, errors.Wrap(errConfig, err)
	}
	return Setup(cfg, migrations)
}

// Connect creates a connection to the PostgreSQL instance.
func Connect(cfg Config) (*sqlx.DB, error) {
	url := fmt.Sprintf("host=%s port=%s user=%s dbname=%s password=%s sslmode=%s sslcert=%s sslkey=%s sslrootcert=%s", cfg.Host, cfg.Port, cfg.User, cfg.Name, cfg.Pass, cfg.SSLMode, cfg.SSLCert, cfg.SSLKey, cfg.SSLRootCert)

	db, err := sqlx.Open("pgx", url)
	if err != nil {
		return nil, errors.Wrap(errConnect, err)
	}

	return db, nil
}

// MigrateDB applies any unapplied database migrations.
func MigrateDB(db *sqlx.DB, migrations migrate.MemoryMigrationSource) error {
	_, err := migrate.Exec(db.DB, "postgres", migrations, migrate.Up)
	if err != nil {
		return errors.Wrap(errMigration, err)
	}
	return nil
}
