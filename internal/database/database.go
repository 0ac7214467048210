package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/careledger/ndis-ledger/internal/config"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Open connects a pgx pool to the ledger schema. Every connection carries the configured statement
// timeout, so a stuck lock on a budget row fails the deduction instead of blocking the caller.
func Open(cfg config.Database) (*pgxpool.Pool, error) {
	ctx := context.Background()

	poolConfig, err := pgxpool.ParseConfig(connectionUrl(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.StatementTimeout > 0 {
		poolConfig.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database %s unreachable: %w", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)), err)
	}
	return pool, nil
}

// Migrate applies the pending migrations from the nearest migrations directory.
func Migrate(cfg config.Database) error {
	dir, err := migrationsDir()
	if err != nil {
		return err
	}

	m, err := migrate.New("file://"+dir, connectionUrl(cfg))
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Debug("ledger schema is up to date")
	case err != nil:
		return fmt.Errorf("migration up failed: %w", err)
	default:
		version, _, _ := m.Version()
		log.Infof("ledger schema migrated to version %d", version)
	}
	return nil
}

// connectionUrl is understood by both pgx and the migrate postgres driver. search_path is passed
// through as a runtime parameter.
func connectionUrl(cfg config.Database) string {
	query := url.Values{}
	query.Set("sslmode", "disable")
	if cfg.Schema != "" {
		query.Set("search_path", cfg.Schema)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Pass),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: query.Encode(),
	}
	return u.String()
}

// migrationsDir walks up from the working directory, which is a package directory under go test.
func migrationsDir() (string, error) {
	start, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for dir := start; ; {
		candidate := filepath.Join(dir, "migrations")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return filepath.Abs(candidate)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no migrations directory above %s", start)
		}
		dir = parent
	}
}
