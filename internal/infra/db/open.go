// Package db opens the snapshot database and manages its schema.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"shein-verse-bot/internal/pkg/config"
)

// Dialect selects the SQL flavour used by migrations and repositories.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// driverName maps a dialect to its registered database/sql driver.
func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

// ConnectionConfig sizes the connection pool.
type ConnectionConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConnectionConfig returns the pool for a dialect. SQLite gets one
// connection so writers never wait on the file lock.
func DefaultConnectionConfig(d Dialect) ConnectionConfig {
	if d == DialectSQLite {
		return ConnectionConfig{MaxOpenConns: 1, MaxIdleConns: 1}
	}
	return ConnectionConfig{
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}
}

// SQLiteDSN builds a modernc.org/sqlite DSN for a database file with WAL
// journaling and a busy timeout.
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)
}

// Open creates a pool for dialect and pings it. The pool can be resized with
// DB_MAX_OPEN_CONNS, DB_MAX_IDLE_CONNS, DB_CONN_MAX_LIFETIME and
// DB_CONN_MAX_IDLE_TIME; invalid values keep the dialect default.
func Open(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("open %s: empty DSN", dialect)
	}

	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	pool := poolFromEnv(dialect)
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	slog.Info("snapshot database connected",
		slog.String("dialect", string(dialect)),
		slog.Int("max_open_conns", pool.MaxOpenConns),
		slog.Int("max_idle_conns", pool.MaxIdleConns),
		slog.Duration("conn_max_lifetime", pool.ConnMaxLifetime))
	return db, nil
}

// poolFromEnv applies the DB_* overrides to the dialect defaults.
func poolFromEnv(dialect Dialect) ConnectionConfig {
	def := DefaultConnectionConfig(dialect)
	warn := func(applied bool, warning string) {
		if applied {
			slog.Warn("database pool setting ignored", slog.String("warning", warning))
		}
	}

	open := config.LoadInt("DB_MAX_OPEN_CONNS", def.MaxOpenConns, config.IntRange(1, 100))
	warn(open.FallbackApplied, open.Warning)
	idle := config.LoadInt("DB_MAX_IDLE_CONNS", def.MaxIdleConns, config.IntRange(1, 100))
	warn(idle.FallbackApplied, idle.Warning)
	life := config.LoadDuration("DB_CONN_MAX_LIFETIME", def.ConnMaxLifetime, config.DurationRange(time.Second, 24*time.Hour))
	warn(life.FallbackApplied, life.Warning)
	idleTime := config.LoadDuration("DB_CONN_MAX_IDLE_TIME", def.ConnMaxIdleTime, config.DurationRange(time.Second, 24*time.Hour))
	warn(idleTime.FallbackApplied, idleTime.Warning)

	return ConnectionConfig{
		MaxOpenConns:    open.Value,
		MaxIdleConns:    idle.Value,
		ConnMaxLifetime: life.Value,
		ConnMaxIdleTime: idleTime.Value,
	}
}
