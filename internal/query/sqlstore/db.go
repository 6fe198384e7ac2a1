package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type DBConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	ConnMaxIdleTime time.Duration
}

// Open connects to the dataset store. SQLite files are always opened
// read-only.
func Open(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("dataset dsn is required")
	}

	var driverName, dsn string
	switch cfg.Driver {
	case DriverSQLite, "":
		driverName, dsn = "sqlite3", ReadOnlySQLiteDSN(cfg.DSN)
	case DriverPostgres:
		driverName, dsn = "pgx", cfg.DSN
	default:
		return nil, fmt.Errorf("unsupported dataset driver %q", cfg.Driver)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open dataset db: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping dataset db: %w", err)
	}
	return db, nil
}

// NewEngineForDriver picks the read-only strategy matching the driver.
func NewEngineForDriver(db *sql.DB, driver string) *Engine {
	return NewEngine(db, Options{ReadOnlyTx: driver == DriverPostgres})
}

// ReadOnlySQLiteDSN turns a file path or file: URI into a URI that opens the
// database with mode=ro, keeping any other parameters.
func ReadOnlySQLiteDSN(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	path, rawQuery, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	params, err := url.ParseQuery(rawQuery)
	if err != nil {
		params = url.Values{}
	}
	params.Set("mode", "ro")
	return "file:" + path + "?" + params.Encode()
}
