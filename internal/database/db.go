package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/iliyamo/greenhouse-led-hub/internal/config"
)

// Supported database/sql driver names.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite3"
)

const (
	pingTimeout        = 5 * time.Second
	sqliteBusyTimeout  = 5000 // milliseconds
	sqliteDirPerm      = 0o750
	sqliteConnLifetime = time.Hour
)

// DB is the process-wide connection pool.  Every request checks connections
// out of it through Execute or WithTx and returns them when the statement or
// transaction finishes.
type DB struct {
	*sql.DB
	driver string
}

// Open connects to the configured store and verifies the connection.
func Open(cfg config.DBConfig) (*DB, error) {
	var (
		dsn string
		err error
	)
	switch cfg.Driver {
	case DriverMySQL:
		dsn = mysqlDSN(cfg)
	case DriverSQLite:
		dsn, err = sqliteDSN(cfg.Path)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}

	sqlDB, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", cfg.Driver, err)
	}

	// Pool settings
	if cfg.Driver == DriverSQLite {
		// SQLite has a single writer; one connection serialises transactions.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(sqliteConnLifetime)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("verifying %s connection: %w", cfg.Driver, err)
	}
	return &DB{DB: sqlDB, driver: cfg.Driver}, nil
}

func mysqlDSN(cfg config.DBConfig) string {
	auth := cfg.User
	if cfg.Pass != "" {
		auth = fmt.Sprintf("%s:%s", cfg.User, cfg.Pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, cfg.Host, cfg.Port, cfg.Name)
}

func sqliteDSN(path string) (string, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, sqliteDirPerm); err != nil {
			return "", fmt.Errorf("creating database directory: %w", err)
		}
	}
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL",
		path, sqliteBusyTimeout), nil
}

// Driver returns the database/sql driver name the pool was opened with.
func (db *DB) Driver() string { return db.driver }

// HealthCheck verifies the store answers a trivial query.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Close releases every pooled connection.
func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	return db.DB.Close()
}
