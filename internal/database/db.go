package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Drivers understood by Open.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Options selects and configures the backing store.
type Options struct {
	Driver     string
	User       string
	Pass       string
	Host       string
	Port       string
	Name       string
	SQLitePath string
	AutoSchema bool // apply the embedded schema on MySQL; SQLite always applies it
}

// Open connects to the configured backend and verifies the connection.
func Open(opts Options) (*sql.DB, error) {
	switch strings.ToLower(opts.Driver) {
	case "", DriverMySQL:
		db, err := OpenMySQL(opts.User, opts.Pass, opts.Host, opts.Port, opts.Name)
		if err != nil {
			return nil, err
		}
		if opts.AutoSchema {
			if err := ApplySchema(context.Background(), db, DriverMySQL); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		return db, nil
	case DriverSQLite:
		return OpenSQLite(opts.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", opts.Driver)
	}
}

// OpenMySQL connects to MySQL and verifies the connection.
func OpenMySQL(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// OpenSQLite opens (creating if needed) a SQLite database file and applies
// the embedded schema.  Transactions begin IMMEDIATE so a second writer
// waits out busy_timeout instead of failing on lock upgrade.
func OpenSQLite(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := ApplySchema(context.Background(), db, DriverSQLite); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ApplySchema runs the embedded schema for driver.  Every statement is
// idempotent so it is safe to call on each start.
func ApplySchema(ctx context.Context, db *sql.DB, driver string) error {
	raw, err := schemaFS.ReadFile("schema/" + driver + ".sql")
	if err != nil {
		return fmt.Errorf("read %s schema: %w", driver, err)
	}
	for _, stmt := range splitStatements(string(raw)) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func splitStatements(script string) []string {
	var out []string
	for _, part := range strings.Split(script, ";") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// NameLockIndex is the unique index backing the one-active-reservation-per-name guard.
const NameLockIndex = "uq_reservations_name_lock"

// HasIndex reports whether table carries the named index.
func HasIndex(ctx context.Context, db *sql.DB, driver, table, index string) (bool, error) {
	var (
		n   int
		err error
	)
	switch strings.ToLower(driver) {
	case DriverSQLite:
		err = db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND tbl_name = ? AND name = ?`,
			table, index).Scan(&n)
	case "", DriverMySQL:
		err = db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM information_schema.statistics WHERE table_schema = DATABASE() AND table_name = ? AND index_name = ?`,
			table, index).Scan(&n)
	default:
		return false, fmt.Errorf("unsupported db driver %q", driver)
	}
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
