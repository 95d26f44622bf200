package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Schema version tracking:
// 0 - Empty database
// 1 - widgets table with UNIQUE z
// 2 - id_high_water row so deleted ids are not reissued after a restart
// 3 - 64-bit geometry and z columns on PostgreSQL
const currentSchemaVersion = 3

// Store owns the database connection and its schema.
type Store struct {
	db     *sql.DB
	driver string
}

// OpenOption configures Open.
type OpenOption func(*openConfig)

type openConfig struct {
	readOnly bool
}

// ReadOnly opens an existing database for reading. The schema is neither
// created nor migrated, and the connection refuses writes: SQLite runs in
// query-only mode and PostgreSQL sessions default to read-only transactions.
func ReadOnly() OpenOption {
	return func(c *openConfig) {
		c.readOnly = true
	}
}

// Open connects to dsn with the named driver and applies the schema.
//
// For sqlite3 dsn is a file path; the file is created if missing and the
// connection pool is limited to one connection. This function is idempotent:
// opening an existing database leaves its rows untouched. With ReadOnly the
// database must already carry the schema.
func Open(ctx context.Context, driver, dsn string, opts ...OpenOption) (*Store, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	var cfg openConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.readOnly {
		dsn = readOnlyDSN(driver, dsn)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite only supports one writer at a time, so limit connections
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		pragmas := writerPragmas
		if cfg.readOnly {
			pragmas = readerPragmas
		}
		if err := applyPragmas(ctx, db, pragmas); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	s := &Store{db: db, driver: driver}
	if cfg.readOnly {
		if err := s.checkSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return s, nil
	}
	if err := s.applySchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return s, nil
}

// readOnlyDSN adds the driver's read-only connection parameter to dsn.
func readOnlyDSN(driver, dsn string) string {
	switch driver {
	case DriverSQLite:
		return appendQuery(dsn, "_query_only=true")
	case DriverPostgres:
		if strings.Contains(dsn, "://") {
			return appendQuery(dsn, "default_transaction_read_only=on")
		}
		return strings.TrimSpace(dsn + " default_transaction_read_only=on")
	}
	return dsn
}

func appendQuery(dsn, param string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + param
	}
	return dsn + "?" + param
}

// checkSchema fails unless the database already carries the widget schema.
func (s *Store) checkSchema(ctx context.Context) error {
	version, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("database has no widget schema: %w", err)
	}
	if version == 0 {
		return fmt.Errorf("database has no widget schema")
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Driver returns the driver name the store was opened with.
func (s *Store) Driver() string {
	return s.driver
}

// MaxID returns the highest widget id ever stored, including deleted ones,
// or 0 for a new database. Id generators are seeded from it so ids are not
// reused after a restart.
func (s *Store) MaxID(ctx context.Context) (int64, error) {
	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(value), 0) FROM id_high_water`).Scan(&id); err != nil {
		return 0, fmt.Errorf("query max id: %w", err)
	}
	return id, nil
}

// SchemaVersion returns the recorded schema version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}
	return version, nil
}

// rebind rewrites ? placeholders into the driver's native form.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLite pragmas for read-write and read-only connections.
var (
	writerPragmas = []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	readerPragmas = []string{
		"PRAGMA busy_timeout = 5000",
	}
)

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sql.DB, pragmas []string) error {
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func (s *Store) applySchema(ctx context.Context) error {
	// One statement per Exec; not every driver accepts a batch.
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema: %w", err)
		}
	}

	version, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if version >= currentSchemaVersion {
		return nil
	}

	if err := s.runMigrations(ctx, version); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental migrations from version in a single
// transaction and records the new version.
func (s *Store) runMigrations(ctx context.Context, version int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	// Version 1 is the base schema created above.
	if version < 2 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO id_high_water (value)
			SELECT COALESCE(MAX(id), 0) FROM widgets
		`); err != nil {
			return fmt.Errorf("migrate to v2: %w", err)
		}
	}

	// SQLite INTEGER columns already hold 64 bits.
	if version < 3 && s.driver == DriverPostgres {
		if _, err := tx.ExecContext(ctx, `
			ALTER TABLE widgets
				ALTER COLUMN x TYPE BIGINT,
				ALTER COLUMN y TYPE BIGINT,
				ALTER COLUMN z TYPE BIGINT,
				ALTER COLUMN width TYPE BIGINT,
				ALTER COLUMN height TYPE BIGINT
		`); err != nil {
			return fmt.Errorf("migrate to v3: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM schema_version`); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO schema_version (version) VALUES (?)`), currentSchemaVersion); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}

	return tx.Commit()
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
