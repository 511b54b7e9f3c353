package sqlstore

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rpggio/marginalia/internal/auth"
	"github.com/rpggio/marginalia/internal/repository"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// Dialect selects the SQL flavor of the underlying database.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DB wraps a database connection with its dialect.
type DB struct {
	*sql.DB
	dialect Dialect
	now     func() time.Time
}

// Open opens a store for the given driver name ("sqlite" or "postgres").
func Open(driver, dsn string) (*DB, error) {
	switch Dialect(driver) {
	case DialectSQLite, "":
		return OpenSQLite(dsn)
	case DialectPostgres, "pgx":
		return OpenPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// OpenSQLite opens a SQLite database. Foreign keys are enabled and times are
// stored in SQLite's text format so they sort and compare correctly.
func OpenSQLite(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", sqliteDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: an in-memory database lives and dies with it, and
	// SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &DB{DB: db, dialect: DialectSQLite, now: time.Now}, nil
}

// OpenMemory opens a private in-memory SQLite database with the schema applied.
func OpenMemory() (*DB, error) {
	db, err := OpenSQLite(":memory:")
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func sqliteDSN(dsn string) string {
	if dsn == "" || dsn == ":memory:" {
		dsn = "file::memory:"
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	path, query, _ := strings.Cut(dsn, "?")
	var params []string
	if query != "" {
		params = strings.Split(query, "&")
	}
	for _, d := range sqliteDefaults {
		if !strings.Contains(query, d.key) {
			params = append(params, d.param)
		}
	}
	return path + "?" + strings.Join(params, "&")
}

// sqliteDefaults are appended to a DSN whose query does not set them.
var sqliteDefaults = []struct{ key, param string }{
	{"_pragma=foreign_keys", "_pragma=foreign_keys(1)"},
	{"_pragma=busy_timeout", "_pragma=busy_timeout(5000)"},
	{"_time_format=", "_time_format=sqlite"},
}

// OpenPostgres opens a PostgreSQL database through pgx.
func OpenPostgres(dsn string) (*DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &DB{DB: db, dialect: DialectPostgres, now: time.Now}, nil
}

// Dialect reports the SQL flavor of the store.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// RunMigrations applies the embedded schema. It is safe to run repeatedly.
func (db *DB) RunMigrations(ctx context.Context) error {
	for _, stmt := range splitStatements(schema) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	return nil
}

func splitStatements(src string) []string {
	var out []string
	var b strings.Builder
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if strings.TrimSpace(b.String()) != "" {
		out = append(out, b.String())
	}
	return out
}

// guard rejects calls made with lapsed credentials.
func (db *DB) guard(ctx context.Context) error {
	if id, ok := auth.IdentityFrom(ctx); ok && id.Expired(db.now()) {
		return repository.ErrSessionExpired
	}
	return nil
}

// rebind rewrites ? placeholders for the store's dialect.
func (db *DB) rebind(query string) string {
	if db.dialect != DialectPostgres {
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

func (db *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if err := db.guard(ctx); err != nil {
		return nil, err
	}
	return db.ExecContext(ctx, db.rebind(query), args...)
}

func (db *DB) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if err := db.guard(ctx); err != nil {
		return nil, err
	}
	return db.QueryContext(ctx, db.rebind(query), args...)
}

func (db *DB) queryRow(ctx context.Context, query string, args ...any) (*sql.Row, error) {
	if err := db.guard(ctx); err != nil {
		return nil, err
	}
	return db.QueryRowContext(ctx, db.rebind(query), args...), nil
}

// placeholders returns "?, ?, ?" for n values.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

// chunk splits values into slices of at most size elements.
func chunk[T any](values []T, size int) [][]T {
	var out [][]T
	for size < len(values) {
		values, out = values[size:], append(out, values[:size])
	}
	if len(values) > 0 {
		out = append(out, values)
	}
	return out
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
