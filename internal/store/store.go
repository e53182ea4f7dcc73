package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/factbase/internal/fact"
	"github.com/roach88/factbase/internal/pred"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added numeric index on attrs(name, num)
const currentSchemaVersion = fact.SchemaVersion

// Store is a SQLite-backed fact store.
// Uses WAL mode and a single connection.
//
// The Store itself implements Facts with autocommit semantics. Work that
// must be atomic goes through Txn; while a transaction is open, all access
// must go through the view handed to the callback, since the pool has only
// one connection.
type Store struct {
	db   *sql.DB
	now  func() time.Time
	root *view
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to stamp _time on inserted facts.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement (attribute rows cascade with their fact)
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	// _foreign_keys in the DSN applies to every connection the driver opens
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.root = &view{s: s, q: db, seq: new(int)}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Query returns the facts matching p, ordered by id.
func (s *Store) Query(ctx context.Context, p pred.Predicate) ([]*fact.Fact, error) {
	return s.root.Query(ctx, p)
}

// Insert creates a new fact carrying _id and _time.
func (s *Store) Insert(ctx context.Context) (*fact.Fact, error) {
	return s.root.Insert(ctx)
}

// Delete removes the facts matching p and returns how many were removed.
func (s *Store) Delete(ctx context.Context, p pred.Predicate) (int, error) {
	return s.root.Delete(ctx, p)
}

// Append persists new values of the named attribute of fact id.
func (s *Store) Append(ctx context.Context, id int64, name string, vals ...fact.Value) error {
	return s.root.Append(ctx, id, name, vals...)
}

// Txn runs fn inside a SQL transaction. See Facts.Txn.
func (s *Store) Txn(ctx context.Context, fn func(Facts) error) error {
	return s.root.Txn(ctx, fn)
}

// Stats summarizes the store contents.
type Stats struct {
	Facts int64 `json:"facts"`
	Attrs int64 `json:"attrs"`
}

// Stats counts facts and attribute values.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM facts").Scan(&st.Facts); err != nil {
		return st, fmt.Errorf("count facts: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM attrs").Scan(&st.Attrs); err != nil {
		return st, fmt.Errorf("count attrs: %w", err)
	}
	return st, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the index serving numeric and time comparisons.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_attrs_name_num
		ON attrs(name, num)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
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
