// Package ledger is the durable, append-only interaction timeline: every
// LLM call the inference engine makes and every tool call/tool-list probe
// a ToolExecutor runs is recorded here, keyed by session and node index,
// so a session's full history survives past the in-memory tree (SPEC_FULL
// "MCP tool-list / tool-call interaction ledger").
package ledger

import (
	stdsql "database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations
var migrationsFS embed.FS

// Store wraps the raw *sql.DB connection pool and provides the ledger's
// insert/query methods directly in SQL — there is no ORM layer here (§
// "Dropped dependency: entgo.io/ent").
type Store struct {
	db *stdsql.DB
}

// DB returns the underlying connection pool, for health checks.
func (s *Store) DB() *stdsql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Open connects to Postgres per cfg, applies pending embedded migrations,
// and returns a ready Store.
func Open(cfg Config) (*Store, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := stdsql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: open: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := runMigrations(db, cfg.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// FromDB wraps an already-open, already-migrated connection — used by
// tests that set up their own testcontainers instance.
func FromDB(db *stdsql.DB) *Store {
	return &Store{db: db}
}

func runMigrations(db *stdsql.DB, database string) error {
	hasMigrations, err := hasEmbeddedMigrations()
	if err != nil {
		return fmt.Errorf("check embedded migrations: %w", err)
	}
	if !hasMigrations {
		return fmt.Errorf("no embedded migration files found")
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, database, driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	// Close only the source driver: calling m.Close() also closes db via
	// the postgres driver it wraps, which would break the pool this Store
	// keeps using afterward.
	return sourceDriver.Close()
}

func hasEmbeddedMigrations() (bool, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read embedded migrations: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && len(name) > 4 && name[len(name)-4:] == ".sql" {
			return true, nil
		}
	}
	return false, nil
}
