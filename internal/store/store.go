package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	// Postgres driver, selected for postgres:// DSNs.
	_ "github.com/lib/pq"
	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Dialect names the SQL flavour behind a Store.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know by name.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Store holds the database handle and hands out repositories.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
	now     func() time.Time
}

// Open connects to dsn and creates any missing tables. A DSN starting with
// postgres:// or postgresql:// selects Postgres; anything else is treated
// as a SQLite path or URI, with an optional sqlite:// prefix.
func Open(dsn string) (*Store, error) {
	dialect, driverDSN := parseDSN(dsn)

	db, err := sqlx.Open(string(dialect), driverDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dialect == DialectSQLite {
		// SQLite allows a single writer; serialize through one connection.
		db.SetMaxOpenConns(1)
		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragmas: %w", err)
		}
	} else if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, dialect: dialect, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return s, nil
}

func parseDSN(dsn string) (Dialect, string) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return DialectPostgres, dsn
	case strings.HasPrefix(dsn, "sqlite://"):
		return DialectSQLite, strings.TrimPrefix(dsn, "sqlite://")
	}
	return DialectSQLite, dsn
}

// DB returns the underlying handle for raw queries.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Dialect reports which SQL flavour the store speaks.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Users() *UserRepo { return &UserRepo{db: s.db, now: s.now} }
func (s *Store) Exercises() *ExerciseRepo { return &ExerciseRepo{db: s.db, now: s.now} }
func (s *Store) Progress() *ProgressRepo { return &ProgressRepo{db: s.db, now: s.now} }
func (s *Store) Issued() *IssuedRepo { return &IssuedRepo{db: s.db, now: s.now} }
func (s *Store) Curriculum() *CurriculumRepo { return &CurriculumRepo{db: s.db, now: s.now} }
func (s *Store) Schemas() *SchemaRepo { return &SchemaRepo{db: s.db} }
func (s *Store) Generated() *GeneratedRepo { return &GeneratedRepo{db: s.db, now: s.now} }
func (s *Store) GenerationLogs() *GenerationLogRepo { return &GenerationLogRepo{db: s.db} }

// EventRepo returns the LLM event log.
func (s *Store) EventRepo() *LLMEventRepo { return &LLMEventRepo{db: s.db, now: s.now} }

// applyPragmas configures SQLite for a small concurrent server.
func applyPragmas(db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath resolves the SQLite file path in priority order:
// 1. LINGOLOOP_DB environment variable
// 2. $XDG_DATA_HOME/lingoloop/lingoloop.db
// 3. ~/.local/share/lingoloop/lingoloop.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("LINGOLOOP_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "lingoloop", "lingoloop.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
