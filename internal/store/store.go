package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jmoiron/sqlx"

	// Postgres driver registered as "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"
	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store holds the database handle and provides access to repositories.
type Store struct {
	db      *sqlx.DB
	dialect string
	seq     *sequenceCounter
}

// Open connects to the database, applies driver specific settings and
// creates any missing tables and indexes.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var (
		sqlDriver string
		dia       string
	)
	switch driver {
	case DriverSQLite, "":
		sqlDriver, dia = "sqlite", dialect.SQLite
	case DriverPostgres:
		sqlDriver, dia = "pgx", dialect.Postgres
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dia == dialect.SQLite {
		// One connection keeps transactions and in-memory databases sane.
		db.SetMaxOpenConns(1)
		if err := applyPragmas(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragmas: %w", err)
		}
	}

	if err := migrate(ctx, db, dia); err != nil {
		db.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	seq, err := newSequenceCounter(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, dialect: dia, seq: seq}, nil
}

// DB returns the underlying handle for raw queries.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Dialect returns the ent dialect name used for query building.
func (s *Store) Dialect() string {
	return s.dialect
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InTx runs fn with repositories bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(Repos) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(s.bind(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) WordProgress() WordProgressRepo   { return s.bind(s.db).WordProgress() }
func (s *Store) ReviewEvents() ReviewEventRepo    { return s.bind(s.db).ReviewEvents() }
func (s *Store) BlockProgress() BlockProgressRepo { return s.bind(s.db).BlockProgress() }
func (s *Store) QuizAttempts() QuizAttemptRepo    { return s.bind(s.db).QuizAttempts() }
func (s *Store) ExamAttempts() ExamAttemptRepo    { return s.bind(s.db).ExamAttempts() }
func (s *Store) Achievements() AchievementRepo    { return s.bind(s.db).Achievements() }
func (s *Store) Statistics() StatisticsRepo       { return s.bind(s.db).Statistics() }
func (s *Store) Events() EventRepo                { return s.bind(s.db).Events() }

func (s *Store) bind(ext sqlx.ExtContext) *repos {
	return &repos{ext: ext, b: entsql.Dialect(s.dialect), seq: s.seq}
}

// applyPragmas configures SQLite for single-node use.
func applyPragmas(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath resolves the SQLite database file path in priority order:
// 1. LINGVA_DB environment variable
// 2. $XDG_DATA_HOME/lingva/lingva.db
// 3. ~/.local/share/lingva/lingva.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("LINGVA_DB"); p != "" {
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

	p := filepath.Join(dataHome, "lingva", "lingva.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}
