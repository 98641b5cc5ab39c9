package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

var (
	ErrFleetNotFound  = errors.New("fleet not found")
	ErrCombatNotFound = errors.New("combat not found")
	ErrInvalidRecord  = errors.New("invalid combat record")
	ErrUnknownDialect = errors.New("unknown sql dialect")
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	Sqlite   Dialect = "sqlite"
)

// Store persists fleets and combat records over database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

func New(db *sql.DB, dialect Dialect) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sql db is required")
	}
	if dialect != Postgres && dialect != Sqlite {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, dialect)
	}
	return &Store{db: db, dialect: dialect}, nil
}

// FromPool shares the pgx pool of the database service.
func FromPool(pool *pgxpool.Pool) (*Store, error) {
	return New(stdlib.OpenDBFromPool(pool), Postgres)
}

// OpenSqlite opens a sqlite database file. ":memory:" is accepted for tests.
func OpenSqlite(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// sqlite serialises writers, and each in-memory connection is its own database
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure sqlite: %w", err)
	}
	slog.Info("Sqlite store opened", "path", path)
	return New(db, Sqlite)
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Dialect() Dialect {
	return s.dialect
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Health(ctx context.Context) bool {
	return s.db.PingContext(ctx) == nil
}

// rebind turns ? placeholders into $n for postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var builder strings.Builder
	builder.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			builder.WriteByte('$')
			builder.WriteString(strconv.Itoa(n))
			continue
		}
		builder.WriteRune(r)
	}
	return builder.String()
}
