package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v4/stdlib"
	_ "modernc.org/sqlite"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

type Store struct {
	db      *sql.DB
	dialect dialect
}

// New opens the database named by dsn and applies the schema. A postgres:// or postgresql://
// URL selects PostgreSQL through the pgx driver; anything else is a SQLite path (":memory:" works).
func New(dsn string) (*Store, error) {
	s := &Store{}
	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "pgx"
		s.dialect = dialectPostgres
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s.db = db

	if s.dialect == dialectSQLite {
		// SQLite allows one writer; an in-memory database also lives in a single connection.
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout=5000",
			"PRAGMA foreign_keys=ON",
		} {
			if _, err := db.Exec(pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("set %q: %w", pragma, err)
			}
		}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	pk, ts := "INTEGER PRIMARY KEY AUTOINCREMENT", "DATETIME"
	if s.dialect == dialectPostgres {
		pk, ts = "BIGSERIAL PRIMARY KEY", "TIMESTAMPTZ"
	}
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS questions (
		id %[1]s,
		text TEXT NOT NULL,
		answers TEXT NOT NULL,
		correct_answer INTEGER NOT NULL,
		explanation TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL,
		image_path TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_questions_category ON questions (category);

	CREATE TABLE IF NOT EXISTS quiz_sessions (
		id %[1]s,
		type TEXT NOT NULL,
		total_questions INTEGER NOT NULL,
		correct_answers INTEGER NOT NULL,
		incorrect_answers INTEGER NOT NULL,
		percentage INTEGER NOT NULL,
		passed BOOLEAN NOT NULL,
		time_spent INTEGER NOT NULL DEFAULT 0,
		created_at %[2]s NOT NULL
	);

	CREATE TABLE IF NOT EXISTS session_answers (
		id %[1]s,
		session_id BIGINT NOT NULL,
		position INTEGER NOT NULL,
		question_id BIGINT NOT NULL,
		selected_answer INTEGER NOT NULL,
		is_correct BOOLEAN NOT NULL,
		FOREIGN KEY (session_id) REFERENCES quiz_sessions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_session_answers_session ON session_answers (session_id);

	CREATE TABLE IF NOT EXISTS user_settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		selected_state TEXT NOT NULL DEFAULT '',
		has_selected_state BOOLEAN NOT NULL DEFAULT FALSE,
		timer_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		immediate_feedback BOOLEAN NOT NULL DEFAULT TRUE,
		shuffle_questions BOOLEAN NOT NULL DEFAULT TRUE,
		test_mode TEXT NOT NULL DEFAULT 'full'
	);

	CREATE TABLE IF NOT EXISTS incorrect_answers (
		id %[1]s,
		question_id BIGINT NOT NULL,
		selected_answer INTEGER NOT NULL,
		correct_answer INTEGER NOT NULL,
		created_at %[2]s NOT NULL,
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);

	CREATE TABLE IF NOT EXISTS marked_questions (
		id %[1]s,
		question_id BIGINT NOT NULL UNIQUE,
		created_at %[2]s NOT NULL,
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		sha256 TEXT NOT NULL,
		imported_at %[2]s NOT NULL
	);
	`, pk, ts)
	_, err := s.db.Exec(schema)
	return err
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != dialectPostgres {
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

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) exec(ctx context.Context, q querier, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, q querier, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, q querier, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, s.rebind(query), args...)
}

// count runs a single-value integer query.
func (s *Store) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	err := s.queryRow(ctx, s.db, query, args...).Scan(&n)
	return n, err
}
