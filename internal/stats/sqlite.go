package stats

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

//go:embed schema.sql
var schema string

// SQLiteStore keeps the record in three tables. Each increment is one
// transaction, and the pool is pinned to a single connection so writers
// queue instead of failing with SQLITE_BUSY.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func OpenSQLiteStore(path string, opts ...Option) (*SQLiteStore, error) {
	o := buildOptions(opts)

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Info().Str("path", path).Msg("opened sqlite stats store")
	return &SQLiteStore{db: db, now: o.now}, nil
}

func (s *SQLiteStore) Increment(ctx context.Context, keyword string) (*Record, error) {
	keyword = normalizeKeyword(keyword)
	day := s.now().Format(DateLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin increment: %w", err)
	}
	defer tx.Rollback()

	if err := checkVersion(ctx, tx); err != nil {
		return nil, err
	}

	stmts := []struct {
		query string
		args  []any
	}{
		{`UPDATE meta SET value = value + 1 WHERE key = 'count'`, nil},
		{`INSERT INTO keywords (keyword, count) VALUES (?, 1)
			ON CONFLICT(keyword) DO UPDATE SET count = count + 1`, []any{keyword}},
		{`INSERT INTO daily (day, count) VALUES (?, 1)
			ON CONFLICT(day) DO UPDATE SET count = count + 1`, []any{day}},
	}
	for _, st := range stmts {
		if _, err := tx.ExecContext(ctx, st.query, st.args...); err != nil {
			return nil, fmt.Errorf("increment: %w", err)
		}
	}

	r, err := readRecord(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit increment: %w", err)
	}

	log.Debug().Str("keyword", keyword).Int("count", r.Count).Msg("stats incremented")
	return r, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin load: %w", err)
	}
	defer tx.Rollback()

	if err := checkVersion(ctx, tx); err != nil {
		return nil, err
	}
	return readRecord(ctx, tx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func checkVersion(ctx context.Context, tx *sql.Tx) error {
	var v int
	err := tx.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'version'`).Scan(&v)
	if err != nil {
		return fmt.Errorf("%w: read version: %v", ErrFormat, err)
	}
	if v < 1 || v > CurrentVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrFormat, v)
	}
	return nil
}

func readRecord(ctx context.Context, tx *sql.Tx) (*Record, error) {
	r := NewRecord()
	if err := tx.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'count'`).Scan(&r.Count); err != nil {
		return nil, fmt.Errorf("%w: read count: %v", ErrFormat, err)
	}
	if err := readCounts(ctx, tx, `SELECT keyword, count FROM keywords`, r.Keywords); err != nil {
		return nil, err
	}
	if err := readCounts(ctx, tx, `SELECT day, count FROM daily`, r.Daily); err != nil {
		return nil, err
	}
	return r, nil
}

func readCounts(ctx context.Context, tx *sql.Tx, query string, into map[string]int) error {
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan counts: %w", err)
		}
		into[key] = n
	}
	return rows.Err()
}
