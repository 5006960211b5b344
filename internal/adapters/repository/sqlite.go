package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// SQLiteStore keeps both tables in a local sqlite file. It backs local runs
// and tests.
type SQLiteStore struct {
	db   *sql.DB
	opts sqlOptions
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at path and applies
// the embedded schema.
func NewSQLiteStore(ctx context.Context, path string, opts ...SQLOption) (*SQLiteStore, error) {
	o := applySQLOptions(opts)
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(o.maxOpenConns)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	if !o.skipMigrate {
		if _, err := migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: migrate: %w", err)
		}
	}
	return &SQLiteStore{db: db, opts: o}, nil
}

// Select returns rows in insertion order.
func (s *SQLiteStore) Select(ctx context.Context, collection string, offset, count int) ([]json.RawMessage, error) {
	if err := checkIdentifier(collection); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT * FROM %s ORDER BY rowid LIMIT ? OFFSET ?`, quoteIdentifier(collection))
	rows, err := s.db.QueryContext(ctx, query, count, offset)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", collection, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", collection, err)
	}
	out := make([]json.RawMessage, 0, count)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("select %s: scan: %w", collection, err)
		}
		row, err := encodeRow(columns, values)
		if err != nil {
			return nil, fmt.Errorf("select %s: encode: %w", collection, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select %s: %w", collection, err)
	}
	return out, nil
}

// Upsert writes all rows in one transaction using ON CONFLICT DO UPDATE.
func (s *SQLiteStore) Upsert(ctx context.Context, collection string, rows []json.RawMessage, conflictKey string) error {
	if err := checkIdentifier(collection); err != nil {
		return err
	}
	decoded, columns, err := decodeRows(rows, conflictKey)
	if err != nil {
		return err
	}
	if len(decoded) == 0 {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert %s: begin: %w", collection, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertStatement(collection, columns, conflictKey))
	if err != nil {
		return fmt.Errorf("upsert %s: prepare: %w", collection, err)
	}
	defer func() { _ = stmt.Close() }()

	args := make([]any, len(columns))
	for i, row := range decoded {
		for j, c := range columns {
			args[j] = row[c]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("upsert %s: row %d: %w", collection, i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("upsert %s: commit: %w", collection, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.timeout > 0 {
		return context.WithTimeout(ctx, s.opts.timeout)
	}
	return ctx, func() {}
}

func upsertStatement(collection string, columns []string, conflictKey string) string {
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdentifier(c)
		marks[i] = "?"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) ",
		quoteIdentifier(collection), strings.Join(quoted, ", "), strings.Join(marks, ", "), quoteIdentifier(conflictKey))

	updates := updateColumns(columns, conflictKey)
	if len(updates) == 0 {
		b.WriteString("DO NOTHING")
		return b.String()
	}
	sets := make([]string, len(updates))
	for i, c := range updates {
		sets[i] = fmt.Sprintf("%s = excluded.%s", quoteIdentifier(c), quoteIdentifier(c))
	}
	b.WriteString("DO UPDATE SET ")
	b.WriteString(strings.Join(sets, ", "))
	return b.String()
}
