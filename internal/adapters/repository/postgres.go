package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// PostgresStore reads and writes the tables directly over a Postgres
// connection.
type PostgresStore struct {
	db   *gorm.DB
	opts sqlOptions
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to dsn and verifies the connection.
func NewPostgresStore(ctx context.Context, dsn string, opts ...SQLOption) (*PostgresStore, error) {
	o := applySQLOptions(opts)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:               gormlogger.Default.LogMode(gormlogger.Silent),
		DisableAutomaticPing: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres: get underlying *sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(o.maxOpenConns)
	sqlDB.SetMaxIdleConns(o.maxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &PostgresStore{db: db, opts: o}, nil
}

// Select pages collection in physical (ctid) order, which is stable while
// the table is not being written. Postgres renders each row with to_jsonb,
// so timestamp columns keep their stored form: timestamptz values carry an
// offset and timestamp values stay zone-less, as PostgREST returns them.
func (s *PostgresStore) Select(ctx context.Context, collection string, offset, count int) ([]json.RawMessage, error) {
	if err := checkIdentifier(collection); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var found []string
	if err := selectQuery(s.db.WithContext(ctx), collection, offset, count).Scan(&found).Error; err != nil {
		return nil, fmt.Errorf("select %s: %w", collection, err)
	}
	return pageRows(found), nil
}

// Upsert inserts rows in one statement with ON CONFLICT DO UPDATE.
func (s *PostgresStore) Upsert(ctx context.Context, collection string, rows []json.RawMessage, conflictKey string) error {
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

	if err := upsertQuery(s.db.WithContext(ctx), collection, decoded, columns, conflictKey).Error; err != nil {
		return fmt.Errorf("upsert %s: %w", collection, err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.timeout > 0 {
		return context.WithTimeout(ctx, s.opts.timeout)
	}
	return ctx, func() {}
}

func selectQuery(tx *gorm.DB, collection string, offset, count int) *gorm.DB {
	return tx.Table(quoteIdentifier(collection) + " AS t").
		Select("to_jsonb(t)::text").
		Order("t.ctid").
		Offset(offset).
		Limit(count)
}

// pageRows wraps server-rendered JSON objects without re-encoding them.
func pageRows(found []string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(found))
	for _, row := range found {
		out = append(out, json.RawMessage(row))
	}
	return out
}

func upsertQuery(tx *gorm.DB, collection string, rows []map[string]any, columns []string, conflictKey string) *gorm.DB {
	onConflict := clause.OnConflict{Columns: []clause.Column{{Name: conflictKey}}}
	if updates := updateColumns(columns, conflictKey); len(updates) > 0 {
		onConflict.DoUpdates = clause.AssignmentColumns(updates)
	} else {
		onConflict.DoNothing = true
	}
	return tx.Table(collection).Clauses(onConflict).Create(&rows)
}
