package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type PostgresStore struct {
	db          *sql.DB
	schemaMu    sync.Mutex
	schemaReady bool
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres opens and pings dsn through the pgx driver.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	return db, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	// Only success is remembered; a failed attempt is retried on the next call.
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaReady {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS observable_resolutions (
    id TEXT PRIMARY KEY,
    operation TEXT NOT NULL,
    status TEXT NOT NULL,
    kind TEXT NOT NULL DEFAULT '',
    value TEXT NOT NULL DEFAULT '',
    observable_id TEXT NOT NULL,
    entity_type TEXT NOT NULL DEFAULT '',
    work_id TEXT NOT NULL DEFAULT '',
    connector_id TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_observable_resolutions_created_at ON observable_resolutions(created_at DESC);
`); err != nil {
		return fmt.Errorf("failed to ensure audit schema: %w", err)
	}
	s.schemaReady = true
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) (Entry, error) {
	if s == nil {
		return Entry{}, fmt.Errorf("store is nil")
	}
	entry, err := prepare(entry, time.Now())
	if err != nil {
		return Entry{}, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return Entry{}, err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO observable_resolutions
    (id, operation, status, kind, value, observable_id, entity_type, work_id, connector_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`, entry.ID, string(entry.Operation), entry.Status, entry.Kind, entry.Value,
		entry.ObservableID, entry.EntityType, entry.WorkID, entry.ConnectorID, entry.CreatedAt)
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]Entry, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, operation, status, kind, value, observable_id, entity_type, work_id, connector_id, created_at
FROM observable_resolutions
ORDER BY created_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e  Entry
			op string
		)
		if err := rows.Scan(&e.ID, &op, &e.Status, &e.Kind, &e.Value, &e.ObservableID,
			&e.EntityType, &e.WorkID, &e.ConnectorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Operation = Operation(op)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
