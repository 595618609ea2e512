package dedup

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// PostgresStore keeps the keys in the sent_keys table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	if db == nil {
		panic("dedup: database required")
	}
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) Load(ctx context.Context) (Set, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT dedup_key FROM sent_keys`)
	if err != nil {
		return nil, fmt.Errorf("dedup: query sent keys: %w", err)
	}
	defer rows.Close()

	set := NewSet()
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("dedup: scan sent key: %w", err)
		}
		set.Add(key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dedup: iterate sent keys: %w", err)
	}
	return set, nil
}

func (s *PostgresStore) Save(ctx context.Context, keys Set) error {
	if keys.Len() == 0 {
		return nil
	}
	query := `
		INSERT INTO sent_keys (dedup_key)
		SELECT unnest($1::text[])
		ON CONFLICT (dedup_key) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, pq.Array(keys.Keys())); err != nil {
		return fmt.Errorf("dedup: insert sent keys: %w", err)
	}
	return nil
}
