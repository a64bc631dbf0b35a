package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vk/jobhost/internal/storage"
)

// Read implements storage.Table.
func (s *Store) Read(ctx context.Context, table, partition, row string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM table_rows WHERE table_name = ? AND partition_key = ? AND row_key = ?`,
		table, partition, row,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s/%s: %w", table, partition, row, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading row: %w", err)
	}
	return data, nil
}

// Write implements storage.Table. Existing rows are replaced.
func (s *Store) Write(ctx context.Context, table, partition, row string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO table_rows (table_name, partition_key, row_key, data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (table_name, partition_key, row_key)
		DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		table, partition, row, data, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("writing row: %w", err)
	}
	return nil
}
