package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Receipt returns the fingerprint recorded when function last processed the
// blob at path.
func (s *Store) Receipt(ctx context.Context, function, path string) (string, bool, error) {
	var fp string
	err := s.db.QueryRowContext(ctx,
		`SELECT fingerprint FROM blob_receipts WHERE function = ? AND path = ?`,
		function, path,
	).Scan(&fp)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading receipt: %w", err)
	}
	return fp, true, nil
}

// PutReceipt records that function processed the blob at path with the given
// content fingerprint.
func (s *Store) PutReceipt(ctx context.Context, function, path, fingerprint string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blob_receipts (function, path, fingerprint, processed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (function, path)
		DO UPDATE SET fingerprint = excluded.fingerprint, processed_at = excluded.processed_at`,
		function, path, fingerprint, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("writing receipt: %w", err)
	}
	return nil
}
