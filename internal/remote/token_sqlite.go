package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-tvbridge/internal/infrastructure/database"
)

// SQLiteTokenStore persists tokens in the device_tokens table.
// The table is created by the embedded migrations.
type SQLiteTokenStore struct {
	db *database.DB
}

// NewSQLiteTokenStore wraps an open, migrated database.
func NewSQLiteTokenStore(db *database.DB) *SQLiteTokenStore {
	return &SQLiteTokenStore{db: db}
}

// LoadToken implements TokenStore.
func (s *SQLiteTokenStore) LoadToken(ctx context.Context, deviceKey string) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx,
		"SELECT token FROM device_tokens WHERE device_key = ?", deviceKey,
	).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("loading token for %s: %w", deviceKey, err)
	}
	return token, nil
}

// SaveToken implements TokenStore. paired_at keeps the first pairing time.
func (s *SQLiteTokenStore) SaveToken(ctx context.Context, deviceKey, token string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO device_tokens (device_key, token, paired_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(device_key) DO UPDATE SET
			token = excluded.token,
			updated_at = excluded.updated_at`,
		deviceKey, token, now, now,
	)
	if err != nil {
		return fmt.Errorf("saving token for %s: %w", deviceKey, err)
	}
	return nil
}

// DeleteToken removes the token so the next open pairs again.
func (s *SQLiteTokenStore) DeleteToken(ctx context.Context, deviceKey string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM device_tokens WHERE device_key = ?", deviceKey); err != nil {
		return fmt.Errorf("deleting token for %s: %w", deviceKey, err)
	}
	return nil
}
