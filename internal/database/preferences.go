package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jroosing/dnsdash/internal/theme"
)

// ErrPreferenceNotFound is returned when a preference key has never been set.
var ErrPreferenceNotFound = errors.New("preference not found")

// SetPreference upserts a preference value.
func (db *DB) SetPreference(ctx context.Context, key, value string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	query := `
		INSERT INTO preferences (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := db.conn.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set preference %s: %w", key, err)
	}
	return nil
}

// GetPreference retrieves a preference value.
func (db *DB) GetPreference(ctx context.Context, key string) (string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var value string
	err := db.conn.QueryRowContext(ctx, "SELECT value FROM preferences WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrPreferenceNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get preference %s: %w", key, err)
	}
	return value, nil
}

// GetPreferenceWithDefault retrieves a preference value or returns defaultValue.
func (db *DB) GetPreferenceWithDefault(ctx context.Context, key, defaultValue string) string {
	value, err := db.GetPreference(ctx, key)
	if err != nil {
		return defaultValue
	}
	return value
}

// AllPreferences returns every stored preference.
func (db *DB) AllPreferences(ctx context.Context) (map[string]string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.QueryContext(ctx, "SELECT key, value FROM preferences ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("failed to query preferences: %w", err)
	}
	defer rows.Close()

	prefs := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan preference row: %w", err)
		}
		prefs[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating preference rows: %w", err)
	}
	return prefs, nil
}

// DeletePreference removes a preference key.
func (db *DB) DeletePreference(ctx context.Context, key string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.conn.ExecContext(ctx, "DELETE FROM preferences WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete preference %s: %w", key, err)
	}
	return nil
}

// LoadTheme returns the stored theme preference. Missing or unknown values
// yield theme.Default.
func (db *DB) LoadTheme(ctx context.Context) (theme.Preference, error) {
	value, err := db.GetPreference(ctx, theme.StorageKey)
	if errors.Is(err, ErrPreferenceNotFound) {
		return theme.Default, nil
	}
	if err != nil {
		return theme.Default, err
	}
	return theme.OrDefault(value), nil
}

// SaveTheme persists the theme preference.
func (db *DB) SaveTheme(ctx context.Context, p theme.Preference) error {
	if _, err := theme.Parse(string(p)); err != nil {
		return err
	}
	return db.SetPreference(ctx, theme.StorageKey, string(p))
}

var _ theme.Store = (*DB)(nil)
