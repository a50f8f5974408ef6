package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

const settingSelectedModel = "selected_model"

func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, strings.TrimSpace(key), value, time.Now().UTC())
	return err
}

// Setting returns ErrNotFound when key was never set.
func (db *DB) Setting(ctx context.Context, key string) (string, error) {
	var value string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, strings.TrimSpace(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

func (db *DB) SaveSelectedModel(ctx context.Context, modelID string) error {
	return db.SetSetting(ctx, settingSelectedModel, strings.TrimSpace(modelID))
}

// SelectedModel returns "" when no model was ever chosen.
func (db *DB) SelectedModel(ctx context.Context) (string, error) {
	value, err := db.Setting(ctx, settingSelectedModel)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return strings.TrimSpace(value), err
}
