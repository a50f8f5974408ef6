package store

import (
	"context"
	"strings"
	"time"
)

const DefaultInputHistoryLimit = 100

// AppendInputHistory records a submitted prompt and keeps only the newest
// limit entries.
func (db *DB) AppendInputHistory(ctx context.Context, content string, limit int) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if limit <= 0 {
		limit = DefaultInputHistoryLimit
	}

	if _, err := db.conn.ExecContext(ctx, `
		INSERT INTO input_history (content, created_at)
		VALUES (?, ?)
	`, content, time.Now().UTC()); err != nil {
		return err
	}

	_, err := db.conn.ExecContext(ctx, `
		DELETE FROM input_history
		WHERE id NOT IN (
			SELECT id
			FROM input_history
			ORDER BY id DESC
			LIMIT ?
		)
	`, limit)
	return err
}

// InputHistory returns up to limit prompts, oldest first.
func (db *DB) InputHistory(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultInputHistoryLimit
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT content FROM (
			SELECT id, content
			FROM input_history
			ORDER BY id DESC
			LIMIT ?
		)
		ORDER BY id ASC
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0, limit)
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, err
		}
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		out = append(out, content)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
