package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Conversation struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Model     string    `json:"model,omitempty" yaml:"model,omitempty"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

type TranscriptMessage struct {
	Sender string `json:"sender" yaml:"sender"`
	Text   string `json:"text" yaml:"text"`
}

type Transcript struct {
	Conversation `yaml:",inline"`
	Messages     []TranscriptMessage `json:"messages" yaml:"messages"`
}

// UpsertConversations records summaries without touching cached messages.
// Titles and start times from the server win; the cached model is kept.
func (db *DB) UpsertConversations(ctx context.Context, convs []Conversation) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, conv := range convs {
		id := strings.TrimSpace(conv.ID)
		if id == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conversations (id, title, model, started_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				started_at = COALESCE(excluded.started_at, conversations.started_at),
				model = CASE WHEN excluded.model = '' THEN conversations.model ELSE excluded.model END
		`, id, conv.Title, strings.TrimSpace(conv.Model), nullTime(conv.StartedAt), now); err != nil {
			return fmt.Errorf("upsert conversation %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// ReplaceTranscript stores msgs as the full cached log of conversationID.
func (db *DB) ReplaceTranscript(ctx context.Context, conversationID, model string, msgs []TranscriptMessage) error {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return errors.New("conversation id is empty")
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (id, model, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			model = CASE WHEN excluded.model = '' THEN conversations.model ELSE excluded.model END,
			updated_at = excluded.updated_at
	`, conversationID, strings.TrimSpace(model), now); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return err
	}
	for i, msg := range msgs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (conversation_id, position, sender, content, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, conversationID, i, msg.Sender, msg.Text, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (db *DB) DeleteConversation(ctx context.Context, conversationID string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, conversationID); err != nil {
		return err
	}
	return tx.Commit()
}

func (db *DB) ListConversations(ctx context.Context) ([]Conversation, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, title, model, started_at, updated_at
		FROM conversations
		ORDER BY COALESCE(started_at, updated_at) DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

func (db *DB) Transcript(ctx context.Context, conversationID string) (Transcript, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, title, model, started_at, updated_at
		FROM conversations
		WHERE id = ?
	`, strings.TrimSpace(conversationID))
	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Transcript{}, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}
	if err != nil {
		return Transcript{}, err
	}
	msgs, err := db.messages(ctx, conv.ID)
	if err != nil {
		return Transcript{}, err
	}
	return Transcript{Conversation: conv, Messages: msgs}, nil
}

func (db *DB) Transcripts(ctx context.Context) ([]Transcript, error) {
	convs, err := db.ListConversations(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Transcript, 0, len(convs))
	for _, conv := range convs {
		msgs, err := db.messages(ctx, conv.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, Transcript{Conversation: conv, Messages: msgs})
	}
	return out, nil
}

func (db *DB) messages(ctx context.Context, conversationID string) ([]TranscriptMessage, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT sender, content
		FROM messages
		WHERE conversation_id = ?
		ORDER BY position ASC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]TranscriptMessage, 0)
	for rows.Next() {
		var msg TranscriptMessage
		if err := rows.Scan(&msg.Sender, &msg.Text); err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (Conversation, error) {
	var (
		conv      Conversation
		startedAt sql.NullTime
		updatedAt sql.NullTime
	)
	if err := row.Scan(&conv.ID, &conv.Title, &conv.Model, &startedAt, &updatedAt); err != nil {
		return Conversation{}, err
	}
	if startedAt.Valid {
		conv.StartedAt = startedAt.Time
	}
	if updatedAt.Valid {
		conv.UpdatedAt = updatedAt.Time
	}
	return conv, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
