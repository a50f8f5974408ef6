package store

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/yubzen/parley/internal/session"
)

const recorderTimeout = 5 * time.Second

// NewRecorder returns a session observer that mirrors conversations and
// their logs into db, and remembers the selected model.
func NewRecorder(db *DB, log zerolog.Logger) session.Observer {
	return func(ev session.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), recorderTimeout)
		defer cancel()
		if err := record(ctx, db, ev); err != nil {
			log.Warn().
				Err(err).
				Str("event", ev.Kind.String()).
				Str("conversation_id", ev.ConversationID).
				Msg("failed to cache session change")
		}
	}
}

func record(ctx context.Context, db *DB, ev session.Event) error {
	switch ev.Kind {
	case session.EventConversationsLoaded:
		convs := make([]Conversation, 0, len(ev.Conversations))
		for _, conv := range ev.Conversations {
			convs = append(convs, Conversation{ID: conv.ID, Title: conv.Title, StartedAt: conv.StartedAt})
		}
		return db.UpsertConversations(ctx, convs)
	case session.EventConversationStarted:
		conv := ev.Conversation
		return db.UpsertConversations(ctx, []Conversation{{
			ID:        conv.ID,
			Title:     conv.Title,
			Model:     ev.Model,
			StartedAt: conv.StartedAt,
		}})
	case session.EventConversationSelected, session.EventMessageAppended:
		if ev.ConversationID == "" {
			return nil
		}
		msgs := make([]TranscriptMessage, 0, len(ev.Messages))
		for _, msg := range ev.Messages {
			msgs = append(msgs, TranscriptMessage{Sender: string(msg.Sender), Text: msg.Text})
		}
		return db.ReplaceTranscript(ctx, ev.ConversationID, ev.Model, msgs)
	case session.EventConversationRemoved:
		return db.DeleteConversation(ctx, ev.Conversation.ID)
	case session.EventModelChanged:
		return db.SaveSelectedModel(ctx, ev.Model)
	}
	return nil
}
