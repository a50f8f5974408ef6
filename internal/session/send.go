package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/yubzen/parley/internal/backend"
	"github.com/yubzen/parley/internal/router"
)

// Send appends text to the log, creates a conversation if none is active,
// and posts the message to the selected model's endpoint. The reply, or an
// "Error: ..." placeholder, is appended when it arrives, unless the user has
// moved to another conversation in the meantime. Blank text is ignored.
//
// Several sends may be outstanding at once; replies land in arrival order.
// A failed chat request is not returned as an error once its placeholder is
// in the log; failing to create the conversation is.
func (s *Session) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	s.mu.Lock()
	origin := s.active
	if origin == "" && s.creating == 0 {
		s.unsentFrom = s.messages.Len()
	}
	s.messages.AppendLocal(Message{Sender: SenderUser, Text: text})
	history := s.messages.HistoryPayload()
	if origin == "" {
		history = historyPayload(s.messages.Since(s.unsentFrom))
	}
	gen := s.generation
	dispatchGen := gen
	model := s.model
	endpoint := s.router.Resolve(model)
	var creation <-chan singleflight.Result
	if origin == "" {
		s.creating++
		creation = s.startCreationLocked(ctx)
	} else {
		s.replying++
	}
	events := []Event{s.eventLocked(EventMessageAppended), s.eventLocked(EventStateChanged)}
	s.mu.Unlock()
	s.notify(events...)

	log := s.log.With().
		Str("request_id", uuid.NewString()).
		Str("model", model).
		Logger()

	if creation != nil {
		conv, err := awaitCreation(ctx, creation)
		s.mu.Lock()
		s.creating--
		if err == nil {
			s.adoptLocked(conv, gen)
			origin = conv.ID
			dispatchGen = s.generation
			s.replying++
		}
		events = []Event{s.eventLocked(EventStateChanged)}
		if err != nil {
			events = append(events, s.failureLocked(fmt.Errorf("%w: %w", ErrConversationCreate, err)))
		}
		s.mu.Unlock()
		s.notify(events...)

		if err != nil {
			log.Error().Err(err).Msg("conversation creation failed; message left unsent")
			return fmt.Errorf("%w: %w", ErrConversationCreate, err)
		}
	}

	log = log.With().Str("conversation_id", origin).Logger()
	req := backend.ChatRequest{Message: text, ConversationID: backend.ID(origin)}
	if endpoint.History == router.HistoryRoleContent {
		req.History = history
	}
	log.Debug().Str("endpoint", endpoint.URL).Int("history", len(req.History)).Msg("dispatching message")

	reply, err := s.backend.Chat(ctx, endpoint.URL, req)

	msg := Message{Sender: SenderBot}
	switch {
	case err != nil:
		msg.Text = ErrorPrefix + err.Error()
	case reply == "":
		msg.Text = NoResponseText
	default:
		msg.Text = reply
	}

	s.mu.Lock()
	s.replying--
	delivered := s.active == origin && s.generation == dispatchGen
	if delivered {
		s.messages.AppendRemote(msg)
		events = []Event{s.eventLocked(EventMessageAppended)}
	} else {
		ev := s.eventLocked(EventReplyDiscarded)
		ev.Message = msg
		ev.Conversation = Conversation{ID: origin}
		events = []Event{ev}
	}
	events = append(events, s.eventLocked(EventStateChanged))
	s.mu.Unlock()
	s.notify(events...)

	if !delivered {
		log.Warn().Msg("discarding reply for a conversation that is no longer active")
	}
	if err != nil {
		log.Error().Err(err).Msg("chat request failed")
		if !delivered {
			return fmt.Errorf("send message: %w", err)
		}
		return nil
	}
	log.Debug().Int("reply_len", len(reply)).Msg("reply received")
	return nil
}
