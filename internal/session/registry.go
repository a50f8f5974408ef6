package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yubzen/parley/internal/backend"
)

// DefaultTitle labels a conversation the server created without a title.
func DefaultTitle(t time.Time) string {
	return "Chat - " + t.Format("1/2/2006, 3:04:05 PM")
}

// Load replaces the registry with the server's list and resets the session
// to no active conversation. It is a no-op when signed out.
func (s *Session) Load(ctx context.Context) error {
	if s.creds != nil && !s.creds.IsAuthenticated() {
		s.log.Debug().Msg("skipping conversation load: not signed in")
		return nil
	}

	list, err := s.backend.ListConversations(ctx)
	if errors.Is(err, backend.ErrNotAuthenticated) {
		s.log.Debug().Msg("skipping conversation load: no token")
		return nil
	}
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load conversations")
		s.notifyFailure(err)
		return err
	}

	convs := make([]Conversation, 0, len(list))
	for _, summary := range list {
		if summary.ID == "" {
			continue
		}
		convs = append(convs, Conversation{
			ID:        summary.ID.String(),
			Title:     strings.TrimSpace(summary.Title),
			StartedAt: summary.StartedTime(),
		})
	}
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].StartedAt.After(convs[j].StartedAt)
	})

	s.mu.Lock()
	s.conversations = convs
	s.clearLocked()
	events := []Event{s.eventLocked(EventConversationsLoaded)}
	s.mu.Unlock()

	s.log.Info().Int("count", len(convs)).Msg("conversations loaded")
	s.notify(events...)
	return nil
}

// StartNew creates a conversation and makes it active with an empty log.
// When a send is already creating one, StartNew joins that creation instead
// of making a second conversation.
func (s *Session) StartNew(ctx context.Context) (Conversation, error) {
	s.mu.Lock()
	var events []Event
	if s.active != "" || s.creating == 0 {
		s.clearLocked()
		events = append(events, s.eventLocked(EventSessionCleared))
	}
	gen := s.generation
	ch := s.startCreationLocked(ctx)
	s.mu.Unlock()
	s.notify(events...)

	conv, err := awaitCreation(ctx, ch)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to start conversation")
		s.notifyFailure(err)
		return Conversation{}, fmt.Errorf("start conversation: %w", err)
	}

	s.mu.Lock()
	s.adoptLocked(conv, gen)
	s.mu.Unlock()
	return conv, nil
}

// Select makes id the active conversation, replacing the log with the
// server's history. Selecting the active conversation does nothing. While
// the fetch is outstanding the snapshot's LoadingID is id; a failed fetch
// leaves the previous conversation active.
func (s *Session) Select(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("conversation id is empty")
	}

	s.mu.Lock()
	if id == s.active || id == s.loading {
		s.mu.Unlock()
		return nil
	}
	s.loading = id
	events := []Event{s.eventLocked(EventConversationLoading)}
	s.mu.Unlock()
	s.notify(events...)

	stored, err := s.backend.GetMessages(ctx, backend.ID(id))

	s.mu.Lock()
	if s.loading != id {
		s.mu.Unlock()
		s.log.Debug().Str("conversation_id", id).Msg("dropping superseded history fetch")
		return ErrSuperseded
	}
	s.loading = ""
	if err != nil {
		events = []Event{s.eventLocked(EventConversationLoading), s.failureLocked(err)}
		s.mu.Unlock()
		s.log.Error().Err(err).Str("conversation_id", id).Msg("failed to load conversation history")
		s.notify(events...)
		return err
	}
	s.messages.ReplaceAll(fromStored(stored))
	s.unsentFrom = 0
	s.active = id
	s.generation++
	events = []Event{s.eventLocked(EventConversationSelected)}
	if conv, ok := s.lookupLocked(id); ok {
		events[0].Conversation = conv
	}
	s.mu.Unlock()

	s.log.Info().Str("conversation_id", id).Int("messages", len(stored)).Msg("conversation selected")
	s.notify(events...)
	return nil
}

// Remove deletes id on the server and, once confirmed, from the registry.
// Removing the active conversation clears the session.
func (s *Session) Remove(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("conversation id is empty")
	}

	if err := s.backend.DeleteConversation(ctx, backend.ID(id)); err != nil {
		s.log.Error().Err(err).Str("conversation_id", id).Msg("failed to delete conversation")
		s.notifyFailure(err)
		return err
	}

	s.mu.Lock()
	removed := Conversation{ID: id}
	kept := s.conversations[:0:0]
	for _, conv := range s.conversations {
		if conv.ID == id {
			removed = conv
			continue
		}
		kept = append(kept, conv)
	}
	s.conversations = kept

	var events []Event
	wasActive := s.active == id
	if wasActive {
		s.clearLocked()
		events = append(events, s.eventLocked(EventSessionCleared))
	} else if s.loading == id {
		s.loading = ""
	}
	ev := s.eventLocked(EventConversationRemoved)
	ev.Conversation = removed
	events = append(events, ev)
	s.mu.Unlock()

	s.log.Info().Str("conversation_id", id).Bool("was_active", wasActive).Msg("conversation deleted")
	s.notify(events...)
	return nil
}

// startCreationLocked starts, or joins, the single outstanding conversation
// creation. The flight outlives ctx cancellation so joined callers are not
// failed by the caller that happened to start it.
func (s *Session) startCreationLocked(ctx context.Context) <-chan singleflight.Result {
	gen := s.generation
	flightCtx := context.WithoutCancel(ctx)
	return s.flights.DoChan(startConversationKey, func() (any, error) {
		return s.createConversation(flightCtx, gen)
	})
}

func (s *Session) createConversation(ctx context.Context, gen uint64) (Conversation, error) {
	started, err := s.backend.StartConversation(ctx)
	if err != nil {
		return Conversation{}, err
	}

	conv := Conversation{
		ID:        started.ConversationID.String(),
		Title:     strings.TrimSpace(started.Title),
		StartedAt: s.now(),
	}
	if conv.Title == "" {
		conv.Title = DefaultTitle(conv.StartedAt)
	}

	s.mu.Lock()
	list := make([]Conversation, 0, len(s.conversations)+1)
	list = append(list, conv)
	for _, existing := range s.conversations {
		if existing.ID != conv.ID {
			list = append(list, existing)
		}
	}
	s.conversations = list
	activated := s.generation == gen && s.active == ""
	if activated {
		s.activateLocked(conv.ID)
	}
	ev := s.eventLocked(EventConversationStarted)
	ev.Conversation = conv
	s.mu.Unlock()

	s.log.Info().Str("conversation_id", conv.ID).Bool("activated", activated).Msg("conversation created")
	s.notify(ev)
	return conv, nil
}

// adoptLocked activates conv for a caller whose view of the session has not
// changed since it asked for a conversation.
func (s *Session) adoptLocked(conv Conversation, gen uint64) {
	if s.active == "" && s.generation == gen {
		s.activateLocked(conv.ID)
	}
}

func awaitCreation(ctx context.Context, ch <-chan singleflight.Result) (Conversation, error) {
	select {
	case res := <-ch:
		if res.Err != nil {
			return Conversation{}, res.Err
		}
		return res.Val.(Conversation), nil
	case <-ctx.Done():
		return Conversation{}, ctx.Err()
	}
}

func (s *Session) failureLocked(err error) Event {
	ev := s.eventLocked(EventFailure)
	ev.Err = err
	return ev
}

func (s *Session) notifyFailure(err error) {
	s.mu.Lock()
	ev := s.failureLocked(err)
	s.mu.Unlock()
	s.notify(ev)
}
