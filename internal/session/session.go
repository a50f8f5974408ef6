// Package session is the orchestration core of the chat client: the
// conversation registry, the active conversation's message log and the send
// state machine. All mutation goes through Session's methods; everything
// else reads snapshots or subscribes to events.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/yubzen/parley/internal/backend"
	"github.com/yubzen/parley/internal/router"
)

const (
	// NoResponseText replaces an empty or missing reply.
	NoResponseText = "(No response)"
	ErrorPrefix    = "Error: "

	startConversationKey = "start-conversation"
)

var (
	// ErrConversationCreate wraps the failure that stranded a pending send.
	ErrConversationCreate = errors.New("could not create conversation")
	// ErrSuperseded is returned when a later intent made the result stale.
	ErrSuperseded = errors.New("superseded by a later action")
)

type Backend interface {
	ListConversations(ctx context.Context) ([]backend.ConversationSummary, error)
	StartConversation(ctx context.Context) (backend.StartedConversation, error)
	GetMessages(ctx context.Context, id backend.ID) ([]backend.StoredMessage, error)
	DeleteConversation(ctx context.Context, id backend.ID) error
	Chat(ctx context.Context, endpointURL string, req backend.ChatRequest) (string, error)
}

type Credentials interface {
	IsAuthenticated() bool
}

type State int

const (
	StateIdle State = iota
	StateAwaitingConversation
	StateAwaitingReply
)

func (s State) String() string {
	switch s {
	case StateAwaitingConversation:
		return "awaiting_conversation"
	case StateAwaitingReply:
		return "awaiting_reply"
	default:
		return "idle"
	}
}

type Conversation struct {
	ID        string
	Title     string
	StartedAt time.Time
}

// Snapshot is a point-in-time copy of the session; callers may keep it.
type Snapshot struct {
	Conversations []Conversation
	ActiveID      string
	LoadingID     string
	Messages      []Message
	Model         string
	Endpoint      router.Endpoint
	State         State
	Pending       int
}

// Awaiting reports whether any send is still outstanding.
func (s Snapshot) Awaiting() bool {
	return s.Pending > 0
}

func (s Snapshot) Active() (Conversation, bool) {
	for _, conv := range s.Conversations {
		if conv.ID == s.ActiveID {
			return conv, true
		}
	}
	return Conversation{}, false
}

type Option func(*Session)

func WithCredentials(creds Credentials) Option {
	return func(s *Session) { s.creds = creds }
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) { s.log = log }
}

func WithModel(modelID string) Option {
	return func(s *Session) { s.model = modelID }
}

func WithObserver(obs Observer) Option {
	return func(s *Session) {
		if obs != nil {
			s.observers = append(s.observers, obs)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

type Session struct {
	backend Backend
	creds   Credentials
	log     zerolog.Logger
	now     func() time.Time
	flights singleflight.Group

	obsMu     sync.RWMutex
	observers []Observer

	mu            sync.Mutex
	router        *router.Router
	conversations []Conversation
	active        string
	loading       string
	messages      MessageLog
	unsentFrom    int
	model         string
	creating      int
	replying      int
	generation    uint64
}

func New(b Backend, r *router.Router, opts ...Option) *Session {
	s := &Session{
		backend: b,
		router:  r,
		log:     zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.model = r.Canonical(s.model)
	return s
}

// Observe registers obs for all subsequent events.
func (s *Session) Observe(obs Observer) {
	if obs == nil {
		return
	}
	s.obsMu.Lock()
	s.observers = append(s.observers, obs)
	s.obsMu.Unlock()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Conversations: append([]Conversation(nil), s.conversations...),
		ActiveID:      s.active,
		LoadingID:     s.loading,
		Messages:      s.messages.Messages(),
		Model:         s.model,
		Endpoint:      s.router.Resolve(s.model),
		State:         s.stateLocked(),
		Pending:       s.creating + s.replying,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// HistoryPayload projects the current log into the role/content history the
// chat endpoints accept.
func (s *Session) HistoryPayload() []backend.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages.HistoryPayload()
}

// SelectModel switches the model used for subsequent sends. A change of
// model clears the active conversation and its log because backends do not
// share history. Selecting the current model is a no-op.
func (s *Session) SelectModel(modelID string) string {
	s.mu.Lock()
	canonical := s.router.Canonical(modelID)
	if canonical == s.model {
		s.mu.Unlock()
		return canonical
	}
	prev := s.model
	s.model = canonical
	s.clearLocked()
	events := []Event{
		s.eventLocked(EventModelChanged),
		s.eventLocked(EventSessionCleared),
	}
	s.mu.Unlock()

	s.log.Info().Str("model", canonical).Str("previous_model", prev).Msg("model switched; session cleared")
	s.notify(events...)
	return canonical
}

// Routes lists the selectable models.
func (s *Session) Routes() []router.Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.router.Routes()
}

// SetRouter replaces the route table, e.g. after a config reload. The
// session itself is left untouched.
func (s *Session) SetRouter(r *router.Router) {
	if r == nil {
		return
	}
	s.mu.Lock()
	s.router = r
	s.mu.Unlock()
	s.log.Debug().Str("base_url", r.BaseURL()).Msg("route table replaced")
}

func (s *Session) stateLocked() State {
	switch {
	case s.creating > 0:
		return StateAwaitingConversation
	case s.replying > 0:
		return StateAwaitingReply
	default:
		return StateIdle
	}
}

// activateLocked binds id to the log. Entries before unsentFrom were left
// by a failed creation, were never stored server-side, and are dropped.
func (s *Session) activateLocked(id string) {
	s.active = id
	s.loading = ""
	if s.unsentFrom > 0 {
		s.messages.ReplaceAll(s.messages.Since(s.unsentFrom))
		s.unsentFrom = 0
	}
}

// clearLocked drops the active conversation, any pending select and the log.
func (s *Session) clearLocked() {
	s.active = ""
	s.loading = ""
	s.messages.Clear()
	s.unsentFrom = 0
	s.generation++
}

func (s *Session) eventLocked(kind EventKind) Event {
	ev := Event{
		Kind:           kind,
		ConversationID: s.active,
		Model:          s.model,
		State:          s.stateLocked(),
		At:             s.now(),
	}
	switch kind {
	case EventConversationsLoaded, EventConversationStarted, EventConversationRemoved:
		ev.Conversations = append([]Conversation(nil), s.conversations...)
	}
	switch kind {
	case EventConversationsLoaded, EventConversationStarted, EventConversationSelected,
		EventMessageAppended, EventSessionCleared:
		ev.Messages = s.messages.Messages()
	}
	return ev
}

func (s *Session) notify(events ...Event) {
	s.obsMu.RLock()
	observers := append([]Observer(nil), s.observers...)
	s.obsMu.RUnlock()
	for _, ev := range events {
		for _, obs := range observers {
			obs(ev)
		}
	}
}

func (s *Session) lookupLocked(id string) (Conversation, bool) {
	for _, conv := range s.conversations {
		if conv.ID == id {
			return conv, true
		}
	}
	return Conversation{}, false
}
