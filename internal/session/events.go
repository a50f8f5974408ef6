package session

import "time"

type EventKind int

const (
	EventConversationsLoaded EventKind = iota
	EventConversationStarted
	EventConversationLoading
	EventConversationSelected
	EventConversationRemoved
	EventMessageAppended
	EventReplyDiscarded
	EventSessionCleared
	EventModelChanged
	EventStateChanged
	EventFailure
)

func (k EventKind) String() string {
	switch k {
	case EventConversationsLoaded:
		return "conversations_loaded"
	case EventConversationStarted:
		return "conversation_started"
	case EventConversationLoading:
		return "conversation_loading"
	case EventConversationSelected:
		return "conversation_selected"
	case EventConversationRemoved:
		return "conversation_removed"
	case EventMessageAppended:
		return "message_appended"
	case EventReplyDiscarded:
		return "reply_discarded"
	case EventSessionCleared:
		return "session_cleared"
	case EventModelChanged:
		return "model_changed"
	case EventStateChanged:
		return "state_changed"
	case EventFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Event describes one change to the session. ConversationID is the active
// conversation after the change; Messages is a copy of the log when the log
// changed, and Conversations a copy of the registry when it changed.
type Event struct {
	Kind           EventKind
	ConversationID string
	Conversation   Conversation
	Conversations  []Conversation
	Messages       []Message
	Message        Message
	Model          string
	State          State
	Err            error
	At             time.Time
}

// Observer receives events after the session lock is released. Observers
// must not block for long; they run on the goroutine that made the change.
type Observer func(Event)
