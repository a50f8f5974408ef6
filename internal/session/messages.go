package session

import "github.com/yubzen/parley/internal/backend"

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

type Message struct {
	Sender Sender
	Text   string
}

// Role is the history role the chat endpoints expect for this sender.
func (s Sender) Role() string {
	if s == SenderBot {
		return "assistant"
	}
	return "user"
}

// MessageLog is the ordered log of the active conversation. It is not safe
// for concurrent use; Session owns the only instance and guards it.
type MessageLog struct {
	entries []Message
}

// AppendLocal records a message the user just typed, before any network
// round-trip.
func (l *MessageLog) AppendLocal(msg Message) {
	l.entries = append(l.entries, msg)
}

// AppendRemote records a reply or error placeholder once it has arrived.
func (l *MessageLog) AppendRemote(msg Message) {
	l.entries = append(l.entries, msg)
}

func (l *MessageLog) ReplaceAll(msgs []Message) {
	l.entries = append([]Message(nil), msgs...)
}

func (l *MessageLog) Clear() {
	l.entries = nil
}

func (l *MessageLog) Len() int {
	return len(l.entries)
}

func (l *MessageLog) Messages() []Message {
	return append([]Message(nil), l.entries...)
}

// Since returns the messages appended after the log held n entries.
func (l *MessageLog) Since(n int) []Message {
	if n < 0 {
		n = 0
	}
	if n >= len(l.entries) {
		return nil
	}
	return append([]Message(nil), l.entries[n:]...)
}

func (l *MessageLog) HistoryPayload() []backend.HistoryEntry {
	return historyPayload(l.entries)
}

func historyPayload(msgs []Message) []backend.HistoryEntry {
	out := make([]backend.HistoryEntry, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, backend.HistoryEntry{Role: msg.Sender.Role(), Content: msg.Text})
	}
	return out
}

func fromStored(stored []backend.StoredMessage) []Message {
	out := make([]Message, 0, len(stored))
	for _, msg := range stored {
		sender := SenderUser
		if msg.Sender != string(SenderUser) {
			sender = SenderBot
		}
		out = append(out, Message{Sender: sender, Text: msg.Content})
	}
	return out
}
