package tui

import (
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/yubzen/parley/internal/session"
)

func TestChatModelSelectedSuggestionDefaultsToFirst(t *testing.T) {
	m := NewChatModel()
	m.textInput.SetValue("/m")
	m.updateSlashSuggestions()

	selected, ok := m.SelectedSlashSuggestion()
	if !ok {
		t.Fatal("expected a selected suggestion")
	}
	if selected.Name != "/model" {
		t.Fatalf("expected first suggestion /model, got %q", selected.Name)
	}
}

func TestChatModelNoSuggestionsWithoutSlash(t *testing.T) {
	m := NewChatModel()
	m.textInput.SetValue("m")
	m.updateSlashSuggestions()

	if m.HasVisibleSuggestions() {
		t.Fatalf("expected no suggestions without slash, got %d", len(m.slashSuggestions))
	}
}

func TestChatModelMoveSlashSelectionClamps(t *testing.T) {
	m := NewChatModel()
	m.textInput.SetValue("/")
	m.updateSlashSuggestions()

	if !m.MoveSlashSelection(1) {
		t.Fatal("expected movement to be handled")
	}
	selected, _ := m.SelectedSlashSuggestion()
	if selected.Name != "/open" {
		t.Fatalf("expected second suggestion /open, got %q", selected.Name)
	}

	m.MoveSlashSelection(100)
	selected, _ = m.SelectedSlashSuggestion()
	if want := m.slashSuggestions[len(m.slashSuggestions)-1].Name; selected.Name != want {
		t.Fatalf("expected last suggestion %s, got %q", want, selected.Name)
	}

	m.MoveSlashSelection(-100)
	selected, _ = m.SelectedSlashSuggestion()
	if selected.Name != "/new" {
		t.Fatalf("expected first suggestion /new, got %q", selected.Name)
	}
}

func TestApplyTopSlashSuggestionMovesCursorToEnd(t *testing.T) {
	m := NewChatModel()
	m.textInput.SetValue("/ref")
	m.textInput.SetCursor(1)
	m.updateSlashSuggestions()

	if !m.ApplyTopSlashSuggestion() {
		t.Fatal("expected tab autocomplete to apply suggestion")
	}
	if got := m.textInput.Value(); got != "/refresh" {
		t.Fatalf("expected /refresh after autocomplete, got %q", got)
	}
	if got, want := m.textInput.Position(), len([]rune("/refresh")); got != want {
		t.Fatalf("expected cursor at end (%d), got %d", want, got)
	}

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
	m = updated.(*ChatModel)
	if got := m.textInput.Value(); got != "/refreshx" {
		t.Fatalf("expected typing after tab to append at end, got %q", got)
	}
}

func TestApplySuggestionWithArgsLeavesTrailingSpace(t *testing.T) {
	m := NewChatModel()
	m.SetInputValue("/op")

	if !m.ApplyTopSlashSuggestion() {
		t.Fatal("expected suggestion to apply")
	}
	if got := m.GetInputValue(); got != "/open " {
		t.Fatalf("expected %q, got %q", "/open ", got)
	}
	if m.HasVisibleSuggestions() {
		t.Fatal("expected suggestions hidden once arguments start")
	}
}

func TestEmptyStateViewShowsLogoAndHint(t *testing.T) {
	m := NewChatModel()
	m.SetSize(120, 30)

	view := strings.ToLower(ansi.Strip(m.View()))
	if !strings.Contains(view, "p a r l e y") {
		t.Fatalf("expected empty state logo, got %q", view)
	}
	if !strings.Contains(view, "/help") {
		t.Fatalf("expected empty state hint to mention /help, got %q", view)
	}
}

func TestChatRendersTranscriptAndErrorReplies(t *testing.T) {
	m := NewChatModel()
	m.SetSize(100, 30)
	m.SetTranscript([]session.Message{
		{Sender: session.SenderUser, Text: "ping"},
		{Sender: session.SenderBot, Text: "pong"},
		{Sender: session.SenderBot, Text: session.ErrorPrefix + "server returned 502 Bad Gateway"},
	})

	view := ansi.Strip(m.View())
	for _, want := range []string{"> ping", "pong", "Error: server returned 502"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected view to contain %q, got %q", want, view)
		}
	}
}

func TestChatTranscriptFollowsTail(t *testing.T) {
	m := NewChatModel()
	m.SetSize(100, 20)
	var msgs []session.Message
	for i := 0; i < 60; i++ {
		msgs = append(msgs, session.Message{Sender: session.SenderUser, Text: fmt.Sprintf("message %d", i)})
	}
	m.SetTranscript(msgs)
	if !m.viewport.AtBottom() {
		t.Fatal("expected viewport at bottom after transcript grew")
	}

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyPgUp})
	m = updated.(*ChatModel)
	if m.viewport.AtBottom() {
		t.Fatal("expected pgup to scroll away from the bottom")
	}

	// Same log again: no growth, so the scroll position is kept.
	m.SetTranscript(msgs)
	if m.viewport.AtBottom() {
		t.Fatal("expected scroll position kept when transcript is unchanged")
	}
}

func TestLettersDoNotScrollViewport(t *testing.T) {
	m := NewChatModel()
	m.SetSize(100, 20)
	var msgs []session.Message
	for i := 0; i < 60; i++ {
		msgs = append(msgs, session.Message{Sender: session.SenderUser, Text: fmt.Sprintf("line %d", i)})
	}
	m.SetTranscript(msgs)

	for _, r := range "kbu" {
		updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = updated.(*ChatModel)
	}
	if !m.viewport.AtBottom() {
		t.Fatal("expected typing to leave the viewport at the bottom")
	}
	if got := m.GetInputValue(); got != "kbu" {
		t.Fatalf("expected input %q, got %q", "kbu", got)
	}
}

func TestSetAwaitingStartsSpinnerOnce(t *testing.T) {
	m := NewChatModel()
	m.SetSize(100, 20)

	if cmd := m.SetAwaiting(true, session.StateAwaitingReply); cmd == nil {
		t.Fatal("expected spinner tick when awaiting starts")
	}
	if cmd := m.SetAwaiting(true, session.StateAwaitingReply); cmd != nil {
		t.Fatal("expected no second tick while already awaiting")
	}
	if !strings.Contains(ansi.Strip(m.View()), "bot is typing") {
		t.Fatal("expected typing indicator in view")
	}

	m.SetAwaiting(true, session.StateAwaitingConversation)
	if !strings.Contains(ansi.Strip(m.View()), "starting conversation") {
		t.Fatal("expected creation indicator in view")
	}

	m.SetAwaiting(false, session.StateIdle)
	if m.IsAwaiting() {
		t.Fatal("expected awaiting cleared")
	}
}

func TestNoticesClear(t *testing.T) {
	m := NewChatModel()
	m.SetSize(100, 20)
	m.AddNotice("  ")
	if len(m.notices) != 0 {
		t.Fatal("expected blank notice ignored")
	}
	m.AddNotice("heads up")
	if !strings.Contains(ansi.Strip(m.View()), "heads up") {
		t.Fatal("expected notice in view")
	}
	m.ClearNotices()
	if len(m.notices) != 0 {
		t.Fatal("expected notices cleared")
	}
}
