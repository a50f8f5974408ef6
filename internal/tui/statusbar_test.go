package tui

import (
	"strings"
	"testing"

	"github.com/yubzen/parley/internal/session"
)

func TestStatusBarShowsModelUserAndState(t *testing.T) {
	t.Parallel()

	sb := NewStatusBarModel()
	sb.SetWidth(200)
	sb.Model = "deepseek"
	sb.User = "ada"
	sb.State = session.StateAwaitingReply

	view := sb.View()
	for _, want := range []string{"[MODEL: deepseek]", "[ada]", "[AWAITING_REPLY]"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in status bar, got %q", want, view)
		}
	}
}

func TestStatusBarTruncatesLongHint(t *testing.T) {
	t.Parallel()

	sb := NewStatusBarModel()
	sb.SetWidth(50)
	sb.Model = "mixtral"
	sb.SetHint(strings.Repeat("very long title ", 10))

	view := sb.View()
	if !strings.Contains(view, "…") {
		t.Fatalf("expected truncation ellipsis, got %q", view)
	}
}
