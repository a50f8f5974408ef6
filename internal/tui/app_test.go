package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yubzen/parley/internal/backend"
	"github.com/yubzen/parley/internal/router"
	"github.com/yubzen/parley/internal/session"
)

type stubBackend struct {
	mu        sync.Mutex
	list      []backend.ConversationSummary
	startErr  error
	reply     string
	deleted   []backend.ID
	chatPaths []string
}

func (b *stubBackend) ListConversations(ctx context.Context) ([]backend.ConversationSummary, error) {
	return b.list, nil
}

func (b *stubBackend) StartConversation(ctx context.Context) (backend.StartedConversation, error) {
	if b.startErr != nil {
		return backend.StartedConversation{}, b.startErr
	}
	return backend.StartedConversation{ConversationID: "7", Title: "Fresh"}, nil
}

func (b *stubBackend) GetMessages(ctx context.Context, id backend.ID) ([]backend.StoredMessage, error) {
	return []backend.StoredMessage{{Sender: "user", Content: "earlier"}}, nil
}

func (b *stubBackend) DeleteConversation(ctx context.Context, id backend.ID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, id)
	return nil
}

func (b *stubBackend) Chat(ctx context.Context, endpointURL string, req backend.ChatRequest) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chatPaths = append(b.chatPaths, endpointURL)
	return b.reply, nil
}

type memoryHistory struct {
	entries []string
}

func (h *memoryHistory) AppendInputHistory(ctx context.Context, content string, limit int) error {
	h.entries = append(h.entries, content)
	return nil
}

func (h *memoryHistory) InputHistory(ctx context.Context, limit int) ([]string, error) {
	return append([]string(nil), h.entries...), nil
}

func newTestApp(t *testing.T, b *stubBackend) (*AppModel, *memoryHistory) {
	t.Helper()
	r, err := router.New("http://chat.test", nil, "")
	require.NoError(t, err)
	history := &memoryHistory{entries: []string{"older prompt"}}
	app := NewAppModel(context.Background(), Deps{
		Session: session.New(b, r),
		History: history,
	})
	app.resize(120, 40)
	return app, history
}

func TestSubmitSendsMessageAndRecordsHistory(t *testing.T) {
	b := &stubBackend{reply: "pong"}
	app, history := newTestApp(t, b)

	cmd := app.submitInput("ping")
	require.NotNil(t, cmd)
	done, ok := cmd().(opDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.Err)
	app.refresh()

	require.Len(t, app.chat.transcript, 2)
	assert.Equal(t, session.Message{Sender: session.SenderUser, Text: "ping"}, app.chat.transcript[0])
	assert.Equal(t, session.Message{Sender: session.SenderBot, Text: "pong"}, app.chat.transcript[1])
	assert.Equal(t, []string{"older prompt", "ping"}, history.entries)
	assert.Equal(t, []string{"http://chat.test/api/groq-chat/"}, b.chatPaths)
	assert.Equal(t, "", app.chat.GetInputValue())
	assert.Equal(t, "Fresh", app.status.hint)
}

func TestSubmitBlankDoesNothing(t *testing.T) {
	app, history := newTestApp(t, &stubBackend{})
	assert.Nil(t, app.submitInput("   "))
	assert.Equal(t, []string{"older prompt"}, history.entries)
}

func TestSubmitPartialCommandCompletesToSuggestion(t *testing.T) {
	app, _ := newTestApp(t, &stubBackend{})

	app.chat.SetInputValue("/he")
	cmd := app.submitInput(app.chat.GetInputValue())
	require.NotNil(t, cmd)
	msg, ok := cmd().(CommandResultMsg)
	require.True(t, ok)
	assert.Contains(t, msg.Msg, "Commands:")

	app.chat.SetInputValue("/op")
	assert.Nil(t, app.submitInput(app.chat.GetInputValue()))
	assert.Equal(t, "/open ", app.chat.GetInputValue())
}

func TestDeleteCommandConfirmsBeforeRemoving(t *testing.T) {
	b := &stubBackend{list: []backend.ConversationSummary{
		{ID: "1", Title: "First", StartedAt: "2024-01-01T10:00:00Z"},
		{ID: "2", Title: "Second", StartedAt: "2024-02-01T10:00:00Z"},
	}}
	app, _ := newTestApp(t, b)
	require.NoError(t, app.session.Load(context.Background()))

	msg := app.submitInput("/delete 2")()
	confirm, ok := msg.(confirmDeleteMsg)
	require.True(t, ok)
	assert.Equal(t, "1", confirm.ID, "sidebar is newest first")

	app.Update(confirm)
	require.True(t, app.confirm.Visible)
	assert.Contains(t, app.View(), "First")

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'y'}})
	require.NotNil(t, cmd)
	cmd()
	assert.False(t, app.confirm.Visible)
	assert.Equal(t, []backend.ID{"1"}, b.deleted)
	assert.Len(t, app.session.Snapshot().Conversations, 1)
}

func TestDeleteCancelledWithEsc(t *testing.T) {
	app, _ := newTestApp(t, &stubBackend{})
	app.Update(confirmDeleteMsg{ID: "9", Title: "Nine"})
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, cmd)
	assert.False(t, app.confirm.Visible)
}

func TestFailureEventsBecomeNotices(t *testing.T) {
	b := &stubBackend{startErr: errors.New("boom")}
	app, _ := newTestApp(t, b)

	_, err := app.session.StartNew(context.Background())
	require.Error(t, err)

	var notices []string
	for i := 0; i < 2; i++ {
		if n, ok := app.waitForSessionCmd()().(sessionNoticeMsg); ok {
			notices = append(notices, n.Text)
		}
	}
	require.NotEmpty(t, notices)
	assert.Equal(t, "Error: boom", notices[0])
}

func TestFailureNoticeForCreation(t *testing.T) {
	text := failureNotice(errors.Join(session.ErrConversationCreate, errors.New("offline")))
	assert.True(t, strings.HasPrefix(text, "Could not start a conversation"))
	assert.Equal(t, "Not signed in. Run `parley login` first.", failureNotice(backend.ErrNotAuthenticated))
}

func TestNoticesResetWhenActiveConversationChanges(t *testing.T) {
	b := &stubBackend{list: []backend.ConversationSummary{{ID: "1", Title: "First"}}}
	app, _ := newTestApp(t, b)
	require.NoError(t, app.session.Load(context.Background()))

	app.chat.AddNotice("stale notice")
	require.NoError(t, app.session.Select(context.Background(), "1"))
	app.refresh()
	assert.Empty(t, app.chat.notices)
	assert.Equal(t, []session.Message{{Sender: session.SenderUser, Text: "earlier"}}, app.chat.transcript)
}

func TestModelsPickerMarksCurrentAndSwitches(t *testing.T) {
	app, _ := newTestApp(t, &stubBackend{})
	app.Update(openModelsPickerMsg{})
	require.True(t, app.models.Visible)

	opt, ok := app.models.SelectedOption()
	require.True(t, ok)
	assert.Equal(t, "mixtral", opt.ID)
	assert.True(t, opt.Current)

	app.Update(tea.KeyMsg{Type: tea.KeyDown})
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	msg, ok := cmd().(CommandResultMsg)
	require.True(t, ok)
	assert.Equal(t, "Model: deepseek", msg.Msg)
	assert.Equal(t, "deepseek", app.session.Model())
	assert.False(t, app.models.Visible)
}

func TestSelectUnknownModelFallsBack(t *testing.T) {
	app, _ := newTestApp(t, &stubBackend{})
	msg, ok := app.selectModelCmd("gpt-9")().(CommandResultMsg)
	require.True(t, ok)
	assert.Contains(t, msg.Msg, `Unknown model "gpt-9"`)
}

func TestNavigateInputHistoryRestoresDraft(t *testing.T) {
	app, _ := newTestApp(t, &stubBackend{})
	app.inputHistory = []string{"first", "second"}
	app.resetInputHistoryNavigation()
	app.chat.SetInputValue("draft")

	steps := []struct {
		delta int
		want  string
	}{
		{-1, "second"},
		{-1, "first"},
		{-1, "first"},
		{1, "second"},
		{1, "draft"},
	}
	for _, step := range steps {
		app.navigateInputHistory(step.delta)
		if got := app.chat.GetInputValue(); got != step.want {
			t.Fatalf("after delta %d expected %q, got %q", step.delta, step.want, got)
		}
	}
}

func TestCtrlCClearsInputBeforeQuitting(t *testing.T) {
	app, _ := newTestApp(t, &stubBackend{})
	app.chat.SetInputValue("half typed")

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.Nil(t, cmd)
	assert.Equal(t, "", app.chat.GetInputValue())

	_, cmd = app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	_, quit := cmd().(tea.QuitMsg)
	assert.True(t, quit)
}

func TestSidebarHiddenOnNarrowTerminal(t *testing.T) {
	b := &stubBackend{list: []backend.ConversationSummary{{ID: "1", Title: "Sidebar entry"}}}
	app, _ := newTestApp(t, b)
	require.NoError(t, app.session.Load(context.Background()))
	app.refresh()

	assert.Contains(t, app.View(), "Sidebar entry")

	app.resize(60, 30)
	assert.NotContains(t, app.View(), "Sidebar entry")
}
