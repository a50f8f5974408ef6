package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/yubzen/parley/internal/backend"
	"github.com/yubzen/parley/internal/session"
	"github.com/yubzen/parley/internal/store"
)

var appStyle = lipgloss.NewStyle().Margin(0, 0)

type ProfileSource interface {
	Profile(ctx context.Context) (*backend.Profile, error)
}

type InputHistoryStore interface {
	AppendInputHistory(ctx context.Context, content string, limit int) error
	InputHistory(ctx context.Context, limit int) ([]string, error)
}

// Deps are the collaborators the TUI drives. Only Session is required.
type Deps struct {
	Session      *session.Session
	Profiles     ProfileSource
	Logout       func(ctx context.Context) error
	History      InputHistoryStore
	HistoryLimit int
	Log          zerolog.Logger
}

type sessionChangedMsg struct{}

type sessionNoticeMsg struct {
	Text string
}

type opDoneMsg struct {
	Op  string
	Err error
}

type profileMsg struct {
	Profile *backend.Profile
	Err     error
}

type logoutDoneMsg struct {
	Err error
}

type AppModel struct {
	ctx      context.Context
	deps     Deps
	session  *session.Session
	log      zerolog.Logger
	chat     *ChatModel
	sidebar  *SidebarModel
	status   *StatusBarModel
	models   *SelectModal
	confirm  *ConfirmModal
	changed  chan struct{}
	notices  chan string
	activeID string

	inputHistory      []string
	inputHistoryIndex int
	inputDraft        string
	historyBrowsing   bool

	width  int
	height int
}

func NewAppModel(ctx context.Context, deps Deps) *AppModel {
	if ctx == nil {
		ctx = context.Background()
	}
	if deps.HistoryLimit <= 0 {
		deps.HistoryLimit = store.DefaultInputHistoryLimit
	}
	m := &AppModel{
		ctx:     ctx,
		deps:    deps,
		session: deps.Session,
		log:     deps.Log,
		chat:    NewChatModel(),
		sidebar: NewSidebarModel(),
		status:  NewStatusBarModel(),
		models:  NewSelectModal("Select Model", "up/down: navigate  enter: select  esc: close"),
		confirm: &ConfirmModal{},
		changed: make(chan struct{}, 1),
		notices: make(chan string, 32),
	}
	m.session.Observe(m.Observer())
	m.loadPersistedInputHistory()
	m.resetInputHistoryNavigation()
	m.refresh()
	return m
}

// Observer forwards session events into the program. State changes are
// coalesced; the view re-reads a snapshot on each wake-up.
func (m *AppModel) Observer() session.Observer {
	return func(ev session.Event) {
		switch ev.Kind {
		case session.EventFailure:
			m.pushNotice(failureNotice(ev.Err))
		case session.EventReplyDiscarded:
			m.pushNotice("A reply arrived for a conversation you left; it was discarded.")
		}
		select {
		case m.changed <- struct{}{}:
		default:
		}
	}
}

func (m *AppModel) pushNotice(text string) {
	select {
	case m.notices <- text:
	default:
		m.log.Warn().Str("notice", text).Msg("notice queue full; dropping")
	}
}

func failureNotice(err error) string {
	if err == nil {
		return "Error: unknown failure"
	}
	if errors.Is(err, session.ErrConversationCreate) {
		return "Could not start a conversation, so the message was not sent: " + err.Error()
	}
	if errors.Is(err, backend.ErrNotAuthenticated) {
		return "Not signed in. Run `parley login` first."
	}
	return session.ErrorPrefix + err.Error()
}

func (m *AppModel) waitForSessionCmd() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return nil
		case text := <-m.notices:
			return sessionNoticeMsg{Text: text}
		case <-m.changed:
			return sessionChangedMsg{}
		}
	}
}

func (m *AppModel) Init() tea.Cmd {
	return tea.Batch(m.chat.Init(), textinput.Blink, m.waitForSessionCmd(), m.bootstrapCmd())
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		_, cmd := m.chat.Update(msg)
		return m, cmd

	case sessionChangedMsg:
		return m, tea.Batch(m.refresh(), m.waitForSessionCmd())

	case sessionNoticeMsg:
		m.chat.AddNotice(msg.Text)
		return m, m.waitForSessionCmd()

	case bootstrapDoneMsg:
		m.applyProfile(msg.Profile, msg.ProfileErr)
		return m, m.refresh()

	case profileMsg:
		m.applyProfile(msg.Profile, msg.Err)
		switch {
		case msg.Err != nil:
			m.chat.AddNotice(session.ErrorPrefix + msg.Err.Error())
		case msg.Profile == nil:
			m.chat.AddNotice("Not signed in.")
		default:
			m.chat.AddNotice(fmt.Sprintf("Signed in as %s <%s>", msg.Profile.Username, msg.Profile.Email))
		}
		return m, nil

	case logoutDoneMsg:
		if msg.Err != nil {
			m.chat.AddNotice("Logout failed: " + msg.Err.Error())
			return m, nil
		}
		return m, tea.Quit

	case opDoneMsg:
		// Failures surface through session events.
		if msg.Err != nil {
			m.log.Debug().Err(msg.Err).Str("op", msg.Op).Msg("operation finished with error")
		}
		return m, nil

	case openModelsPickerMsg:
		m.openModelsPicker()
		return m, nil

	case confirmDeleteMsg:
		m.confirm.Open(msg.ID, fmt.Sprintf("Delete %q? This cannot be undone.", msg.Title))
		return m, nil

	case CommandResultMsg:
		m.chat.AddNotice(msg.Msg)
		return m, nil
	}

	_, cmd := m.chat.Update(msg)
	return m, cmd
}

func (m *AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.handleCtrlC()
	}

	if m.confirm.Visible {
		switch msg.String() {
		case "y", "Y":
			id := m.confirm.TargetID
			m.confirm.Close()
			return m, m.removeCmd(id)
		case "n", "N", "esc":
			m.confirm.Close()
		}
		return m, nil
	}

	if handled, cmd := m.dispatchUpDownKey(msg); handled {
		return m, cmd
	}

	if m.models.Visible {
		switch msg.String() {
		case "esc":
			m.models.Close()
		case "enter":
			opt, ok := m.models.SelectedOption()
			m.models.Close()
			if ok {
				return m, m.selectModelCmd(opt.ID)
			}
		}
		return m, nil
	}

	switch msg.String() {
	case "ctrl+n":
		return m, m.startNewCmd()
	case "tab":
		m.chat.ApplyTopSlashSuggestion()
		return m, nil
	case "enter":
		return m, m.submitInput(m.chat.GetInputValue())
	}

	if shouldResetHistoryNavigation(msg) {
		m.resetInputHistoryNavigation()
	}
	_, cmd := m.chat.Update(msg)
	return m, cmd
}

// submitInput runs a slash command or sends raw as a chat message. A
// partially typed command completes to the highlighted suggestion first.
func (m *AppModel) submitInput(raw string) tea.Cmd {
	trimmed, isCommand := classifyUserInput(raw)
	if trimmed == "" {
		return nil
	}
	if isCommand && m.chat.HasVisibleSuggestions() {
		if sel, ok := m.chat.SelectedSlashSuggestion(); ok && sel.Name != trimmed {
			if sel.Args != "" {
				m.chat.ApplyTopSlashSuggestion()
				return nil
			}
			trimmed = sel.Name
		}
	}

	m.appendInputHistory(trimmed)
	m.chat.ClearInput()
	if isCommand {
		return handleSlashCommand(trimmed, m)
	}
	return m.sendCmd(raw)
}

func (m *AppModel) handleCtrlC() (tea.Model, tea.Cmd) {
	if strings.TrimSpace(m.chat.GetInputValue()) != "" {
		m.chat.ClearInput()
		return m, nil
	}
	return m, tea.Quit
}

// refresh copies a session snapshot into the panes.
func (m *AppModel) refresh() tea.Cmd {
	snap := m.session.Snapshot()
	if snap.ActiveID != m.activeID {
		m.activeID = snap.ActiveID
		m.chat.ClearNotices()
	}
	m.chat.SetTranscript(snap.Messages)
	m.sidebar.SetConversations(snap.Conversations, snap.ActiveID, snap.LoadingID)
	m.status.Model = snap.Model
	m.status.State = snap.State
	if conv, ok := snap.Active(); ok {
		m.status.SetHint(conv.Title)
	} else if snap.LoadingID != "" {
		m.status.SetHint("loading conversation...")
	} else {
		m.status.SetHint("new conversation")
	}
	return m.chat.SetAwaiting(snap.Awaiting(), snap.State)
}

func (m *AppModel) resize(w, h int) {
	m.width = w
	m.height = h
	chatWidth := w
	if sidebarVisible(w) {
		m.sidebar.SetSize(sidebarWidth, h-1)
		chatWidth = w - sidebarWidth
	}
	m.chat.SetSize(chatWidth, h-1)
	m.status.SetWidth(w)
	modalWidth := min(72, max(30, w-4))
	m.models.SetWidth(modalWidth)
	m.confirm.SetWidth(modalWidth)
}

func (m *AppModel) applyProfile(p *backend.Profile, err error) {
	switch {
	case err != nil:
		m.status.User = "unknown user"
	case p == nil:
		m.status.User = "signed out"
	case p.Username != "":
		m.status.User = p.Username
	default:
		m.status.User = p.Email
	}
}

func (m *AppModel) openModelsPicker() {
	current := m.session.Model()
	routes := m.session.Routes()
	options := make([]SelectOption, 0, len(routes))
	for _, r := range routes {
		label := r.ID
		if r.Label != "" && r.Label != r.ID {
			label = fmt.Sprintf("%s  %s", r.ID, r.Label)
		}
		options = append(options, SelectOption{
			ID:      r.ID,
			Label:   label,
			Detail:  r.Path,
			Current: r.ID == current,
		})
	}
	m.models.SetOptions(options)
	m.models.Open()
}

func (m *AppModel) View() string {
	main := m.chat.View()
	if sidebarVisible(m.width) {
		main = lipgloss.JoinHorizontal(lipgloss.Top, m.sidebar.View(), main)
	}
	base := appStyle.Render(lipgloss.JoinVertical(lipgloss.Left, main, m.status.View()))

	var overlay string
	switch {
	case m.confirm.Visible:
		overlay = m.confirm.View()
	case m.models.Visible:
		overlay = m.models.View()
	default:
		return base
	}
	if m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, overlay)
	}
	return overlay
}

func (m *AppModel) sendCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{Op: "send", Err: m.session.Send(m.ctx, text)}
	}
}

func (m *AppModel) startNewCmd() tea.Cmd {
	return func() tea.Msg {
		_, err := m.session.StartNew(m.ctx)
		return opDoneMsg{Op: "new", Err: err}
	}
}

func (m *AppModel) selectCmd(id string) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{Op: "select", Err: m.session.Select(m.ctx, id)}
	}
}

func (m *AppModel) removeCmd(id string) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{Op: "remove", Err: m.session.Remove(m.ctx, id)}
	}
}

func (m *AppModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{Op: "load", Err: m.session.Load(m.ctx)}
	}
}

func (m *AppModel) selectModelCmd(id string) tea.Cmd {
	return func() tea.Msg {
		canonical := m.session.SelectModel(id)
		if served := m.session.Snapshot().Endpoint.ModelID; served != canonical {
			return CommandResultMsg{Msg: fmt.Sprintf("Unknown model %q; messages go to the %s endpoint.", id, served)}
		}
		return CommandResultMsg{Msg: "Model: " + canonical}
	}
}

func (m *AppModel) whoamiCmd() tea.Cmd {
	if m.deps.Profiles == nil {
		return noticeCmd("Profile lookup is not available.")
	}
	return func() tea.Msg {
		p, err := m.deps.Profiles.Profile(m.ctx)
		return profileMsg{Profile: p, Err: err}
	}
}

func (m *AppModel) logoutCmd() tea.Cmd {
	if m.deps.Logout == nil {
		return noticeCmd("Logout is not available.")
	}
	return func() tea.Msg {
		return logoutDoneMsg{Err: m.deps.Logout(m.ctx)}
	}
}

// conversationByNumber resolves the 1-based sidebar number in args.
func (m *AppModel) conversationByNumber(args []string) (session.Conversation, error) {
	convs := m.session.Snapshot().Conversations
	idx, err := parseConversationNumber(args, len(convs))
	if err != nil {
		return session.Conversation{}, err
	}
	return convs[idx], nil
}

func (m *AppModel) loadPersistedInputHistory() {
	if m.deps.History == nil {
		return
	}
	history, err := m.deps.History.InputHistory(m.ctx, m.deps.HistoryLimit)
	if err != nil {
		m.log.Warn().Err(err).Msg("failed to load input history")
		return
	}
	m.inputHistory = append([]string(nil), history...)
}

func (m *AppModel) appendInputHistory(entry string) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return
	}
	m.inputHistory = append(m.inputHistory, entry)
	if len(m.inputHistory) > m.deps.HistoryLimit {
		m.inputHistory = m.inputHistory[len(m.inputHistory)-m.deps.HistoryLimit:]
	}
	m.resetInputHistoryNavigation()

	if m.deps.History != nil {
		if err := m.deps.History.AppendInputHistory(m.ctx, entry, m.deps.HistoryLimit); err != nil {
			m.chat.AddNotice(fmt.Sprintf("warning: failed to persist input history: %v", err))
		}
	}
}

func (m *AppModel) resetInputHistoryNavigation() {
	m.inputHistoryIndex = len(m.inputHistory)
	m.inputDraft = ""
	m.historyBrowsing = false
}

func (m *AppModel) navigateInputHistory(delta int) bool {
	if len(m.inputHistory) == 0 || delta == 0 {
		return false
	}

	if !m.historyBrowsing {
		m.inputDraft = m.chat.GetInputValue()
		m.inputHistoryIndex = len(m.inputHistory)
		m.historyBrowsing = true
	}

	if delta < 0 {
		if m.inputHistoryIndex > 0 {
			m.inputHistoryIndex--
		}
		m.chat.SetInputValue(m.inputHistory[m.inputHistoryIndex])
		return true
	}
	if m.inputHistoryIndex < len(m.inputHistory)-1 {
		m.inputHistoryIndex++
		m.chat.SetInputValue(m.inputHistory[m.inputHistoryIndex])
		return true
	}
	m.inputHistoryIndex = len(m.inputHistory)
	m.chat.SetInputValue(m.inputDraft)
	m.historyBrowsing = false
	return true
}

func (m *AppModel) dispatchUpDownKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	delta, ok := upDownDelta(msg)
	if !ok {
		return false, nil
	}
	if m.models.Visible {
		m.models.Move(delta)
		return true, nil
	}
	if m.chat.HasVisibleSuggestions() {
		m.chat.MoveSlashSelection(delta)
		return true, nil
	}
	m.navigateInputHistory(delta)
	return true, nil
}

func upDownDelta(msg tea.KeyMsg) (int, bool) {
	switch msg.String() {
	case "up":
		return -1, true
	case "down":
		return 1, true
	default:
		return 0, false
	}
}

func classifyUserInput(raw string) (trimmed string, isCommand bool) {
	trimmed = strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	return trimmed, strings.HasPrefix(trimmed, "/")
}

func shouldResetHistoryNavigation(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "up", "down", "enter":
		return false
	}
	switch msg.Type {
	case tea.KeyRunes, tea.KeyBackspace, tea.KeyDelete:
		return true
	default:
		return false
	}
}
