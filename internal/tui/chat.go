package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/yubzen/parley/internal/session"
)

var (
	chatViewportStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, true, false).BorderForeground(lipgloss.Color("238"))
	userTextStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	botLabelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	botTextStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	errorTextStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	noticeStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	suggestBoxStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	suggestDescStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	suggestSelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Bold(true)
	typingStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	typingTimerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	placeholderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	promptIndicator   = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	splashLogoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	splashHintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

const inputPlaceholder = "Type a message, or / for commands"

type ChatModel struct {
	viewport         viewport.Model
	textInput        textinput.Model
	spinner          spinner.Model
	transcript       []session.Message
	notices          []string
	slashSuggestions []slashCommand
	selectedSlashIdx int
	lastSuggestInput string
	width            int
	height           int
	awaiting         bool
	awaitingState    session.State
	awaitingSince    time.Time
	renderer         *glamour.TermRenderer
	rendererWidth    int
	rendered         map[string]string
}

func NewChatModel() *ChatModel {
	ti := textinput.New()
	ti.Prompt = ""
	ti.Focus()
	ti.CharLimit = 4000
	ti.Width = 50

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = typingStyle

	vp := viewport.New(0, 0)
	// Letters belong to the input; only paging keys scroll.
	vp.KeyMap = viewport.KeyMap{
		PageDown: key.NewBinding(key.WithKeys("pgdown")),
		PageUp:   key.NewBinding(key.WithKeys("pgup")),
	}

	return &ChatModel{
		viewport:         vp,
		textInput:        ti,
		spinner:          sp,
		selectedSlashIdx: -1,
		rendered:         make(map[string]string),
	}
}

func (m *ChatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if tick, ok := msg.(spinner.TickMsg); ok {
		if !m.awaiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(tick)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	cmds = append(cmds, cmd)
	m.updateSlashSuggestions()

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *ChatModel) SetSize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	m.width = w
	m.height = h
	m.viewport.Width = w
	m.textInput.Width = m.inputWrapWidth()
	m.reflow()
	m.renderMessages()
}

// SetTranscript shows msgs, the session's log. The view follows the tail
// when the log grows.
func (m *ChatModel) SetTranscript(msgs []session.Message) {
	grew := len(msgs) != len(m.transcript)
	m.transcript = msgs
	m.renderMessages()
	if grew {
		m.viewport.GotoBottom()
	}
}

func (m *ChatModel) AddNotice(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	m.notices = append(m.notices, text)
	m.renderMessages()
	m.viewport.GotoBottom()
}

func (m *ChatModel) ClearNotices() {
	if len(m.notices) == 0 {
		return
	}
	m.notices = nil
	m.renderMessages()
}

// SetAwaiting toggles the typing indicator and returns the command that
// starts the spinner when it turns on.
func (m *ChatModel) SetAwaiting(awaiting bool, state session.State) tea.Cmd {
	was := m.awaiting
	m.awaiting = awaiting
	m.awaitingState = state
	if awaiting && !was {
		m.awaitingSince = time.Now()
	}
	m.reflow()
	if awaiting && !was {
		return m.spinner.Tick
	}
	return nil
}

func (m *ChatModel) IsAwaiting() bool {
	return m.awaiting
}

func (m *ChatModel) GetInputValue() string {
	return m.textInput.Value()
}

func (m *ChatModel) SetInputValue(value string) {
	m.textInput.SetValue(value)
	m.textInput.CursorEnd()
	m.updateSlashSuggestions()
}

func (m *ChatModel) ClearInput() {
	m.textInput.SetValue("")
	m.updateSlashSuggestions()
}

func (m *ChatModel) HasVisibleSuggestions() bool {
	return len(m.slashSuggestions) > 0
}

func (m *ChatModel) ApplyTopSlashSuggestion() bool {
	suggestion, ok := m.SelectedSlashSuggestion()
	if !ok {
		return false
	}
	value := suggestion.Name
	if suggestion.Args != "" {
		value += " "
	}
	m.SetInputValue(value)
	return true
}

func (m *ChatModel) SelectedSlashSuggestion() (slashCommand, bool) {
	if m.selectedSlashIdx < 0 || m.selectedSlashIdx >= len(m.slashSuggestions) {
		return slashCommand{}, false
	}
	return m.slashSuggestions[m.selectedSlashIdx], true
}

func (m *ChatModel) MoveSlashSelection(delta int) bool {
	if len(m.slashSuggestions) == 0 {
		return false
	}
	next := m.selectedSlashIdx + delta
	if next < 0 {
		next = 0
	}
	if next >= len(m.slashSuggestions) {
		next = len(m.slashSuggestions) - 1
	}
	m.selectedSlashIdx = next
	return true
}

func (m *ChatModel) updateSlashSuggestions() {
	input := m.textInput.Value()
	inputChanged := input != m.lastSuggestInput
	m.lastSuggestInput = input

	m.slashSuggestions = filterSlashCommands(input, 6)
	switch {
	case len(m.slashSuggestions) == 0:
		m.selectedSlashIdx = -1
	case inputChanged || m.selectedSlashIdx < 0:
		m.selectedSlashIdx = 0
	case m.selectedSlashIdx >= len(m.slashSuggestions):
		m.selectedSlashIdx = len(m.slashSuggestions) - 1
	}
	m.reflow()
}

func (m *ChatModel) contentWidth() int {
	switch {
	case m.viewport.Width > 0:
		return m.viewport.Width
	case m.width > 0:
		return m.width
	default:
		return 80
	}
}

func (m *ChatModel) renderMessages() {
	width := m.contentWidth()
	blocks := make([]string, 0, len(m.transcript)+len(m.notices))
	for _, msg := range m.transcript {
		switch msg.Sender {
		case session.SenderUser:
			blocks = append(blocks, promptIndicator.Render("> ")+userTextStyle.Render(wrapToWidth(strings.TrimSpace(msg.Text), width-2)))
		default:
			blocks = append(blocks, m.renderBotMessage(msg.Text, width))
		}
	}
	for _, notice := range m.notices {
		blocks = append(blocks, noticeStyle.Render(wrapToWidth(notice, width)))
	}
	m.viewport.SetContent(strings.Join(blocks, "\n\n"))
}

func (m *ChatModel) renderBotMessage(text string, width int) string {
	text = strings.TrimSpace(text)
	label := botLabelStyle.Render("bot")
	if strings.HasPrefix(text, session.ErrorPrefix) {
		return label + "\n" + errorTextStyle.Render(wrapToWidth(text, width))
	}
	return label + "\n" + m.renderMarkdown(text, width)
}

// renderMarkdown renders bot replies with glamour, caching per text until
// the width changes. Plain wrapping is the fallback.
func (m *ChatModel) renderMarkdown(text string, width int) string {
	if width != m.rendererWidth || m.renderer == nil {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(max(20, width-2)),
		)
		if err != nil {
			return botTextStyle.Render(wrapToWidth(text, width))
		}
		m.renderer = renderer
		m.rendererWidth = width
		m.rendered = make(map[string]string)
	}
	if out, ok := m.rendered[text]; ok {
		return out
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return botTextStyle.Render(wrapToWidth(text, width))
	}
	out = strings.Trim(out, "\n")
	m.rendered[text] = out
	return out
}

func (m *ChatModel) View() string {
	if len(m.transcript) == 0 && len(m.notices) == 0 && !m.awaiting {
		return m.emptyStateView()
	}

	parts := []string{chatViewportStyle.Width(m.width).Render(m.viewport.View())}
	if m.awaiting {
		parts = append(parts, m.renderTypingIndicator())
	}
	if len(m.slashSuggestions) > 0 {
		lines := m.renderSuggestionsForWidth(max(16, m.width-4))
		parts = append(parts, suggestBoxStyle.Width(m.width).Padding(0, 1).Render(strings.Join(lines, "\n")))
	}
	parts = append(parts, lipgloss.NewStyle().Padding(0, 1).Render(m.renderInputForView()))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *ChatModel) renderTypingIndicator() string {
	label := "bot is typing..."
	if m.awaitingState == session.StateAwaitingConversation {
		label = "starting conversation..."
	}
	elapsed := time.Since(m.awaitingSince).Round(time.Second)
	return " " + m.spinner.View() + typingStyle.Render(label) + " " + typingTimerStyle.Render(formatElapsed(elapsed))
}

func formatElapsed(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	return fmt.Sprintf("%dm%ds", secs/60, secs%60)
}

func (m *ChatModel) emptyStateView() string {
	lines := []string{
		splashLogoStyle.Render("P A R L E Y"),
		"",
		splashHintStyle.Render("Say something to start a conversation, or /help for commands."),
		"",
		m.renderInputForView(),
	}
	if len(m.slashSuggestions) > 0 {
		lines = append(lines, "", strings.Join(m.renderSuggestionsForWidth(max(16, m.width-8)), "\n"))
	}
	body := lipgloss.JoinVertical(lipgloss.Left, lines...)
	if m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
	}
	return body
}

func (m *ChatModel) reflow() {
	if m.height == 0 {
		return
	}
	typing := 0
	if m.awaiting {
		typing = 1
	}
	vpHeight := m.height - m.inputHeight() - m.suggestionsHeight() - typing - 1
	if vpHeight < 0 {
		vpHeight = 0
	}
	m.viewport.Height = vpHeight
}

func (m *ChatModel) inputWrapWidth() int {
	width := m.width - 4
	if width <= 0 {
		width = 48
	}
	if width < 8 {
		width = 8
	}
	return width
}

func (m *ChatModel) renderInputForView() string {
	value := []rune(m.textInput.Value())
	if len(value) == 0 {
		return promptIndicator.Render("> ") + "█ " + placeholderStyle.Render(inputPlaceholder)
	}
	pos := m.textInput.Position()
	if pos < 0 {
		pos = 0
	}
	if pos > len(value) {
		pos = len(value)
	}

	raw := string(value[:pos]) + "█" + string(value[pos:])
	lines := strings.Split(wrapToWidth(raw, m.inputWrapWidth()), "\n")
	lines[0] = promptIndicator.Render("> ") + lines[0]
	for i := 1; i < len(lines); i++ {
		lines[i] = "  " + lines[i]
	}
	return strings.Join(lines, "\n")
}

func (m *ChatModel) renderSuggestionsForWidth(width int) []string {
	lines := make([]string, 0, len(m.slashSuggestions))
	for i, c := range m.slashSuggestions {
		name := c.Name
		if c.Args != "" {
			name += " " + c.Args
		}
		prefix, style := "  ", suggestDescStyle
		if i == m.selectedSlashIdx {
			prefix, style = "> ", suggestSelStyle
		}
		lines = append(lines, style.Render(wrapWithPrefix(prefix, name+"  "+c.Description, width)))
	}
	return lines
}

func (m *ChatModel) inputHeight() int {
	return max(1, lipgloss.Height(m.renderInputForView()))
}

func (m *ChatModel) suggestionsHeight() int {
	if len(m.slashSuggestions) == 0 {
		return 0
	}
	return lipgloss.Height(strings.Join(m.renderSuggestionsForWidth(max(16, m.width-4)), "\n"))
}
