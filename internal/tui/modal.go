package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	modalBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("205")).
			Background(lipgloss.Color("235")).
			Padding(1, 2)
	modalTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	modalHintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	modalSelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Bold(true)
	modalItemStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	modalDetailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	modalWarnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
)

type SelectOption struct {
	ID      string
	Label   string
	Detail  string
	Current bool
}

// SelectModal is a vertical picker. It is used for the model list.
type SelectModal struct {
	Title    string
	Hint     string
	Visible  bool
	Selected int
	Options  []SelectOption
	MaxWidth int
}

func NewSelectModal(title, hint string) *SelectModal {
	return &SelectModal{
		Title:    title,
		Hint:     hint,
		Selected: -1,
	}
}

// SetOptions replaces the options and preselects the current one.
func (m *SelectModal) SetOptions(options []SelectOption) {
	m.Options = append([]SelectOption(nil), options...)
	m.Selected = -1
	for i, opt := range m.Options {
		if opt.Current {
			m.Selected = i
			break
		}
	}
	if m.Selected < 0 && len(m.Options) > 0 {
		m.Selected = 0
	}
}

func (m *SelectModal) Open() {
	m.Visible = true
	if m.Selected < 0 || m.Selected >= len(m.Options) {
		m.Selected = 0
		if len(m.Options) == 0 {
			m.Selected = -1
		}
	}
}

func (m *SelectModal) Close() {
	m.Visible = false
}

func (m *SelectModal) SetWidth(width int) {
	m.MaxWidth = width
}

func (m *SelectModal) Move(delta int) {
	if len(m.Options) == 0 || m.Selected < 0 {
		return
	}
	next := m.Selected + delta
	if next < 0 || next >= len(m.Options) {
		return
	}
	m.Selected = next
}

func (m *SelectModal) SelectedOption() (SelectOption, bool) {
	if m.Selected < 0 || m.Selected >= len(m.Options) {
		return SelectOption{}, false
	}
	return m.Options[m.Selected], true
}

func (m *SelectModal) View() string {
	if !m.Visible {
		return ""
	}
	contentWidth := modalContentWidth(m.MaxWidth)
	var lines []string
	for i, opt := range m.Options {
		prefix := "  "
		style := modalItemStyle
		if i == m.Selected {
			prefix = "> "
			style = modalSelStyle
		}
		label := opt.Label
		if opt.Current {
			label += " (current)"
		}
		line := prefix + label
		if contentWidth > 0 {
			line = wrapWithPrefix(prefix, label, contentWidth)
		}
		lines = append(lines, style.Render(line))
		if opt.Detail != "" {
			lines = append(lines, modalDetailStyle.Render("    "+opt.Detail))
		}
	}
	if len(lines) == 0 {
		lines = append(lines, modalDetailStyle.Render("  (nothing to choose)"))
	}

	title, hint := m.Title, m.Hint
	if contentWidth > 0 {
		title = wrapToWidth(title, contentWidth)
		hint = wrapToWidth(hint, contentWidth)
	}
	return boxStyleFor(m.MaxWidth).Render(fmt.Sprintf("%s\n\n%s\n\n%s",
		modalTitleStyle.Render(title),
		strings.Join(lines, "\n"),
		modalHintStyle.Render(hint),
	))
}

// ConfirmModal asks a yes/no question about one conversation.
type ConfirmModal struct {
	Visible  bool
	TargetID string
	Prompt   string
	MaxWidth int
}

func (m *ConfirmModal) Open(id, prompt string) {
	m.Visible = true
	m.TargetID = id
	m.Prompt = strings.TrimSpace(prompt)
}

func (m *ConfirmModal) Close() {
	m.Visible = false
	m.TargetID = ""
	m.Prompt = ""
}

func (m *ConfirmModal) SetWidth(width int) {
	m.MaxWidth = width
}

func (m *ConfirmModal) View() string {
	if !m.Visible {
		return ""
	}
	prompt := m.Prompt
	if w := modalContentWidth(m.MaxWidth); w > 0 {
		prompt = wrapToWidth(prompt, w)
	}
	return boxStyleFor(m.MaxWidth).Render(strings.Join([]string{
		modalWarnStyle.Render(prompt),
		"",
		modalHintStyle.Render("y: confirm  n/esc: cancel"),
	}, "\n"))
}

func boxStyleFor(maxWidth int) lipgloss.Style {
	if maxWidth > 0 {
		return modalBoxStyle.MaxWidth(maxWidth)
	}
	return modalBoxStyle
}

func modalContentWidth(maxWidth int) int {
	if maxWidth <= 0 {
		return 0
	}
	return max(20, maxWidth-8)
}
