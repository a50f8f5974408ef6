package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/yubzen/parley/internal/session"
)

var (
	sbBaseStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("235")).Padding(0, 1)
	sbModelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	sbUserStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	sbIdleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	sbBusyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	sbHintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

type StatusBarModel struct {
	Model string
	User  string
	State session.State
	hint  string
	width int
}

func NewStatusBarModel() *StatusBarModel {
	return &StatusBarModel{User: "signed out"}
}

func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

func (m *StatusBarModel) SetHint(hint string) {
	m.hint = strings.TrimSpace(hint)
}

func (m *StatusBarModel) View() string {
	stateStyle := sbIdleStyle
	if m.State != session.StateIdle {
		stateStyle = sbBusyStyle
	}
	parts := []string{
		sbModelStyle.Render("[MODEL: " + m.Model + "]"),
		sbUserStyle.Render("[" + m.User + "]"),
		stateStyle.Render("[" + strings.ToUpper(m.State.String()) + "]"),
	}
	line := strings.Join(parts, " | ")
	if m.hint != "" {
		line += "  " + sbHintStyle.Render(m.hint)
	}
	if m.width > 2 {
		line = truncate(line, m.width-2)
	}
	return sbBaseStyle.Width(m.width).Render(line)
}
