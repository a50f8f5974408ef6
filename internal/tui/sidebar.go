package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/yubzen/parley/internal/session"
)

const (
	sidebarWidth    = 30
	sidebarMinTotal = 80
)

var (
	sidebarStyle       = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, true, false, false).BorderForeground(lipgloss.Color("238")).Padding(0, 1)
	sidebarHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	sidebarItemStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	sidebarActiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	sidebarLoadStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	sidebarEmptyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
)

// SidebarModel lists conversations newest first, numbered for /open and
// /delete.
type SidebarModel struct {
	conversations []session.Conversation
	activeID      string
	loadingID     string
	width         int
	height        int
}

func NewSidebarModel() *SidebarModel {
	return &SidebarModel{}
}

func (m *SidebarModel) SetConversations(convs []session.Conversation, activeID, loadingID string) {
	m.conversations = convs
	m.activeID = activeID
	m.loadingID = loadingID
}

func (m *SidebarModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// sidebarVisible reports whether a terminal of the given width has room
// for the sidebar next to the chat pane.
func sidebarVisible(totalWidth int) bool {
	return totalWidth >= sidebarMinTotal
}

func (m *SidebarModel) View() string {
	inner := max(8, m.width-3)
	lines := []string{sidebarHeaderStyle.Render("Conversations"), ""}
	if len(m.conversations) == 0 {
		lines = append(lines, sidebarEmptyStyle.Render("none yet"))
	}
	for i, conv := range m.conversations {
		marker := " "
		style := sidebarItemStyle
		switch conv.ID {
		case m.loadingID:
			marker = "…"
			style = sidebarLoadStyle
		case m.activeID:
			marker = "●"
			style = sidebarActiveStyle
		}
		prefix := fmt.Sprintf("%s %d. ", marker, i+1)
		title := truncate(conv.Title, max(1, inner-lipgloss.Width(prefix)))
		lines = append(lines, style.Render(prefix+title))
	}
	if m.height > 0 && len(lines) > m.height {
		lines = append(lines[:m.height-1], sidebarEmptyStyle.Render(fmt.Sprintf("+%d more", len(lines)-m.height+1)))
	}
	style := sidebarStyle.Width(max(1, m.width-1))
	if m.height > 0 {
		style = style.Height(m.height)
	}
	return style.Render(strings.Join(lines, "\n"))
}
