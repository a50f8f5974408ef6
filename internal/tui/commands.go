package tui

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// CommandResultMsg carries a one-line notice for the chat pane.
type CommandResultMsg struct {
	Msg string
}

type openModelsPickerMsg struct{}

type confirmDeleteMsg struct {
	ID    string
	Title string
}

type slashCommand struct {
	Name        string
	Args        string
	Description string
}

var slashCommands = []slashCommand{
	{Name: "/new", Description: "Start a new conversation"},
	{Name: "/open", Args: "<n>", Description: "Open conversation n from the sidebar"},
	{Name: "/delete", Args: "<n>", Description: "Delete conversation n"},
	{Name: "/model", Args: "<id>", Description: "Switch model (clears the session)"},
	{Name: "/models", Description: "Pick a model"},
	{Name: "/refresh", Description: "Reload the conversation list"},
	{Name: "/whoami", Description: "Show the signed-in user"},
	{Name: "/logout", Description: "Sign out and quit"},
	{Name: "/help", Description: "List commands"},
	{Name: "/quit", Description: "Quit"},
}

func filterSlashCommands(input string, limit int) []slashCommand {
	if limit <= 0 {
		limit = len(slashCommands)
	}
	raw := strings.TrimSpace(input)
	if !strings.HasPrefix(raw, "/") {
		return nil
	}
	fields := strings.Fields(raw)
	// Arguments are being typed; the command is settled.
	if len(fields) > 1 || strings.HasSuffix(input, " ") {
		return nil
	}

	query := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	matches := make([]slashCommand, 0, limit)
	for _, c := range slashCommands {
		if len(matches) >= limit {
			return matches
		}
		if strings.HasPrefix(strings.TrimPrefix(c.Name, "/"), query) {
			matches = append(matches, c)
		}
	}
	for _, c := range slashCommands {
		if len(matches) >= limit {
			return matches
		}
		name := strings.TrimPrefix(c.Name, "/")
		if !strings.HasPrefix(name, query) && strings.Contains(name, query) {
			matches = append(matches, c)
		}
	}
	return matches
}

func splitSlashCommand(input string) (string, []string) {
	fields := strings.Fields(strings.TrimSpace(input))
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}

func helpText() string {
	var b strings.Builder
	b.WriteString("Commands:")
	for _, c := range slashCommands {
		name := c.Name
		if c.Args != "" {
			name += " " + c.Args
		}
		fmt.Fprintf(&b, "\n  %-14s %s", name, c.Description)
	}
	b.WriteString("\nKeys: ctrl+n new conversation, up/down prompt history, pgup/pgdown scroll, ctrl+c quit")
	return b.String()
}

func handleSlashCommand(input string, app *AppModel) tea.Cmd {
	name, args := splitSlashCommand(input)
	switch name {
	case "/new":
		return app.startNewCmd()
	case "/open", "/delete":
		conv, err := app.conversationByNumber(args)
		if err != nil {
			return noticeCmd(err.Error())
		}
		if name == "/open" {
			return app.selectCmd(conv.ID)
		}
		return func() tea.Msg { return confirmDeleteMsg{ID: conv.ID, Title: conv.Title} }
	case "/model":
		if len(args) == 0 {
			return noticeCmd("Usage: /model <id>. Run /models to pick from the list.")
		}
		return app.selectModelCmd(args[0])
	case "/models":
		return func() tea.Msg { return openModelsPickerMsg{} }
	case "/refresh":
		return app.loadCmd()
	case "/whoami":
		return app.whoamiCmd()
	case "/logout":
		return app.logoutCmd()
	case "/help":
		return noticeCmd(helpText())
	case "/quit", "/exit":
		return tea.Quit
	default:
		if suggestions := filterSlashCommands(name, 1); len(suggestions) == 1 {
			return noticeCmd(fmt.Sprintf("Unknown command: %s. Did you mean %s?", name, suggestions[0].Name))
		}
		return noticeCmd(fmt.Sprintf("Unknown command: %s", name))
	}
}

func parseConversationNumber(args []string, count int) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("missing conversation number")
	}
	n, err := strconv.Atoi(strings.TrimPrefix(args[0], "#"))
	if err != nil || n < 1 || n > count {
		if count == 0 {
			return 0, fmt.Errorf("no conversations yet")
		}
		return 0, fmt.Errorf("conversation number must be between 1 and %d", count)
	}
	return n - 1, nil
}

func noticeCmd(text string) tea.Cmd {
	return func() tea.Msg { return CommandResultMsg{Msg: text} }
}
