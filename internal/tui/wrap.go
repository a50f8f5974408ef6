package tui

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// wrapToWidth soft-wraps text at width cells, splitting words that do not
// fit on a line of their own. Styled text keeps its escape sequences.
func wrapToWidth(text string, width int) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if width <= 0 {
		return text
	}
	lines := strings.Split(ansi.Wrap(text, width, "-"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.Join(lines, "\n")
}

// wrapWithPrefix wraps content beside prefix, hanging continuation lines
// under the first content column.
func wrapWithPrefix(prefix, content string, width int) string {
	prefixWidth := ansi.StringWidth(prefix)
	if width <= 0 || prefixWidth >= width {
		return wrapToWidth(prefix+content, width)
	}
	body := wrapToWidth(content, width-prefixWidth)
	return prefix + strings.ReplaceAll(body, "\n", "\n"+strings.Repeat(" ", prefixWidth))
}

// truncate shortens s to width cells, marking the cut with an ellipsis.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = strings.Join(strings.Fields(s), " ")
	return ansi.Truncate(s, width, "…")
}
