package tui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterSlashCommandsRootShowsLimitedList(t *testing.T) {
	got := filterSlashCommands("/", 6)
	if len(got) != 6 {
		t.Fatalf("expected 6 commands, got %d", len(got))
	}
}

func TestFilterSlashCommandsWithoutSlashShowsNoSuggestions(t *testing.T) {
	if got := filterSlashCommands("model", 6); len(got) != 0 {
		t.Fatalf("expected no suggestions without slash, got %d", len(got))
	}
}

func TestFilterSlashCommandsStopsOnceArgumentsStart(t *testing.T) {
	assert.Empty(t, filterSlashCommands("/open ", 6))
	assert.Empty(t, filterSlashCommands("/open 2", 6))
}

func TestFilterSlashCommandsPrefixMatchesComeFirst(t *testing.T) {
	got := filterSlashCommands("/de", 0)
	require.NotEmpty(t, got)
	assert.Equal(t, "/delete", got[0].Name)
	names := make([]string, 0, len(got))
	for _, c := range got {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "/model")
	assert.Contains(t, names, "/models")
}

func TestHandleSlashCommandFallbackSuggestion(t *testing.T) {
	msg, ok := handleSlashCommand("/mode", nil)().(CommandResultMsg)
	if !ok {
		t.Fatal("expected CommandResultMsg")
	}
	if !strings.Contains(msg.Msg, "Did you mean /model?") {
		t.Fatalf("expected fallback suggestion to mention /model, got %q", msg.Msg)
	}
}

func TestHandleSlashCommandModelsOpensPicker(t *testing.T) {
	if _, ok := handleSlashCommand("/models", nil)().(openModelsPickerMsg); !ok {
		t.Fatal("expected openModelsPickerMsg for /models")
	}
}

func TestHandleSlashCommandModelWithoutArgsShowsUsage(t *testing.T) {
	msg, ok := handleSlashCommand("/model", nil)().(CommandResultMsg)
	require.True(t, ok)
	assert.Contains(t, msg.Msg, "Usage: /model <id>")
}

func TestHandleSlashCommandHelpListsCommands(t *testing.T) {
	msg, ok := handleSlashCommand("/help", nil)().(CommandResultMsg)
	require.True(t, ok)
	for _, c := range slashCommands {
		assert.Contains(t, msg.Msg, c.Name)
	}
}

func TestParseConversationNumber(t *testing.T) {
	idx, err := parseConversationNumber([]string{"#2"}, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	_, err = parseConversationNumber([]string{"4"}, 3)
	assert.EqualError(t, err, "conversation number must be between 1 and 3")

	_, err = parseConversationNumber([]string{"1"}, 0)
	assert.EqualError(t, err, "no conversations yet")

	_, err = parseConversationNumber(nil, 3)
	assert.EqualError(t, err, "missing conversation number")
}
