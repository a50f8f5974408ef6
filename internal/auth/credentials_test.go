package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubKeyring(t *testing.T, available bool) (string, map[string]string) {
	t.Helper()
	origGet, origSet, origDelete, origHome := keyringGet, keyringSet, keyringDelete, userHomeDir
	t.Cleanup(func() {
		keyringGet = origGet
		keyringSet = origSet
		keyringDelete = origDelete
		userHomeDir = origHome
	})

	tmpHome := t.TempDir()
	userHomeDir = func() (string, error) { return tmpHome, nil }

	values := make(map[string]string)
	if !available {
		unavailable := errors.New("keyring unavailable")
		keyringSet = func(service, user, password string) error { return unavailable }
		keyringGet = func(service, user string) (string, error) { return "", unavailable }
		keyringDelete = func(service, user string) error { return unavailable }
		return tmpHome, values
	}
	keyringSet = func(service, user, password string) error {
		values[user] = password
		return nil
	}
	keyringGet = func(service, user string) (string, error) {
		value := values[user]
		if value == "" {
			return "", errors.New("not found")
		}
		return value, nil
	}
	keyringDelete = func(service, user string) error {
		delete(values, user)
		return nil
	}
	return tmpHome, values
}

func TestGateFallsBackToFileWhenKeyringUnavailable(t *testing.T) {
	home, _ := stubKeyring(t, false)
	gate := NewGate("chat.example.com")

	if gate.IsAuthenticated() {
		t.Fatalf("expected fresh gate to be unauthenticated")
	}
	if err := gate.Store("abc123"); err != nil {
		t.Fatalf("store token: %v", err)
	}

	path := filepath.Join(home, ".config", "parley", "credentials.json")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat credential file: %v", err)
	}
	if got := info.Mode().Perm(); got != 0o600 {
		t.Fatalf("expected credential file mode 0600, got %o", got)
	}

	token, err := gate.Token()
	if err != nil {
		t.Fatalf("load token: %v", err)
	}
	if token != "abc123" {
		t.Fatalf("expected stored token, got %q", token)
	}
	if !gate.IsAuthenticated() {
		t.Fatalf("expected gate to report authenticated")
	}
}

func TestGateUsesKeyringWhenAvailable(t *testing.T) {
	home, values := stubKeyring(t, true)
	gate := NewGate("chat.example.com")

	require.NoError(t, gate.Store("abc123"))
	assert.Equal(t, "abc123", values["chat.example.com"])

	_, err := os.Stat(filepath.Join(home, ".config", "parley", "credentials.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "no fallback file expected, got %v", err)
}

func TestGateClearRemovesTokenEverywhere(t *testing.T) {
	stubKeyring(t, false)
	gate := NewGate("chat.example.com")
	other := NewGate("other.example.com")

	require.NoError(t, gate.Store("abc123"))
	require.NoError(t, other.Store("def456"))
	require.NoError(t, gate.Clear())

	_, err := gate.Token()
	assert.ErrorIs(t, err, ErrCredentialNotFound)
	assert.False(t, gate.IsAuthenticated())

	token, err := other.Token()
	require.NoError(t, err)
	assert.Equal(t, "def456", token)

	require.NoError(t, gate.Clear(), "clearing twice is allowed")
}

func TestValidateToken(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{name: "plain", token: "9944b09199c62bcf9418ad846dd0e4bbdfc6ee4b"},
		{name: "empty", token: "", wantErr: true},
		{name: "blank", token: "   ", wantErr: true},
		{name: "inner space", token: "abc def", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateToken(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewGateDefaultsAccount(t *testing.T) {
	assert.Equal(t, "default", NewGate("  ").Account())
}
