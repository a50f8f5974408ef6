package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

const credentialService = "parley"

var ErrCredentialNotFound = errors.New("credential not found")

var (
	credentialFileMu sync.Mutex
	keyringGet       = keyring.Get
	keyringSet       = keyring.Set
	keyringDelete    = keyring.Delete
	userHomeDir      = os.UserHomeDir
)

// Gate holds the API token for one server account. The token is opaque: it
// is stored, handed to the HTTP client and cleared, never interpreted.
type Gate struct {
	account string
}

// NewGate returns a gate keyed by account, normally the server host so tokens
// for different deployments do not overwrite each other.
func NewGate(account string) *Gate {
	account = strings.TrimSpace(account)
	if account == "" {
		account = "default"
	}
	return &Gate{account: account}
}

func (g *Gate) Account() string {
	return g.account
}

func (g *Gate) IsAuthenticated() bool {
	token, err := g.Token()
	return err == nil && token != ""
}

func (g *Gate) Token() (string, error) {
	return LoadCredential(g.account)
}

func (g *Gate) Store(token string) error {
	return StoreCredential(g.account, token)
}

func (g *Gate) Clear() error {
	return ClearCredential(g.account)
}

func ValidateToken(token string) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("token is empty")
	}
	if strings.ContainsAny(token, " \t\r\n") {
		return errors.New("token must not contain whitespace")
	}
	return nil
}

func StoreCredential(keyName, token string) error {
	keyName = strings.TrimSpace(keyName)
	token = strings.TrimSpace(token)
	if keyName == "" {
		return errors.New("credential key name is empty")
	}
	if err := ValidateToken(token); err != nil {
		return err
	}

	if err := keyringSet(credentialService, keyName, token); err == nil {
		return nil
	}

	credentialFileMu.Lock()
	defer credentialFileMu.Unlock()

	entries, err := readCredentialFileUnlocked()
	if err != nil {
		return err
	}
	entries[keyName] = token
	return writeCredentialFileUnlocked(entries)
}

func LoadCredential(keyName string) (string, error) {
	keyName = strings.TrimSpace(keyName)
	if keyName == "" {
		return "", errors.New("credential key name is empty")
	}

	if token, err := keyringGet(credentialService, keyName); err == nil {
		token = strings.TrimSpace(token)
		if token != "" {
			return token, nil
		}
	}

	credentialFileMu.Lock()
	defer credentialFileMu.Unlock()

	entries, err := readCredentialFileUnlocked()
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(entries[keyName])
	if token == "" {
		return "", ErrCredentialNotFound
	}
	return token, nil
}

// ClearCredential removes the token from both the keyring and the fallback
// file. Removing a token that was never stored is not an error.
func ClearCredential(keyName string) error {
	keyName = strings.TrimSpace(keyName)
	if keyName == "" {
		return errors.New("credential key name is empty")
	}

	// Headless hosts have no keyring; the file below still has to be cleared.
	_ = keyringDelete(credentialService, keyName)

	credentialFileMu.Lock()
	defer credentialFileMu.Unlock()

	entries, err := readCredentialFileUnlocked()
	if err != nil {
		return err
	}
	if _, ok := entries[keyName]; !ok {
		return nil
	}
	delete(entries, keyName)
	return writeCredentialFileUnlocked(entries)
}

func credentialFilePath() (string, error) {
	home, err := userHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	home = strings.TrimSpace(home)
	if home == "" {
		return "", errors.New("home directory is empty")
	}
	return filepath.Join(home, ".config", "parley", "credentials.json"), nil
}

func readCredentialFileUnlocked() (map[string]string, error) {
	path, err := credentialFilePath()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credential file: %w", err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		return map[string]string{}, nil
	}
	entries := make(map[string]string)
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode credential file: %w", err)
	}
	clean := make(map[string]string, len(entries))
	for k, v := range entries {
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		clean[k] = v
	}
	return clean, nil
}

func writeCredentialFileUnlocked(entries map[string]string) error {
	path, err := credentialFilePath()
	if err != nil {
		return err
	}
	if entries == nil {
		entries = map[string]string{}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create credential directory: %w", err)
	}
	payload, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credential file: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, payload, 0o600); err != nil {
		return fmt.Errorf("write credential temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace credential file: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("set credential file permissions: %w", err)
	}
	return nil
}
