package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yubzen/parley/internal/store"
)

type memoryCredentials struct {
	mu    sync.Mutex
	token string
}

func (m *memoryCredentials) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token != ""
}

func (m *memoryCredentials) Token() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" {
		return "", errors.New("no token")
	}
	return m.token, nil
}

func (m *memoryCredentials) Store(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *memoryCredentials) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}

type fakeServer struct {
	mu       sync.Mutex
	calls    []string
	chatBody map[string]any
}

func (f *fakeServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	record := func(r *http.Request) {
		f.mu.Lock()
		f.calls = append(f.calls, r.Method+" "+r.URL.Path)
		f.mu.Unlock()
	}
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	authed := func(r *http.Request) bool {
		return r.Header.Get("Authorization") == "Token secret"
	}

	mux.HandleFunc("/api/auth/login/", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "hunter2" {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, map[string]any{"non_field_errors": []string{"Unable to log in with provided credentials."}})
			return
		}
		writeJSON(w, map[string]string{"key": "secret"})
	})
	mux.HandleFunc("/api/auth/user/", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		if !authed(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]string{"username": "ada", "email": "ada@example.com"})
	})
	mux.HandleFunc("/api/get-conversations/", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		writeJSON(w, []map[string]any{
			{"id": 1, "title": "Older", "started_at": "2024-01-01T10:00:00Z"},
			{"id": 2, "title": "Newer", "started_at": "2024-03-01T10:00:00Z"},
		})
	})
	mux.HandleFunc("/api/start-conversation/", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		writeJSON(w, map[string]any{"conversation_id": 5, "title": "Started"})
	})
	mux.HandleFunc("/api/get-messages/2/", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		writeJSON(w, []map[string]string{
			{"sender": "user", "content": "hello"},
			{"sender": "bot", "content": "hi there"},
		})
	})
	mux.HandleFunc("/api/delete-conversation/2/", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/chat/", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		f.mu.Lock()
		_ = json.NewDecoder(r.Body).Decode(&f.chatBody)
		f.mu.Unlock()
		writeJSON(w, map[string]string{"reply": "deep answer"})
	})
	mux.HandleFunc("/api/groq-chat/", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		writeJSON(w, map[string]string{"reply": "fast answer"})
	})
	mux.HandleFunc("/api/graq-chat-two/", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		w.WriteHeader(http.StatusInternalServerError)
	})
	return mux
}

func (f *fakeServer) called(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

type harness struct {
	t      *testing.T
	server *fakeServer
	creds  *memoryCredentials
	dir    string
	config string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fs := &fakeServer{}
	srv := httptest.NewServer(fs.handler(t))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	cfg := fmt.Sprintf(`
[server]
base_url = %q

[state]
db_path = %q

[log]
file = ""
`, srv.URL, filepath.Join(dir, "parley.db"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	return &harness{t: t, server: fs, creds: &memoryCredentials{}, dir: dir, config: cfgPath}
}

func (h *harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()
	opts := &Options{
		NewCredentials: func(string) Credentials { return h.creds },
	}
	root := NewRootCmd(opts)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append(args, "--config", h.config))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoginStoresToken(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("", "login", "--email", "ada@example.com", "--password", "hunter2")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in to 127.0.0.1")
	assert.True(t, h.creds.IsAuthenticated())
}

func TestLoginPromptsForMissingFieldsAndReportsFormError(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("ada@example.com\nwrong\n", "login")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unable to log in with provided credentials.")
	assert.False(t, h.creds.IsAuthenticated())
}

func TestWhoami(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("", "whoami")
	require.NoError(t, err)
	assert.Equal(t, "Not signed in.\n", out)

	h.creds.token = "secret"
	out, err = h.run("", "whoami")
	require.NoError(t, err)
	assert.Equal(t, "ada <ada@example.com>\n", out)
}

func TestConversationsListNewestFirst(t *testing.T) {
	h := newHarness(t)
	h.creds.token = "secret"

	out, err := h.run("", "conversations")
	require.NoError(t, err)
	newer := strings.Index(out, "Newer")
	older := strings.Index(out, "Older")
	require.True(t, newer > 0 && older > 0, out)
	assert.Less(t, newer, older)
}

func TestConversationsRequireSignIn(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("", "conversations", "list")
	assert.ErrorIs(t, err, errNotSignedIn)
}

func TestConversationShowPrintsTranscriptAndCachesIt(t *testing.T) {
	h := newHarness(t)
	h.creds.token = "secret"

	out, err := h.run("", "conversations", "show", "2")
	require.NoError(t, err)
	assert.Equal(t, "you: hello\n\nbot: hi there\n", out)

	db, err := store.Connect(filepath.Join(h.dir, "parley.db"))
	require.NoError(t, err)
	defer db.Close()
	tr, err := db.Transcript(context.Background(), "2")
	require.NoError(t, err)
	assert.Len(t, tr.Messages, 2)
}

func TestConversationDeleteHonoursConfirmation(t *testing.T) {
	h := newHarness(t)
	h.creds.token = "secret"

	out, err := h.run("n\n", "conversations", "delete", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled.")
	assert.False(t, h.server.called("DELETE /api/delete-conversation/2/"))

	out, err = h.run("", "conversations", "delete", "2", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted conversation 2")
	assert.True(t, h.server.called("DELETE /api/delete-conversation/2/"))
}

func TestSendCreatesConversationAndPrintsReply(t *testing.T) {
	h := newHarness(t)
	h.creds.token = "secret"

	out, err := h.run("", "send", "--model", "deepseek", "what", "is", "up")
	require.NoError(t, err)
	assert.Equal(t, "deep answer\n", out)
	assert.True(t, h.server.called("POST /api/start-conversation/"))

	h.server.mu.Lock()
	body := h.server.chatBody
	h.server.mu.Unlock()
	assert.Equal(t, "what is up", body["message"])
	assert.EqualValues(t, 5, body["conversation_id"])

	// The one-off --model is not remembered.
	out, err = h.run("", "models")
	require.NoError(t, err)
	assert.NotContains(t, out, "selected")

	out, err = h.run("", "export", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "deep answer")
	assert.Contains(t, out, "what is up")
}

func TestSendReportsFailedReply(t *testing.T) {
	h := newHarness(t)
	h.creds.token = "secret"

	out, err := h.run("", "send", "--model", "groq-chat-two", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server returned 500")
	assert.Empty(t, out)
}

func TestSendRequiresSignIn(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("", "send", "hello")
	assert.ErrorIs(t, err, errNotSignedIn)
}

func TestModelsMarksDefault(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("", "models")
	require.NoError(t, err)
	assert.Contains(t, out, "mixtral")
	assert.Contains(t, out, "(default)")
	assert.Contains(t, out, "/api/graq-chat-two/")
	assert.Contains(t, out, "graq-chat-two")
}

func TestHistoryEmpty(t *testing.T) {
	h := newHarness(t)
	out, err := h.run("", "history")
	require.NoError(t, err)
	assert.Equal(t, "No prompts yet.\n", out)
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("", "export", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported format "xml"`)
}

func TestConfigPathAndInit(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("", "config", "path")
	require.NoError(t, err)
	assert.Equal(t, h.config+"\n", out)

	_, err = h.run("", "config", "init")
	require.Error(t, err, "existing file is not overwritten")

	out, err = h.run("", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "base_url")
}

func TestLogoutClearsToken(t *testing.T) {
	h := newHarness(t)
	h.creds.token = "secret"

	out, err := h.run("", "logout")
	require.NoError(t, err)
	assert.Equal(t, "Signed out.\n", out)
	assert.False(t, h.creds.IsAuthenticated())
}

func TestExportRedactMasksSecrets(t *testing.T) {
	h := newHarness(t)
	h.creds.token = "secret"

	_, err := h.run("", "send", "my key is sk-abcdefghijklmnopqrstuvwxyz123456")
	require.NoError(t, err)

	out, err := h.run("", "export", "--redact")
	require.NoError(t, err)
	assert.NotContains(t, out, "sk-abcdefghijklmnopqrstuvwxyz123456")
	assert.Contains(t, out, "my key is")
}

func TestDoctorReportsEachCheck(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("", "doctor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 check(s) failed")
	assert.Contains(t, out, "sign-in")
	assert.Contains(t, out, "FAIL")

	h.creds.token = "secret"
	out, err = h.run("", "doctor")
	require.NoError(t, err, out)
	for _, name := range []string{"config", "sign-in", "server", "cache"} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "ada")
	assert.NotContains(t, out, "FAIL")
}

func TestCheckAllKeepsOrder(t *testing.T) {
	statuses := checkAll(context.Background(), []healthCheck{
		{Name: "a", Run: func(context.Context) (string, error) { return "fine", nil }},
		{Name: "b", Run: func(context.Context) (string, error) { return "", errors.New("boom") }},
	})
	require.Len(t, statuses, 2)
	if statuses[0].Name != "a" || !statuses[0].OK {
		t.Fatalf("unexpected first status: %+v", statuses[0])
	}
	assert.False(t, statuses[1].OK)
	assert.Equal(t, "boom", statuses[1].ErrorMsg)
}
