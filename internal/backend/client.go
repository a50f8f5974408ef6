// Package backend is the HTTP client for the chat service: authentication,
// the conversation registry endpoints and the per-model chat endpoints.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yubzen/parley/internal/redact"
)

const (
	pathConversations = "/api/get-conversations/"
	pathStart         = "/api/start-conversation/"
	pathMessages      = "/api/get-messages/"
	pathDelete        = "/api/delete-conversation/"
	pathLogin         = "/api/auth/login/"
	pathRegistration  = "/api/auth/registration/"
	pathLogout        = "/api/auth/logout/"
	pathUser          = "/api/auth/user/"

	maxErrorBody = 4 << 10
)

// TokenSource supplies the opaque API token. Implementations return an error
// or an empty token when the user is signed out.
type TokenSource interface {
	Token() (string, error)
}

type Client struct {
	BaseURL string
	Tokens  TokenSource
	HTTP    *http.Client
	Log     zerolog.Logger
}

// New returns a client for baseURL. A zero timeout leaves requests bounded
// only by the caller's context.
func New(baseURL string, tokens TokenSource, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Tokens:  tokens,
		HTTP:    &http.Client{Timeout: timeout},
		Log:     zerolog.Nop(),
	}
}

func (c *Client) ListConversations(ctx context.Context) ([]ConversationSummary, error) {
	var out []ConversationSummary
	if err := c.do(ctx, http.MethodGet, pathConversations, nil, true, &out); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return out, nil
}

// StartConversation creates an empty conversation. The server sends no
// title; callers pick a default.
func (c *Client) StartConversation(ctx context.Context) (StartedConversation, error) {
	var out StartedConversation
	if err := c.do(ctx, http.MethodPost, pathStart, nil, true, &out); err != nil {
		return StartedConversation{}, fmt.Errorf("start conversation: %w", err)
	}
	if out.ConversationID == "" {
		return StartedConversation{}, errors.New("start conversation: response has no conversation_id")
	}
	return out, nil
}

func (c *Client) GetMessages(ctx context.Context, id ID) ([]StoredMessage, error) {
	var out []StoredMessage
	path := pathMessages + url.PathEscape(id.String()) + "/"
	if err := c.do(ctx, http.MethodGet, path, nil, true, &out); err != nil {
		return nil, fmt.Errorf("load messages for conversation %s: %w", id, err)
	}
	return out, nil
}

func (c *Client) DeleteConversation(ctx context.Context, id ID) error {
	path := pathDelete + url.PathEscape(id.String()) + "/"
	if err := c.do(ctx, http.MethodDelete, path, nil, true, nil); err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	return nil
}

// Chat posts one message to endpointURL and returns the reply text. An
// absent or non-string reply field yields an empty string.
func (c *Client) Chat(ctx context.Context, endpointURL string, req ChatRequest) (string, error) {
	var out struct {
		Reply any `json:"reply"`
	}
	if err := c.do(ctx, http.MethodPost, endpointURL, req, true, &out); err != nil {
		return "", err
	}
	reply, _ := out.Reply.(string)
	return reply, nil
}

// Profile returns nil without error when no token is stored or the server
// rejects it.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var out Profile
	err := c.do(ctx, http.MethodGet, pathUser, nil, true, &out)
	if IsUnauthorized(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	body := map[string]string{"email": email, "password": password}
	token, err := c.exchange(ctx, pathLogin, body, "non_field_errors", "email", "password")
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	return token, nil
}

func (c *Client) Register(ctx context.Context, reg Registration) (string, error) {
	token, err := c.exchange(ctx, pathRegistration, reg, "email", "password1", "username", "password2", "non_field_errors")
	if err != nil {
		return "", fmt.Errorf("signup: %w", err)
	}
	return token, nil
}

// Logout invalidates the token server-side. It is best effort; callers clear
// the local token regardless.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, pathLogout, nil, true, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (c *Client) exchange(ctx context.Context, path string, body any, fields ...string) (string, error) {
	var out struct {
		Key string `json:"key"`
	}
	err := c.do(ctx, http.MethodPost, path, body, false, &out)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusBadRequest {
		if formErr := parseFormError([]byte(statusErr.Body), fields...); formErr != nil {
			return "", formErr
		}
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Key) == "" {
		return "", errors.New("response has no token")
	}
	return strings.TrimSpace(out.Key), nil
}

func (c *Client) do(ctx context.Context, method, target string, body any, authenticated bool, out any) error {
	token := ""
	if authenticated {
		if c.Tokens == nil {
			return ErrNotAuthenticated
		}
		t, err := c.Tokens.Token()
		if err != nil || strings.TrimSpace(t) == "" {
			return ErrNotAuthenticated
		}
		token = strings.TrimSpace(t)
	}

	endpoint := target
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		endpoint = c.BaseURL + target
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}

	started := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		c.Log.Debug().Err(err).Str("request_id", requestID).Str("method", method).Str("url", endpoint).Msg("request failed")
		return err
	}
	defer resp.Body.Close()

	c.Log.Debug().
		Str("request_id", requestID).
		Str("method", method).
		Str("url", endpoint).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		body := strings.TrimSpace(string(raw))
		c.Log.Debug().Str("request_id", requestID).Str("body", redact.Clean(body)).Msg("error response")
		return &StatusError{
			Method:     method,
			Path:       target,
			StatusCode: resp.StatusCode,
			Body:       body,
		}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// parseFormError picks the first message of the first listed field present in
// a form-validation body, falling back to any field in name order.
func parseFormError(body []byte, fields ...string) *FormError {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || len(raw) == 0 {
		return nil
	}

	first := func(field string) string {
		value, ok := raw[field]
		if !ok {
			return ""
		}
		var list []string
		if err := json.Unmarshal(value, &list); err == nil {
			for _, msg := range list {
				if strings.TrimSpace(msg) != "" {
					return strings.TrimSpace(msg)
				}
			}
			return ""
		}
		var single string
		if err := json.Unmarshal(value, &single); err == nil {
			return strings.TrimSpace(single)
		}
		return ""
	}

	for _, field := range fields {
		if msg := first(field); msg != "" {
			return &FormError{Field: field, Message: msg}
		}
	}
	if msg := first("detail"); msg != "" {
		return &FormError{Message: msg}
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if msg := first(name); msg != "" {
			return &FormError{Field: name, Message: msg}
		}
	}
	return nil
}
