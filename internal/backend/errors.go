package backend

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNotAuthenticated is returned before any request is made when an
// authenticated call has no token to send.
var ErrNotAuthenticated = errors.New("not authenticated")

type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	text := http.StatusText(e.StatusCode)
	if text == "" {
		text = "unexpected status"
	}
	return fmt.Sprintf("server returned %d %s", e.StatusCode, text)
}

// IsUnauthorized reports whether err is a rejected or missing token.
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrNotAuthenticated) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden
	}
	return false
}

// FormError carries the first field message from a rejected login or signup
// form.
type FormError struct {
	Field   string
	Message string
}

func (e *FormError) Error() string {
	if strings.TrimSpace(e.Field) == "" || e.Field == "non_field_errors" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}
