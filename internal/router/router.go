// Package router maps a model identifier to the chat endpoint that serves it
// and to the history format that endpoint expects.
package router

import (
	"errors"
	"fmt"
	"strings"
)

type HistoryFormat string

const (
	// HistoryRoleContent sends the whole conversation as [{role, content}].
	HistoryRoleContent HistoryFormat = "role_content"
	// HistoryNone sends only the new message.
	HistoryNone HistoryFormat = "none"
)

const DefaultModelID = "mixtral"

type Route struct {
	ID      string
	Label   string
	Path    string
	Aliases []string
	History HistoryFormat
}

// Endpoint is the resolved target for one chat request.
type Endpoint struct {
	ModelID string
	URL     string
	Path    string
	History HistoryFormat
}

type Router struct {
	baseURL string
	routes  []Route
	index   map[string]int
	def     int
}

func DefaultRoutes() []Route {
	return []Route{
		{
			ID:      "mixtral",
			Label:   "Mixtral (Groq)",
			Path:    "/api/groq-chat/",
			History: HistoryRoleContent,
		},
		{
			ID:      "deepseek",
			Label:   "DeepSeek",
			Path:    "/api/chat/",
			History: HistoryRoleContent,
		},
		{
			ID:      "groq-chat-two",
			Label:   "Groq Chat Two",
			Path:    "/api/graq-chat-two/",
			Aliases: []string{"graq-chat-two"},
			History: HistoryRoleContent,
		},
	}
}

// New builds a router over routes. Lookups are case-insensitive on ids and
// aliases; defaultID names the route used for unknown identifiers.
func New(baseURL string, routes []Route, defaultID string) (*Router, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("router: base url is empty")
	}
	if len(routes) == 0 {
		routes = DefaultRoutes()
	}

	r := &Router{
		baseURL: baseURL,
		routes:  make([]Route, 0, len(routes)),
		index:   make(map[string]int),
	}
	for _, route := range routes {
		route.ID = normalize(route.ID)
		if route.ID == "" {
			return nil, errors.New("router: route id is empty")
		}
		route.Path = strings.TrimSpace(route.Path)
		if route.Path == "" {
			return nil, fmt.Errorf("router: route %q has no path", route.ID)
		}
		if !strings.HasPrefix(route.Path, "/") {
			route.Path = "/" + route.Path
		}
		switch route.History {
		case "":
			route.History = HistoryRoleContent
		case HistoryRoleContent, HistoryNone:
		default:
			return nil, fmt.Errorf("router: route %q has unknown history format %q", route.ID, route.History)
		}
		if strings.TrimSpace(route.Label) == "" {
			route.Label = route.ID
		}

		pos := len(r.routes)
		keys := append([]string{route.ID}, route.Aliases...)
		aliases := make([]string, 0, len(route.Aliases))
		for i, key := range keys {
			key = normalize(key)
			if key == "" {
				continue
			}
			if _, taken := r.index[key]; taken {
				return nil, fmt.Errorf("router: identifier %q is used by more than one route", key)
			}
			r.index[key] = pos
			if i > 0 {
				aliases = append(aliases, key)
			}
		}
		route.Aliases = aliases
		r.routes = append(r.routes, route)
	}

	defaultID = normalize(defaultID)
	if defaultID == "" {
		defaultID = DefaultModelID
	}
	pos, ok := r.index[defaultID]
	if !ok {
		return nil, fmt.Errorf("router: default model %q has no route", defaultID)
	}
	r.def = pos
	return r, nil
}

// Resolve never fails: unknown identifiers fall back to the default route.
func (r *Router) Resolve(modelID string) Endpoint {
	route := r.routes[r.lookup(modelID)]
	return Endpoint{
		ModelID: route.ID,
		URL:     r.baseURL + route.Path,
		Path:    route.Path,
		History: route.History,
	}
}

// Canonical returns the route id for known identifiers and aliases, and the
// normalized identifier otherwise.
func (r *Router) Canonical(modelID string) string {
	key := normalize(modelID)
	if pos, ok := r.index[key]; ok {
		return r.routes[pos].ID
	}
	if key == "" {
		return r.routes[r.def].ID
	}
	return key
}

func (r *Router) Known(modelID string) bool {
	_, ok := r.index[normalize(modelID)]
	return ok
}

func (r *Router) Default() Route {
	return r.routes[r.def]
}

func (r *Router) BaseURL() string {
	return r.baseURL
}

func (r *Router) Routes() []Route {
	out := make([]Route, len(r.routes))
	for i, route := range r.routes {
		route.Aliases = append([]string(nil), route.Aliases...)
		out[i] = route
	}
	return out
}

func (r *Router) lookup(modelID string) int {
	if pos, ok := r.index[normalize(modelID)]; ok {
		return pos
	}
	return r.def
}

func normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
