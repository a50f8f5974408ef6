package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/yubzen/parley/internal/router"
)

const (
	DefaultBaseURL           = "https://saran-chatbot-1c9368cfddbc.herokuapp.com"
	DefaultInputHistoryLimit = 100
)

// Duration decodes TOML strings such as "30s". Zero means no limit.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	if parsed < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", raw)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Route struct {
	ID      string   `toml:"id"`
	Label   string   `toml:"label,omitempty"`
	Path    string   `toml:"path"`
	Aliases []string `toml:"aliases,omitempty"`
	History string   `toml:"history,omitempty"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type Config struct {
	Server struct {
		BaseURL        string   `toml:"base_url"`
		RequestTimeout Duration `toml:"request_timeout"`
	} `toml:"server"`
	Models struct {
		Default string  `toml:"default"`
		Routes  []Route `toml:"routes,omitempty"`
	} `toml:"models"`
	State struct {
		DBPath            string `toml:"db_path"`
		InputHistoryLimit int    `toml:"input_history_limit"`
	} `toml:"state"`
	Log LogConfig `toml:"log"`
}

// GetConfigPath honours PARLEY_CONFIG, then ~/.config/parley/config.toml.
func GetConfigPath() string {
	if path := strings.TrimSpace(os.Getenv("PARLEY_CONFIG")); path != "" {
		return ExpandPath(path)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "parley", "config.toml")
}

func Defaults() *Config {
	var cfg Config
	cfg.Server.BaseURL = DefaultBaseURL
	cfg.Models.Default = router.DefaultModelID
	cfg.State.DBPath = "~/.config/parley/parley.db"
	cfg.State.InputHistoryLimit = DefaultInputHistoryLimit
	cfg.Log.Level = "info"
	cfg.Log.File = "~/.config/parley/parley.log"
	return &cfg
}

func Load() (*Config, error) {
	return LoadFile(GetConfigPath())
}

// LoadFile applies defaults and then the file at path, if it exists.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	raw := strings.TrimSpace(c.Server.BaseURL)
	if raw == "" {
		return errors.New("server.base_url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("server.base_url %q is not an http(s) url", raw)
	}
	if c.State.InputHistoryLimit < 0 {
		return errors.New("state.input_history_limit must not be negative")
	}
	_, err = c.Router()
	return err
}

// Router builds the model route table. An empty [[models.routes]] list
// means the built-in routes.
func (c *Config) Router() (*router.Router, error) {
	routes := make([]router.Route, 0, len(c.Models.Routes))
	for _, r := range c.Models.Routes {
		routes = append(routes, router.Route{
			ID:      r.ID,
			Label:   r.Label,
			Path:    r.Path,
			Aliases: r.Aliases,
			History: router.HistoryFormat(strings.TrimSpace(r.History)),
		})
	}
	return router.New(c.Server.BaseURL, routes, c.Models.Default)
}

// Account names the credential slot for this server: its host.
func (c *Config) Account() string {
	u, err := url.Parse(strings.TrimSpace(c.Server.BaseURL))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(c.Server.BaseURL)
	}
	return u.Host
}

func (c *Config) DBPath() string {
	return ExpandPath(c.State.DBPath)
}

func (c *Config) LogFile() string {
	return ExpandPath(c.Log.File)
}

func (c *Config) Save() error {
	return c.SaveFile(GetConfigPath())
}

func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}

// ExpandPath resolves a leading "~/" against the home directory.
func ExpandPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
