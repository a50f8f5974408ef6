// Package cli holds the parley subcommands and the runtime they share.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yubzen/parley/internal/auth"
	"github.com/yubzen/parley/internal/backend"
	"github.com/yubzen/parley/internal/config"
	"github.com/yubzen/parley/internal/observability"
	"github.com/yubzen/parley/internal/router"
	"github.com/yubzen/parley/internal/session"
	"github.com/yubzen/parley/internal/store"
)

// Credentials is the token slot for the configured server.
type Credentials interface {
	IsAuthenticated() bool
	Token() (string, error)
	Store(token string) error
	Clear() error
}

// Options are the global flags plus seams for tests.
type Options struct {
	ConfigPath     string
	Verbose        bool
	NewCredentials func(account string) Credentials
}

func (o *Options) configPath() string {
	if o != nil && strings.TrimSpace(o.ConfigPath) != "" {
		return config.ExpandPath(o.ConfigPath)
	}
	return config.GetConfigPath()
}

func (o *Options) credentials(account string) Credentials {
	if o != nil && o.NewCredentials != nil {
		return o.NewCredentials(account)
	}
	return auth.NewGate(account)
}

// Runtime is everything a command needs, built from the config file.
type Runtime struct {
	Config     *config.Config
	ConfigPath string
	Log        zerolog.Logger
	Creds      Credentials
	Client     *backend.Client
	Router     *router.Router

	db      *store.DB
	closers []io.Closer
}

// Open loads the config and wires the collaborators. Interactive runs log to
// the configured file because the TUI owns the terminal; one-shot commands
// log warnings to stderr.
func Open(opts *Options, interactive bool) (*Runtime, error) {
	path := opts.configPath()
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Config: cfg, ConfigPath: path}
	if interactive {
		logCfg := cfg.Log
		if opts != nil && opts.Verbose {
			logCfg.Level = "debug"
		}
		logger, closer, err := observability.New(logCfg, nil)
		if err != nil {
			return nil, err
		}
		rt.Log = logger
		rt.closers = append(rt.closers, closer)
	} else {
		level := zerolog.WarnLevel
		if opts != nil && opts.Verbose {
			level = zerolog.DebugLevel
		}
		rt.Log = observability.Console(os.Stderr, level)
	}

	rt.Router, err = cfg.Router()
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Creds = opts.credentials(cfg.Account())
	rt.Client = backend.New(cfg.Server.BaseURL, rt.Creds, cfg.Server.RequestTimeout.Duration)
	rt.Client.Log = rt.Log
	rt.Log.Debug().Str("config", path).Str("base_url", rt.Router.BaseURL()).Msg("runtime ready")
	return rt, nil
}

// Store opens the local cache on first use.
func (rt *Runtime) Store() (*store.DB, error) {
	if rt.db != nil {
		return rt.db, nil
	}
	db, err := store.Connect(rt.Config.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	rt.db = db
	rt.closers = append(rt.closers, db)
	return db, nil
}

// NewSession builds a session on the configured model, or the model last
// chosen in the TUI. With a store, every session change is cached locally.
func (rt *Runtime) NewSession(ctx context.Context, db *store.DB) *session.Session {
	model := rt.Config.Models.Default
	if db != nil {
		if saved, err := db.SelectedModel(ctx); err != nil {
			rt.Log.Warn().Err(err).Msg("failed to read saved model")
		} else if saved != "" {
			model = saved
		}
	}
	opts := []session.Option{
		session.WithCredentials(rt.Creds),
		session.WithLogger(rt.Log),
		session.WithModel(model),
	}
	if db != nil {
		opts = append(opts, session.WithObserver(store.NewRecorder(db, rt.Log)))
	}
	return session.New(rt.Client, rt.Router, opts...)
}

// Logout tells the server, then forgets the token even if the server call
// failed.
func (rt *Runtime) Logout(ctx context.Context) error {
	if !rt.Creds.IsAuthenticated() {
		return nil
	}
	serverErr := rt.Client.Logout(ctx)
	if serverErr != nil {
		rt.Log.Warn().Err(serverErr).Msg("server logout failed; clearing local token anyway")
	}
	if err := rt.Creds.Clear(); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		_ = rt.closers[i].Close()
	}
	rt.closers = nil
}

var errNotSignedIn = errors.New("not signed in; run `parley login` first")

func (rt *Runtime) requireAuth() error {
	if !rt.Creds.IsAuthenticated() {
		return errNotSignedIn
	}
	return nil
}
