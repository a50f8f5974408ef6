package cli

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/yubzen/parley/internal/config"
	"github.com/yubzen/parley/internal/router"
	"github.com/yubzen/parley/internal/store"
	"github.com/yubzen/parley/internal/tui"
)

// RunChat opens the chat TUI. Edits to the config file's model table apply
// without a restart.
func RunChat(cmd *cobra.Command, opts *Options) error {
	rt, err := Open(opts, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	db := cachedStore(rt)
	sess := rt.NewSession(ctx, db)

	if _, err := config.Watch(ctx, rt.ConfigPath, func(cfg *config.Config, err error) {
		if err != nil {
			rt.Log.Warn().Err(err).Msg("config reload failed; keeping current model table")
			return
		}
		r, err := cfg.Router()
		if err != nil {
			rt.Log.Warn().Err(err).Msg("reloaded config has an invalid model table")
			return
		}
		if r.BaseURL() != rt.Router.BaseURL() {
			// The registry client keeps talking to the old server; the chat
			// endpoints must too.
			rt.Log.Warn().Str("base_url", r.BaseURL()).Msg("server.base_url changes apply on restart")
			if r, err = router.New(rt.Router.BaseURL(), r.Routes(), r.Default().ID); err != nil {
				rt.Log.Warn().Err(err).Msg("reloaded model table rejected")
				return
			}
		}
		sess.SetRouter(r)
	}); err != nil {
		rt.Log.Warn().Err(err).Msg("config watch disabled")
	}

	deps := tui.Deps{
		Session:      sess,
		Profiles:     rt.Client,
		Logout:       rt.Logout,
		HistoryLimit: rt.Config.State.InputHistoryLimit,
		Log:          rt.Log,
	}
	if db != nil {
		deps.History = db
	}

	app := tui.NewAppModel(ctx, deps)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}

// cachedStore opens the local cache, or returns nil and logs when it is
// unavailable; the cache is never required.
func cachedStore(rt *Runtime) *store.DB {
	db, err := rt.Store()
	if err != nil {
		rt.Log.Warn().Err(err).Msg("local cache unavailable")
		return nil
	}
	return db
}
