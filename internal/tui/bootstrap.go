package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/yubzen/parley/internal/backend"
)

type bootstrapDoneMsg struct {
	Profile    *backend.Profile
	ProfileErr error
}

// bootstrapCmd loads the conversation list and the signed-in profile in
// parallel. Load failures reach the user as session events.
func (m *AppModel) bootstrapCmd() tea.Cmd {
	return func() tea.Msg {
		var (
			g       errgroup.Group
			profile *backend.Profile
			profErr error
		)
		g.Go(func() error {
			return m.session.Load(m.ctx)
		})
		if m.deps.Profiles != nil {
			g.Go(func() error {
				profile, profErr = m.deps.Profiles.Profile(m.ctx)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			m.log.Debug().Err(err).Msg("initial conversation load failed")
		}
		return bootstrapDoneMsg{Profile: profile, ProfileErr: profErr}
	}
}
