package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the parley command tree. With no subcommand it opens
// the chat TUI.
func NewRootCmd(opts *Options) *cobra.Command {
	if opts == nil {
		opts = &Options{}
	}
	rootCmd := &cobra.Command{
		Use:           "parley",
		Short:         "Terminal client for the multi-model chat service",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunChat(cmd, opts)
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "Config file (default $PARLEY_CONFIG or ~/.config/parley/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(
		NewLoginCmd(opts),
		NewSignupCmd(opts),
		NewLogoutCmd(opts),
		NewWhoamiCmd(opts),
		NewConversationsCmd(opts),
		NewModelsCmd(opts),
		NewSendCmd(opts),
		NewHistoryCmd(opts),
		NewExportCmd(opts),
		NewConfigCmd(opts),
		NewDoctorCmd(opts),
	)
	return rootCmd
}
