package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yubzen/parley/internal/redact"
	"github.com/yubzen/parley/internal/store"
)

func NewExportCmd(opts *Options) *cobra.Command {
	var (
		format, outPath string
		redactSecrets   bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export cached transcripts to JSON or YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(strings.TrimSpace(format))
			if format != "json" && format != "yaml" && format != "yml" {
				return fmt.Errorf("unsupported format %q (want json or yaml)", format)
			}

			rt, err := Open(opts, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			db, err := rt.Store()
			if err != nil {
				return err
			}
			transcripts, err := db.Transcripts(cmd.Context())
			if err != nil {
				return fmt.Errorf("read transcripts: %w", err)
			}
			if redactSecrets {
				for i := range transcripts {
					for j := range transcripts[i].Messages {
						transcripts[i].Messages[j].Text = redact.Clean(transcripts[i].Messages[j].Text)
					}
				}
			}
			bundle := store.NewExportBundle(rt.Router.BaseURL(), transcripts)

			var out io.Writer = cmd.OutOrStdout()
			if outPath == "-" {
				outPath = ""
			}
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			if err := store.WriteExport(out, format, bundle); err != nil {
				return err
			}
			if outPath != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d conversation(s) to %s\n", len(bundle.Conversations), outPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or yaml")
	cmd.Flags().BoolVar(&redactSecrets, "redact", false, "Mask API keys and tokens pasted into messages")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout)")
	return cmd
}
