package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func NewModelsCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the chat models and the endpoints that serve them",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := Open(opts, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			selected := ""
			if db := cachedStore(rt); db != nil {
				selected, _ = db.SelectedModel(cmd.Context())
			}
			def := rt.Router.Default().ID

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "\tID\tLABEL\tENDPOINT\tHISTORY\tALIASES")
			for _, route := range rt.Router.Routes() {
				var marks []string
				if route.ID == def {
					marks = append(marks, "default")
				}
				if selected != "" && rt.Router.Canonical(selected) == route.ID {
					marks = append(marks, "selected")
				}
				marker := ""
				if len(marks) > 0 {
					marker = "*"
				}
				aliases := strings.Join(route.Aliases, ",")
				if aliases == "" {
					aliases = "-"
				}
				label := route.Label
				if len(marks) > 0 {
					label += " (" + strings.Join(marks, ", ") + ")"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", marker, route.ID, label, route.Path, route.History, aliases)
			}
			return w.Flush()
		},
	}
}
