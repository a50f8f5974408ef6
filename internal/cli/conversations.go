package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yubzen/parley/internal/session"
)

func NewConversationsCmd(opts *Options) *cobra.Command {
	conversationsCmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv", "c"},
		Short:   "List, show and delete conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConversationList(cmd, opts)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List conversations, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConversationList(cmd, opts)
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a conversation's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := Open(opts, false)
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.requireAuth(); err != nil {
				return err
			}

			sess := rt.NewSession(cmd.Context(), cachedStore(rt))
			if err := sess.Select(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("load conversation %s: %w", args[0], err)
			}
			printTranscript(cmd, sess.Snapshot().Messages)
			return nil
		},
	}

	var yes bool
	deleteCmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a conversation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := Open(opts, false)
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.requireAuth(); err != nil {
				return err
			}

			if !yes {
				ok, err := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout()).confirm(fmt.Sprintf("Delete conversation %s?", args[0]))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
					return nil
				}
			}

			sess := rt.NewSession(cmd.Context(), cachedStore(rt))
			if err := sess.Remove(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("delete conversation %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted conversation %s\n", args[0])
			return nil
		},
	}
	deleteCmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	conversationsCmd.AddCommand(listCmd, showCmd, deleteCmd)
	return conversationsCmd
}

func runConversationList(cmd *cobra.Command, opts *Options) error {
	rt, err := Open(opts, false)
	if err != nil {
		return err
	}
	defer rt.Close()
	if err := rt.requireAuth(); err != nil {
		return err
	}

	sess := rt.NewSession(cmd.Context(), cachedStore(rt))
	if err := sess.Load(cmd.Context()); err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}
	convs := sess.Snapshot().Conversations
	if len(convs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No conversations yet.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tID\tSTARTED\tTITLE")
	for i, conv := range convs {
		started := "-"
		if !conv.StartedAt.IsZero() {
			started = conv.StartedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, conv.ID, started, conv.Title)
	}
	return w.Flush()
}

func printTranscript(cmd *cobra.Command, msgs []session.Message) {
	out := cmd.OutOrStdout()
	if len(msgs) == 0 {
		fmt.Fprintln(out, "(empty conversation)")
		return
	}
	for i, msg := range msgs {
		if i > 0 {
			fmt.Fprintln(out)
		}
		label := "you"
		if msg.Sender == session.SenderBot {
			label = "bot"
		}
		fmt.Fprintf(out, "%s: %s\n", label, strings.TrimSpace(msg.Text))
	}
}
