package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yubzen/parley/internal/session"
	"github.com/yubzen/parley/internal/store"
)

func NewSendCmd(opts *Options) *cobra.Command {
	var modelID, conversationID string
	cmd := &cobra.Command{
		Use:   "send [--model M] [--conversation ID] <text...>",
		Short: "Send one message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return errors.New("message is empty")
			}

			rt, err := Open(opts, false)
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.requireAuth(); err != nil {
				return err
			}

			ctx := cmd.Context()
			sess := rt.NewSession(ctx, nil)
			if modelID != "" {
				sess.SelectModel(modelID)
			}
			// Attached after the model switch so a one-off --model is not
			// remembered as the TUI's selection.
			if db := cachedStore(rt); db != nil {
				sess.Observe(store.NewRecorder(db, rt.Log))
			}
			if conversationID != "" {
				if err := sess.Select(ctx, conversationID); err != nil {
					return fmt.Errorf("open conversation %s: %w", conversationID, err)
				}
			}

			sendErr := sess.Send(ctx, text)
			if errors.Is(sendErr, session.ErrConversationCreate) {
				return sendErr
			}

			snap := sess.Snapshot()
			if snap.ActiveID != "" && conversationID == "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "conversation %s (%s)\n", snap.ActiveID, snap.Model)
			}
			if sendErr != nil {
				return sendErr
			}
			if n := len(snap.Messages); n > 0 && snap.Messages[n-1].Sender == session.SenderBot {
				last := snap.Messages[n-1].Text
				if failed, ok := strings.CutPrefix(last, session.ErrorPrefix); ok {
					return errors.New(failed)
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(last))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&modelID, "model", "m", "", "Model id (see `parley models`)")
	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "Continue an existing conversation")
	return cmd
}
