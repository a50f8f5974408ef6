package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yubzen/parley/internal/backend"
)

func NewLoginCmd(opts *Options) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := Open(opts, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			if email, err = p.valueOrPrompt(email, "Email: ", false); err != nil {
				return err
			}
			if password, err = p.valueOrPrompt(password, "Password: ", true); err != nil {
				return err
			}

			token, err := rt.Client.Login(cmd.Context(), strings.TrimSpace(email), password)
			if err != nil {
				return err
			}
			if err := rt.Creds.Store(token); err != nil {
				return fmt.Errorf("store token: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in to %s\n", rt.Config.Account())
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when omitted)")
	return cmd
}

func NewSignupCmd(opts *Options) *cobra.Command {
	var reg backend.Registration
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := Open(opts, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			if reg.Username, err = p.valueOrPrompt(reg.Username, "Username: ", false); err != nil {
				return err
			}
			if reg.Email, err = p.valueOrPrompt(reg.Email, "Email: ", false); err != nil {
				return err
			}
			if reg.Password1, err = p.valueOrPrompt(reg.Password1, "Password: ", true); err != nil {
				return err
			}
			if reg.Password2 == "" {
				if reg.Password2, err = p.valueOrPrompt("", "Confirm password: ", true); err != nil {
					return err
				}
			}

			token, err := rt.Client.Register(cmd.Context(), reg)
			if err != nil {
				return err
			}
			if err := rt.Creds.Store(token); err != nil {
				return fmt.Errorf("store token: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account %s created and signed in\n", reg.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&reg.Username, "username", "", "Username")
	cmd.Flags().StringVar(&reg.Email, "email", "", "Email")
	cmd.Flags().StringVar(&reg.Password1, "password", "", "Password (prompted when omitted)")
	cmd.Flags().StringVar(&reg.Password2, "password-confirm", "", "Password confirmation (prompted when omitted)")
	return cmd
}

func NewLogoutCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := Open(opts, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			if !rt.Creds.IsAuthenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
				return nil
			}
			if err := rt.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func NewWhoamiCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := Open(opts, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			profile, err := rt.Client.Profile(cmd.Context())
			if err != nil {
				return err
			}
			if profile == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", profile.Username, profile.Email)
			return nil
		},
	}
}
