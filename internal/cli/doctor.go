package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const doctorTimeout = 10 * time.Second

// HealthStatus is the outcome of one doctor check.
type HealthStatus struct {
	Name     string
	OK       bool
	Detail   string
	ErrorMsg string
}

type healthCheck struct {
	Name string
	Run  func(ctx context.Context) (string, error)
}

// checkAll runs every check concurrently and returns statuses in input
// order.
func checkAll(ctx context.Context, checks []healthCheck) []HealthStatus {
	statuses := make([]HealthStatus, len(checks))
	var g errgroup.Group
	for i, check := range checks {
		g.Go(func() error {
			detail, err := check.Run(ctx)
			status := HealthStatus{Name: check.Name, OK: err == nil, Detail: detail}
			if err != nil {
				status.ErrorMsg = err.Error()
			}
			statuses[i] = status
			return nil
		})
	}
	_ = g.Wait()
	return statuses
}

func NewDoctorCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check config, sign-in, server reachability and the local cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := Open(opts, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
			defer cancel()

			statuses := checkAll(ctx, rt.healthChecks())
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CHECK\tSTATUS\tDETAIL")
			failed := 0
			for _, s := range statuses {
				state, detail := "ok", s.Detail
				if !s.OK {
					state, detail = "FAIL", s.ErrorMsg
					failed++
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, state, detail)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
}

func (rt *Runtime) healthChecks() []healthCheck {
	return []healthCheck{
		{
			Name: "config",
			Run: func(context.Context) (string, error) {
				return fmt.Sprintf("%s (%d models)", rt.ConfigPath, len(rt.Router.Routes())), nil
			},
		},
		{
			Name: "sign-in",
			Run: func(ctx context.Context) (string, error) {
				if !rt.Creds.IsAuthenticated() {
					return "", errNotSignedIn
				}
				profile, err := rt.Client.Profile(ctx)
				if err != nil {
					return "", err
				}
				if profile == nil {
					return "", errors.New("stored token was rejected; run `parley login` again")
				}
				return profile.Username, nil
			},
		},
		{
			Name: "server",
			Run: func(ctx context.Context) (string, error) {
				if !rt.Creds.IsAuthenticated() {
					return "skipped until signed in", nil
				}
				started := time.Now()
				if _, err := rt.Client.Profile(ctx); err != nil {
					return "", err
				}
				return fmt.Sprintf("%s in %s", rt.Router.BaseURL(), time.Since(started).Round(time.Millisecond)), nil
			},
		},
		{
			Name: "cache",
			Run: func(context.Context) (string, error) {
				if _, err := rt.Store(); err != nil {
					return "", err
				}
				return rt.Config.DBPath(), nil
			},
		},
	}
}
