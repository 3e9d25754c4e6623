package cmd

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"
)

// errUnhealthy is returned when a component reports a failure.
var errUnhealthy = errors.New("unhealthy")

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Initialize the session and report component health",
		Long: `Initialize the Gmail session once and print the component report:

  {"gmail_service": {"ok": true, "message": "Gmail service initialized"}}

Exits non-zero when any component is unhealthy.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func runHealth(ctx context.Context, out, logOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := newRuntime(ctx, logOut)
	if err != nil {
		return err
	}
	defer rt.close(context.Background())

	_ = rt.session.Init(ctx)
	report := rt.dispatcher.HealthCheck()
	if err := writeJSON(out, report); err != nil {
		return err
	}

	for _, status := range report {
		if !status.OK {
			return errUnhealthy
		}
	}
	return nil
}
