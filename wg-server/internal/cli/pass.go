package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

func NewReconcileCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run a single reconciliation pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, true)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := a.syncer.Pass(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Added:              %s\n", list(res.Peers.Added))
			fmt.Fprintf(out, "Removed:            %s\n", list(res.Peers.Removed))
			fmt.Fprintf(out, "Account changes:    %d\n", res.AccountChanges)
			fmt.Fprintf(out, "Connection changes: %d\n", res.ConnectionChanges)
			fmt.Fprintf(out, "Saved:              %t\n", res.Saved)
			for _, f := range res.Failures() {
				fmt.Fprintf(out, "Failure:            %s\n", f)
			}
			if res.SaveErr != nil {
				return res.SaveErr
			}
			if res.Degraded() {
				return fmt.Errorf("pass completed with %d failures", len(res.Failures()))
			}
			return nil
		},
	}
}

func list(keys []string) string {
	if len(keys) == 0 {
		return "-"
	}
	return strings.Join(keys, ", ")
}
