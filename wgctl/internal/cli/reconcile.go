package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func NewReconcileCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Ask the server to run a reconciliation pass now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			res, err := c.Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Added:              %s\n", joinOrDash(res.Added))
			fmt.Fprintf(out, "Removed:            %s\n", joinOrDash(res.Removed))
			fmt.Fprintf(out, "Account changes:    %d\n", res.AccountChanges)
			fmt.Fprintf(out, "Connection changes: %d\n", res.ConnectionChanges)
			fmt.Fprintf(out, "Saved:              %t\n", res.Saved)
			for _, f := range res.Failures {
				fmt.Fprintf(out, "Failure:            %s\n", f)
			}
			if res.SaveError != "" {
				fmt.Fprintf(out, "Save error:         %s\n", res.SaveError)
			}
			return nil
		},
	}
}

func NewPassesCommand(opts *Options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "passes",
		Short: "List recent reconciliation passes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			passes, err := c.ListPasses(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tDURATION\tADDED\tREMOVED\tACCOUNT\tCONNECTION\tSAVED\tFAILURES")
			for _, p := range passes {
				fmt.Fprintf(w, "%s\t%dms\t%d\t%d\t%d\t%d\t%t\t%s\n",
					p.StartedAt.UTC().Format(dateLayout), p.DurationMillis, p.Added, p.Removed,
					p.AccountChanges, p.ConnectionChanges, p.Saved, dashIfEmpty(p.Failures))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of passes to show")

	return cmd
}

func joinOrDash(keys []string) string {
	if len(keys) == 0 {
		return "-"
	}
	return strings.Join(keys, ", ")
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
