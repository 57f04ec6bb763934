package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"wg-lifecycle/wg-server/internal/syncer"
)

func NewUpCommand(opts *Options) *cobra.Command {
	return ifaceCommand(opts, "up", "Create the interface and add every active client", (*syncer.Syncer).Up)
}

func NewDownCommand(opts *Options) *cobra.Command {
	return ifaceCommand(opts, "down", "Remove the interface", (*syncer.Syncer).Down)
}

func NewRebootCommand(opts *Options) *cobra.Command {
	return ifaceCommand(opts, "reboot", "Remove and recreate the interface", (*syncer.Syncer).Reboot)
}

func ifaceCommand(opts *Options, use, short string, action func(*syncer.Syncer, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := action(a.syncer, ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "interface %s %s\n", a.cfg.Interface, doneVerb(use))
			return nil
		},
	}
}

func doneVerb(use string) string {
	switch use {
	case "up":
		return "is up"
	case "down":
		return "is down"
	default:
		return "restarted"
	}
}
