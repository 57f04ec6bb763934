package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"wg-lifecycle/wgctl/internal/cli"
)

func main() {
	_ = godotenv.Load(".env")

	opts := &cli.Options{}
	root := &cobra.Command{
		Use:   "wgctl",
		Short: "Admin client for wg-server",
	}
	root.PersistentFlags().StringVar(&opts.URL, "url", "", "admin API base URL (default $WGCTL_URL or "+cli.DefaultURL+")")
	root.PersistentFlags().StringVar(&opts.Token, "token", "", "bearer token (default $WGCTL_TOKEN)")

	root.AddCommand(
		cli.NewClientsCommand(opts),
		cli.NewServerCommand(opts),
		cli.NewReconcileCommand(opts),
		cli.NewPassesCommand(opts),
		cli.NewKeygenCommand(),
		cli.NewLoginCommand(opts),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
