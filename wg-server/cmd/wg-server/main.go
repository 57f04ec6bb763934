package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"wg-lifecycle/wg-server/internal/cli"
)

func main() {
	_ = godotenv.Load("wg-server/.env")
	_ = godotenv.Load(".env")

	opts := &cli.Options{}
	root := &cobra.Command{
		Use:   "wg-server",
		Short: "WireGuard server lifecycle daemon",
	}
	root.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to config file (default /etc/wg-server/config.yaml)")

	root.AddCommand(
		cli.NewServeCommand(opts),
		cli.NewReconcileCommand(opts),
		cli.NewUpCommand(opts),
		cli.NewDownCommand(opts),
		cli.NewRebootCommand(opts),
		cli.NewTokenCommand(opts),
		cli.NewHashPasswordCommand(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
