package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"wg-lifecycle/wg-server/internal/auth"
)

func NewTokenCommand(opts *Options) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if cfg.API.TokenSecret == "" {
				return errors.New("api.token_secret is not configured")
			}
			iss, err := auth.NewIssuer(cfg.API.TokenSecret)
			if err != nil {
				return err
			}
			token, err := iss.Issue(subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "admin", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTTL, "token lifetime")

	return cmd
}
