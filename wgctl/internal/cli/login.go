package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"wg-lifecycle/wgctl/internal/client"
)

func NewLoginCommand(opts *Options) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Read the admin password from stdin and print a bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			password := strings.TrimRight(line, "\r\n")
			if password == "" {
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				return errors.New("password must not be empty")
			}

			token, err := client.New(opts.baseURL(), "").Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "admin", "admin user name")

	return cmd
}
