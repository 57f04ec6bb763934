package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"wg-lifecycle/wgctl/internal/client"
)

const dateLayout = "2006-01-02T15:04:05Z"

func NewClientsCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clients",
		Short: "Manage WireGuard clients",
	}
	cmd.AddCommand(
		newClientsListCommand(opts),
		newClientsGetCommand(opts),
		newClientsCreateCommand(opts),
		newClientsUpdateCommand(opts),
		newClientsRemoveCommand(opts),
	)
	return cmd
}

func newClientsListCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			clients, err := c.ListClients(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "UUID\tLOGIN\tIP\tADMIN\tACCOUNT\tCONNECTED")
			for _, cl := range clients {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", cl.UUID, cl.Login, cl.IP,
					onOff(cl.AdministrativeStatus), onOff(cl.AccountStatus), yesNo(cl.ConnectionStatus))
			}
			return w.Flush()
		},
	}
}

func newClientsGetCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			cl, err := c.GetClient(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printClient(cmd.OutOrStdout(), cl)
			return nil
		},
	}
}

type clientFlags struct {
	privateKey string
	publicKey  string
	login      string
	fullName   string
	ip         string
	enabled    bool
	release    string
	expiration string
	allowedIPs string
	dns        string
}

func newClientsCreateCommand(opts *Options) *cobra.Command {
	f := &clientFlags{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := client.NewClient{
				PrivateKey:           f.privateKey,
				PublicKey:            f.publicKey,
				Login:                f.login,
				FullName:             f.fullName,
				IP:                   f.ip,
				AdministrativeStatus: f.enabled,
				AllowedIPs:           f.allowedIPs,
				DNS:                  f.dns,
			}
			var err error
			if in.ReleaseDate, err = parseDate("release", f.release); err != nil {
				return err
			}
			if in.ExpirationDate, err = parseDate("expiration", f.expiration); err != nil {
				return err
			}

			c, err := opts.client()
			if err != nil {
				return err
			}
			cl, err := c.CreateClient(cmd.Context(), in)
			if err != nil {
				return err
			}
			printClient(cmd.OutOrStdout(), cl)
			return nil
		},
	}

	cmd.Flags().StringVar(&f.login, "login", "", "client login")
	cmd.Flags().StringVar(&f.fullName, "full-name", "", "client full name")
	cmd.Flags().StringVar(&f.ip, "ip", "", "client tunnel IP")
	cmd.Flags().StringVar(&f.allowedIPs, "allowed-ips", "", "comma-separated CIDRs routed to the client")
	cmd.Flags().StringVar(&f.dns, "dns", "", "DNS server for the client")
	cmd.Flags().StringVar(&f.privateKey, "private-key", "", "client private key (generated when both keys are empty)")
	cmd.Flags().StringVar(&f.publicKey, "public-key", "", "client public key")
	cmd.Flags().BoolVar(&f.enabled, "enabled", true, "administrative status")
	cmd.Flags().StringVar(&f.release, "release", "", "activation date ("+dateLayout+")")
	cmd.Flags().StringVar(&f.expiration, "expiration", "", "expiration date ("+dateLayout+")")
	cmd.MarkFlagRequired("login")
	cmd.MarkFlagRequired("ip")
	cmd.MarkFlagRequired("allowed-ips")

	return cmd
}

func newClientsUpdateCommand(opts *Options) *cobra.Command {
	f := &clientFlags{}

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change administrator-owned fields of a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch client.ClientPatch
			flags := cmd.Flags()
			if flags.Changed("enabled") {
				patch.AdministrativeStatus = &f.enabled
			}
			if flags.Changed("full-name") {
				patch.FullName = &f.fullName
			}
			if flags.Changed("allowed-ips") {
				patch.AllowedIPs = &f.allowedIPs
			}
			if flags.Changed("dns") {
				patch.DNS = &f.dns
			}
			var err error
			if patch.ReleaseDate, err = parseDate("release", f.release); err != nil {
				return err
			}
			if patch.ExpirationDate, err = parseDate("expiration", f.expiration); err != nil {
				return err
			}

			c, err := opts.client()
			if err != nil {
				return err
			}
			cl, err := c.UpdateClient(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			printClient(cmd.OutOrStdout(), cl)
			return nil
		},
	}

	cmd.Flags().BoolVar(&f.enabled, "enabled", true, "administrative status")
	cmd.Flags().StringVar(&f.fullName, "full-name", "", "client full name")
	cmd.Flags().StringVar(&f.allowedIPs, "allowed-ips", "", "comma-separated CIDRs routed to the client")
	cmd.Flags().StringVar(&f.dns, "dns", "", "DNS server for the client")
	cmd.Flags().StringVar(&f.release, "release", "", "activation date ("+dateLayout+")")
	cmd.Flags().StringVar(&f.expiration, "expiration", "", "expiration date ("+dateLayout+")")

	return cmd
}

func newClientsRemoveCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			if err := c.RemoveClient(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "client %s removed\n", args[0])
			return nil
		},
	}
}

func printClient(out io.Writer, c client.WGClient) {
	fmt.Fprintf(out, "UUID:        %s\n", c.UUID)
	fmt.Fprintf(out, "Login:       %s\n", c.Login)
	fmt.Fprintf(out, "Full name:   %s\n", c.FullName)
	fmt.Fprintf(out, "Public key:  %s\n", c.PublicKey)
	fmt.Fprintf(out, "IP:          %s\n", c.IP)
	fmt.Fprintf(out, "Allowed IPs: %s\n", c.AllowedIPs)
	fmt.Fprintf(out, "DNS:         %s\n", c.DNS)
	fmt.Fprintf(out, "Admin:       %s\n", onOff(c.AdministrativeStatus))
	fmt.Fprintf(out, "Account:     %s\n", onOff(c.AccountStatus))
	fmt.Fprintf(out, "Connected:   %s\n", yesNo(c.ConnectionStatus))
	fmt.Fprintf(out, "Created:     %s\n", c.CreationDate.UTC().Format(dateLayout))
	fmt.Fprintf(out, "Release:     %s\n", c.ReleaseDate.UTC().Format(dateLayout))
	fmt.Fprintf(out, "Expiration:  %s\n", c.ExpirationDate.UTC().Format(dateLayout))
}

func parseDate(name, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, fmt.Errorf("--%s must look like %s", name, dateLayout)
	}
	return &t, nil
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
