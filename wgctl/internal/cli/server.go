package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"wg-lifecycle/wgctl/internal/client"
)

func NewServerCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Show or change the server settings",
	}
	cmd.AddCommand(newServerShowCommand(opts), newServerUpdateCommand(opts))
	return cmd
}

func newServerShowCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			s, err := c.GetServer(cmd.Context())
			if err != nil {
				return err
			}
			printServer(cmd, s)
			return nil
		},
	}
}

func newServerUpdateCommand(opts *Options) *cobra.Command {
	var (
		endpointDNS, endpointIP        string
		preUp, postUp, preDown, postDn string
		publicPort                     uint16
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change endpoint, public port or hooks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch client.ServerPatch
			flags := cmd.Flags()
			str := func(name string, v *string) *string {
				if flags.Changed(name) {
					return v
				}
				return nil
			}
			patch.EndpointDNS = str("endpoint-dns", &endpointDNS)
			patch.EndpointIP = str("endpoint-ip", &endpointIP)
			patch.PreUp = str("pre-up", &preUp)
			patch.PostUp = str("post-up", &postUp)
			patch.PreDown = str("pre-down", &preDown)
			patch.PostDown = str("post-down", &postDn)
			if flags.Changed("public-port") {
				patch.PublicListenPort = &publicPort
			}

			c, err := opts.client()
			if err != nil {
				return err
			}
			s, err := c.UpdateServer(cmd.Context(), patch)
			if err != nil {
				return err
			}
			printServer(cmd, s)
			return nil
		},
	}

	cmd.Flags().StringVar(&endpointDNS, "endpoint-dns", "", "public DNS name of the server (empty clears it)")
	cmd.Flags().StringVar(&endpointIP, "endpoint-ip", "", "public IP of the server (empty clears it)")
	cmd.Flags().Uint16Var(&publicPort, "public-port", 0, "public UDP port")
	cmd.Flags().StringVar(&preUp, "pre-up", "", "command run before the interface comes up")
	cmd.Flags().StringVar(&postUp, "post-up", "", "command run after the interface comes up")
	cmd.Flags().StringVar(&preDown, "pre-down", "", "command run before the interface goes down")
	cmd.Flags().StringVar(&postDn, "post-down", "", "command run after the interface goes down")

	return cmd
}

func printServer(cmd *cobra.Command, s client.Server) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Interface:    %s\n", s.InterfaceName)
	fmt.Fprintf(out, "Address:      %s (%s)\n", s.IP, s.Network)
	fmt.Fprintf(out, "Listen port:  %d\n", s.ListenPort)
	fmt.Fprintf(out, "Endpoint DNS: %s\n", s.EndpointDNS)
	fmt.Fprintf(out, "Endpoint IP:  %s\n", s.EndpointIP)
	fmt.Fprintf(out, "Public port:  %d\n", s.PublicListenPort)
	fmt.Fprintf(out, "Public key:   %s\n", s.PublicKey)
	fmt.Fprintf(out, "PreUp:        %s\n", s.PreUp)
	fmt.Fprintf(out, "PostUp:       %s\n", s.PostUp)
	fmt.Fprintf(out, "PreDown:      %s\n", s.PreDown)
	fmt.Fprintf(out, "PostDown:     %s\n", s.PostDown)
}
