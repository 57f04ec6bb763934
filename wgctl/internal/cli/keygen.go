package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

func NewKeygenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a WireGuard key pair for a new client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := wgtypes.GeneratePrivateKey()
			if err != nil {
				return fmt.Errorf("generate key: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "private_key: %s\n", key.String())
			fmt.Fprintf(out, "public_key:  %s\n", key.PublicKey().String())
			return nil
		},
	}
}
