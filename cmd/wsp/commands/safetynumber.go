package commands

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"wsp/internal/crypto"
	"wsp/internal/domain"
)

func safetyNumberCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "safety-number <peer-hex-pubkey>",
		Short: "Print the out-of-band verification code for a peer's public key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			idsvc, err := loadIdentityService()
			if err != nil {
				return err
			}
			id, err := idsvc.LoadIdentity(passphrase)
			if err != nil {
				return err
			}

			raw, err := hex.DecodeString(args[0])
			if err != nil || len(raw) != len(domain.PublicKey{}) {
				return fmt.Errorf("peer must be a %d-byte hex public key", len(domain.PublicKey{}))
			}
			var peer domain.PublicKey
			copy(peer[:], raw)

			sn := crypto.SafetyNumber(id.Pub, peer)
			fmt.Printf("%s\n%s\n", sn.Digits, sn.Emoji)
			return nil
		},
	}
}
