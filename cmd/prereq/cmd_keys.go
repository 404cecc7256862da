package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/code-payments/prereq-client/pkg/keypair"
)

type keypairOutput struct {
	Address string `json:"address"`
	Wallet  []int  `json:"wallet"`
	Path    string `json:"path,omitempty"`
}

func newKeypairOutput(kp *keypair.Keypair) keypairOutput {
	wallet := make([]int, len(kp.PrivateKey))
	for i, b := range kp.PrivateKey {
		wallet[i] = int(b)
	}
	return keypairOutput{Address: kp.Address(), Wallet: wallet}
}

func (c *cli) keygenCmd() *cobra.Command {
	var prefix, out string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new keypair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := keypair.Grind(prefix)
			if err != nil {
				return err
			}

			result := newKeypairOutput(kp)
			lines := []string{"You've generated a new Solana wallet: " + kp.Address()}
			if out != "" {
				if err := keypair.Save(out, kp); err != nil {
					return err
				}
				result.Path = out
				lines = append(lines, "Saved to "+out)
			} else {
				lines = append(lines, "To save your wallet, copy and paste the following into a JSON file:", string(kp.MarshalWallet()))
			}

			return c.print(result, lines...)
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "Grind for an address starting with this base58 prefix (up to 5 characters)")
	cmd.Flags().StringVar(&out, "out", "", "Write the keypair to this file instead of printing it")
	return cmd
}

func (c *cli) base58ToWalletCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "base58-to-wallet <base58 secret key>",
		Short: "Convert a base58 secret key, as exported by wallets, to a byte array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := keypair.FromBase58(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			return c.print(newKeypairOutput(kp), string(kp.MarshalWallet()))
		},
	}
}

func (c *cli) walletToBase58Cmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wallet-to-base58 <byte array>",
		Short: "Convert a wallet byte array to a base58 secret key",
		Long:  "Convert a wallet byte array such as [34,46,...] to a base58 secret key. Brackets are optional and bytes may be separated by commas or spaces.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := keypair.ParseWallet(strings.Join(args, " "))
			if err != nil {
				return err
			}

			result := struct {
				Address string `json:"address"`
				Base58  string `json:"base58"`
			}{kp.Address(), kp.ToBase58()}
			return c.print(result, kp.ToBase58())
		},
	}
}

func (c *cli) verifyKeypairCmd() *cobra.Command {
	var main bool

	cmd := &cobra.Command{
		Use:   "verify-keypair",
		Short: "Sign and verify a message with a keypair file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := c.walletRef(main)
			if err != nil {
				return err
			}
			kp, err := c.keys.Load(cmd.Context(), ref)
			if err != nil {
				return err
			}

			sig, ok := kp.SignAndVerify()
			result := struct {
				Address   string `json:"address"`
				Signature string `json:"signature"`
				Verified  bool   `json:"verified"`
			}{kp.Address(), sig.String(), ok}

			verdict := "Signature verified for " + kp.Address()
			if !ok {
				verdict = "Signature verification FAILED for " + kp.Address()
			}
			return c.print(result, verdict, sig.String())
		},
	}

	cmd.Flags().BoolVar(&main, "main", false, "Use the enrolled wallet instead of the dev wallet")
	return cmd
}
