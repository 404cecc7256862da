package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/code-payments/prereq-client/pkg/tasks"
)

func (c *cli) airdropCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "airdrop",
		Short: "Request devnet SOL for the dev wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			ref, err := c.walletRef(false)
			if err != nil {
				return err
			}

			receipt, err := svc.Airdrop(cmd.Context(), ref, c.config.AirdropLamports)
			if err != nil {
				return err
			}
			return c.printReceipt(fmt.Sprintf("Success! Airdropped %s SOL", tasks.FormatSol(c.config.AirdropLamports)), receipt)
		},
	}

	cmd.Flags().Uint64("airdrop-lamports", 0, "Lamports to request")
	return cmd
}

func (c *cli) balanceCmd() *cobra.Command {
	var main bool

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show a wallet's balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			ref, err := c.walletRef(main)
			if err != nil {
				return err
			}

			report, err := svc.Balance(cmd.Context(), ref)
			if err != nil {
				return err
			}

			result := struct {
				Address           string `json:"address"`
				Lamports          uint64 `json:"lamports"`
				Sol               string `json:"sol"`
				RentExemptMinimum uint64 `json:"rent_exempt_minimum"`
			}{report.Address, report.Lamports, tasks.FormatSol(report.Lamports), report.RentExemptMinimum}

			return c.print(
				result,
				report.Address,
				fmt.Sprintf("Balance: %d lamports (%s SOL)", report.Lamports, tasks.FormatSol(report.Lamports)),
				fmt.Sprintf("Rent exempt minimum: %d lamports", report.RentExemptMinimum),
			)
		},
	}

	cmd.Flags().BoolVar(&main, "main", false, "Use the enrolled wallet instead of the dev wallet")
	return cmd
}

func (c *cli) transferCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Transfer a fixed amount from the dev wallet to the recipient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			ref, err := c.walletRef(false)
			if err != nil {
				return err
			}
			to, err := c.config.Recipient()
			if err != nil {
				return err
			}

			receipt, err := svc.Transfer(cmd.Context(), ref, to, c.config.TransferLamports)
			if err != nil {
				return err
			}
			return c.printReceipt(fmt.Sprintf("Success! Transferred %s SOL", tasks.FormatSol(c.config.TransferLamports)), receipt)
		},
	}

	cmd.Flags().String("recipient-address", "", "Address receiving the transfer")
	cmd.Flags().Uint64("transfer-lamports", 0, "Lamports to transfer")
	return cmd
}

func (c *cli) drainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Transfer the dev wallet's entire balance, less the fee, to the recipient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			ref, err := c.walletRef(false)
			if err != nil {
				return err
			}
			to, err := c.config.Recipient()
			if err != nil {
				return err
			}

			receipt, err := svc.Drain(cmd.Context(), ref, to)
			if err != nil {
				return err
			}
			return c.printReceipt("Success! Drained the dev wallet", receipt)
		},
	}

	cmd.Flags().String("recipient-address", "", "Address receiving the balance")
	return cmd
}
