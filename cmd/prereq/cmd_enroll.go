package main

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"

	"github.com/code-payments/prereq-client/pkg/solana"
	"github.com/code-payments/prereq-client/pkg/solana/prereq"
)

func (c *cli) enrollCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enroll",
		Short: "Enroll the wallet with the prerequisite program",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			ref, err := c.walletRef(true)
			if err != nil {
				return err
			}

			result, err := svc.Enroll(cmd.Context(), ref, c.config.GithubUsername)
			if err != nil {
				return err
			}

			enrollment := base58.Encode(result.Enrollment)
			if result.AlreadyEnrolled {
				return c.print(
					struct {
						Enrollment      string `json:"enrollment"`
						AlreadyEnrolled bool   `json:"already_enrolled"`
					}{enrollment, true},
					"Already enrolled at "+enrollment,
				)
			}

			return c.printReceipt("Success! Enrolled at "+enrollment, *result.Receipt)
		},
	}

	cmd.Flags().String("github-username", "", "GitHub username to enroll with")
	return cmd
}

func (c *cli) updateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update the GitHub username of an enrollment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			ref, err := c.walletRef(true)
			if err != nil {
				return err
			}

			receipt, err := svc.Update(cmd.Context(), ref, c.config.GithubUsername)
			if err != nil {
				return err
			}
			return c.printReceipt("Success! Updated GitHub username to "+c.config.GithubUsername, receipt)
		},
	}

	cmd.Flags().String("github-username", "", "New GitHub username")
	return cmd
}

func (c *cli) submitCmd(use string, track prereq.Track) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Submit completion of the %s track", track),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			ref, err := c.walletRef(true)
			if err != nil {
				return err
			}

			result, err := svc.Submit(cmd.Context(), ref, track)
			if err != nil {
				return err
			}

			output := struct {
				receiptOutput
				Mint string `json:"mint"`
			}{newReceiptOutput(result.Receipt), base58.Encode(result.Mint)}

			return c.print(
				output,
				fmt.Sprintf("Success! Submitted the %s track, minted %s", track, output.Mint),
				"Check out your TX here:",
				result.ExplorerURL,
			)
		},
	}
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the wallet's enrollment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			ref, err := c.walletRef(true)
			if err != nil {
				return err
			}

			status, err := svc.Status(cmd.Context(), ref)
			if err != nil {
				return err
			}

			account := status.Account
			result := struct {
				Enrollment string `json:"enrollment"`
				User       string `json:"user"`
				Bump       uint8  `json:"bump"`
				PreReqTs   bool   `json:"pre_req_ts"`
				PreReqRs   bool   `json:"pre_req_rs"`
				Github     string `json:"github"`
			}{
				base58.Encode(status.Address),
				base58.Encode(account.User),
				account.Bump,
				account.PreReqTs,
				account.PreReqRs,
				account.Github,
			}

			return c.print(
				result,
				"Enrollment: "+result.Enrollment,
				"GitHub:     "+account.Github,
				fmt.Sprintf("TS track:   %t", account.PreReqTs),
				fmt.Sprintf("RS track:   %t", account.PreReqRs),
				solana.ExplorerAddressURL(result.Enrollment, c.config.Cluster()),
			)
		},
	}
}

func (c *cli) pdaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pda [address]",
		Short: "Derive the enrollment and collection authority addresses",
		Long:  "Derive the enrollment address of the given address, or of the enrolled wallet when none is given, and the collection authority.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prereqConfig, err := c.config.Prereq()
			if err != nil {
				return err
			}

			user, err := c.pdaUser(cmd, args)
			if err != nil {
				return err
			}

			enrollment, bump, err := prereqConfig.EnrollmentAddress(user)
			if err != nil {
				return err
			}
			authority, err := prereqConfig.CollectionAuthority()
			if err != nil {
				return err
			}

			result := struct {
				User                string `json:"user"`
				Enrollment          string `json:"enrollment"`
				Bump                uint8  `json:"bump"`
				CollectionAuthority string `json:"collection_authority"`
			}{base58.Encode(user), base58.Encode(enrollment), bump, base58.Encode(authority)}

			return c.print(
				result,
				fmt.Sprintf("Enrollment:           %s (bump %d)", result.Enrollment, bump),
				"Collection authority: "+result.CollectionAuthority,
			)
		},
	}
}

func (c *cli) pdaUser(cmd *cobra.Command, args []string) (ed25519.PublicKey, error) {
	if len(args) == 1 {
		return solana.ParsePublicKey(args[0])
	}

	ref, err := c.walletRef(true)
	if err != nil {
		return nil, err
	}
	kp, err := c.keys.Load(cmd.Context(), ref)
	if err != nil {
		return nil, err
	}
	return kp.PublicKey, nil
}
