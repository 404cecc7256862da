package main

import (
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/code-payments/prereq-client/pkg/app"
	"github.com/code-payments/prereq-client/pkg/keypair"
	"github.com/code-payments/prereq-client/pkg/solana"
	"github.com/code-payments/prereq-client/pkg/tasks"
)

// deps are the collaborators commands run against.
type deps struct {
	newClient func(app.Config) solana.Client
	keys      keypair.Provider
}

func defaultDeps() deps {
	return deps{
		newClient: app.Config.NewSolanaClient,
		keys:      keypair.NewFileProvider(""),
	}
}

// cli is the state shared by every command of one invocation. config is
// populated by the root command's PersistentPreRunE.
type cli struct {
	deps
	out        io.Writer
	configPath string
	output     string
	config     app.Config
}

func newRootCmd(out io.Writer, d deps) *cobra.Command {
	c := &cli{deps: d, out: out}

	root := &cobra.Command{
		Use:   "prereq",
		Short: "Solana prerequisite client",
		Long:  "Generate and convert keypairs, move devnet funds and enroll with the prerequisite program.",

		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config, err := app.Load(c.configPath, cmd.Flags())
			if err != nil {
				return err
			}
			app.ConfigureLogger(config)
			c.config = config

			switch c.output {
			case "text", "json":
				return nil
			}
			return solana.NewInputConstraintError("invalid --output " + c.output + " (use json|text)")
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "prereq.yaml", "Path to an optional YAML config file")
	flags.StringVarP(&c.output, "output", "o", "text", "Output format: json|text")
	flags.String("log-level", "", "Log level (trace, debug, info, warn, error)")
	flags.String("log-format", "", "Log format: json|text")
	flags.String("rpc-endpoint", "", "Solana JSON-RPC endpoint")
	flags.String("commitment", "", "Commitment to confirm at: processed|confirmed|finalized")
	flags.String("message-version", "", "Transaction message version: legacy|v0")
	flags.String("keypair-path", "", "Wallet enrolled with the prerequisite program")
	flags.String("dev-keypair-path", "", "Throwaway wallet funded by airdrops")

	root.AddCommand(
		c.keygenCmd(),
		c.base58ToWalletCmd(),
		c.walletToBase58Cmd(),
		c.verifyKeypairCmd(),
		c.airdropCmd(),
		c.balanceCmd(),
		c.transferCmd(),
		c.drainCmd(),
		c.enrollCmd(),
		c.updateCmd(),
		c.submitCmd("submit-ts", "ts"),
		c.submitCmd("submit-rs", "rs"),
		c.statusCmd(),
		c.pdaCmd(),
		c.idlCmd(),
	)

	return root
}

func (c *cli) service() (*tasks.Service, error) {
	commitment, err := c.config.ParseCommitment()
	if err != nil {
		return nil, err
	}
	version, err := c.config.ParseMessageVersion()
	if err != nil {
		return nil, err
	}
	prereqConfig, err := c.config.Prereq()
	if err != nil {
		return nil, err
	}

	return tasks.New(c.newClient(c.config), c.keys, prereqConfig, tasks.Conf{
		Commitment:     commitment,
		MessageVersion: version,
		Cluster:        c.config.Cluster(),
	}), nil
}

// walletRef picks the enrolled wallet when main is set, the dev wallet
// otherwise.
func (c *cli) walletRef(main bool) (string, error) {
	ref := c.config.DevKeypairPath
	if main {
		ref = c.config.KeypairPath
	}
	if ref == "" {
		return "", errors.Wrap(keypair.ErrKeyNotFound, "no keypair path configured")
	}
	return ref, nil
}
