package app

import (
	"crypto/ed25519"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/code-payments/prereq-client/pkg/solana"
	"github.com/code-payments/prereq-client/pkg/solana/prereq"
)

// Config is the configuration shared by every command.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	RPCEndpoint          string        `mapstructure:"rpc_endpoint"`
	RPCTimeout           time.Duration `mapstructure:"rpc_timeout"`
	RPCRequestsPerSecond float64       `mapstructure:"rpc_requests_per_second"`
	// RPCHeaders are sent with every RPC request, e.g. an API key for an
	// authenticated provider. They can only be set from the config file.
	RPCHeaders map[string]string `mapstructure:"rpc_headers"`
	Commitment           string        `mapstructure:"commitment"`
	MessageVersion       string        `mapstructure:"message_version"`

	ConfirmPollLimit    uint          `mapstructure:"confirm_poll_limit"`
	ConfirmPollInterval time.Duration `mapstructure:"confirm_poll_interval"`

	// ExplorerCluster overrides the cluster derived from RPCEndpoint in
	// explorer links.
	ExplorerCluster string `mapstructure:"explorer_cluster"`

	// KeypairPath is the enrolled wallet; DevKeypairPath is the throwaway
	// wallet funded by airdrops.
	KeypairPath    string `mapstructure:"keypair_path"`
	DevKeypairPath string `mapstructure:"dev_keypair_path"`

	RecipientAddress string `mapstructure:"recipient_address"`
	TransferLamports uint64 `mapstructure:"transfer_lamports"`
	AirdropLamports  uint64 `mapstructure:"airdrop_lamports"`
	GithubUsername   string `mapstructure:"github_username"`

	PrereqProgram        string `mapstructure:"prereq_program"`
	PrereqCollection     string `mapstructure:"prereq_collection"`
	PrereqMplCoreProgram string `mapstructure:"prereq_mpl_core_program"`
}

const lamportsPerSol = 1_000_000_000

var defaultConfig = Config{
	LogLevel:  "info",
	LogFormat: "text",

	RPCEndpoint:    string(solana.EnvironmentDev),
	RPCTimeout:     solana.DefaultTimeout,
	Commitment:     "confirmed",
	MessageVersion: "legacy",

	ConfirmPollLimit:    solana.DefaultConfirmationPollLimit,
	ConfirmPollInterval: solana.PollRate,

	KeypairPath:    "Turbin3-wallet.json",
	DevKeypairPath: "dev-wallet.json",

	TransferLamports: lamportsPerSol / 10,
	AirdropLamports:  2 * lamportsPerSol,

	PrereqProgram:        "TRBZyQHB3m68FGeVsqTK39Wm4xejadjVhP5MAZaKWDM",
	PrereqCollection:     "5ebsp5RChCGK7ssRZMVMufgVZhd2kFbNaotcZ5UvytN2",
	PrereqMplCoreProgram: "CoREENxT6tW1HoK8ypY1SxRMZTcVPm7R94rH4PZNhX7d",
}

var envBindings = map[string]string{
	"log_level":  "LOG_LEVEL",
	"log_format": "LOG_FORMAT",

	"rpc_endpoint":            "RPC_ENDPOINT",
	"rpc_timeout":             "RPC_TIMEOUT",
	"rpc_requests_per_second": "RPC_REQUESTS_PER_SECOND",
	"commitment":              "COMMITMENT",
	"message_version":         "MESSAGE_VERSION",

	"confirm_poll_limit":    "CONFIRM_POLL_LIMIT",
	"confirm_poll_interval": "CONFIRM_POLL_INTERVAL",

	"explorer_cluster": "EXPLORER_CLUSTER",

	"keypair_path":     "KEYPAIR_PATH",
	"dev_keypair_path": "DEV_KEYPAIR_PATH",

	"recipient_address": "RECIPIENT_ADDRESS",
	"transfer_lamports": "TRANSFER_LAMPORTS",
	"airdrop_lamports":  "AIRDROP_LAMPORTS",
	"github_username":   "GITHUB_USERNAME",

	"prereq_program":          "PREREQ_PROGRAM",
	"prereq_collection":       "PREREQ_COLLECTION",
	"prereq_mpl_core_program": "PREREQ_MPL_CORE_PROGRAM",
}

func bindEnv(v *viper.Viper) {
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
}

// Cluster returns the explorer cluster for links to this configuration's
// transactions.
func (c Config) Cluster() string {
	if c.ExplorerCluster != "" {
		return c.ExplorerCluster
	}
	return solana.Environment(c.RPCEndpoint).Cluster()
}

func (c Config) ParseCommitment() (solana.Commitment, error) {
	return solana.ParseCommitment(c.Commitment)
}

func (c Config) ParseMessageVersion() (solana.MessageVersion, error) {
	switch c.MessageVersion {
	case "legacy", "":
		return solana.MessageVersionLegacy, nil
	case "v0", "0":
		return solana.MessageVersion0, nil
	}
	return 0, solana.NewInputConstraintError("unknown message version " + c.MessageVersion)
}

// Recipient parses RecipientAddress.
func (c Config) Recipient() (ed25519.PublicKey, error) {
	if c.RecipientAddress == "" {
		return nil, solana.NewInputConstraintError("recipient_address is not configured")
	}
	return solana.ParsePublicKey(c.RecipientAddress)
}

// Prereq returns the program bindings configuration with any address
// overrides applied.
func (c Config) Prereq() (prereq.Config, error) {
	cfg := prereq.DefaultConfig()

	for _, override := range []struct {
		name  string
		value string
		dst   *ed25519.PublicKey
	}{
		{"prereq_program", c.PrereqProgram, &cfg.Program},
		{"prereq_collection", c.PrereqCollection, &cfg.Collection},
		{"prereq_mpl_core_program", c.PrereqMplCoreProgram, &cfg.MplCoreProgram},
	} {
		if override.value == "" {
			continue
		}

		key, err := solana.ParsePublicKey(override.value)
		if err != nil {
			return cfg, errors.Wrapf(err, "invalid %s", override.name)
		}
		*override.dst = key
	}

	return cfg, nil
}

// NewSolanaClient returns an RPC client for the configured endpoint.
func (c Config) NewSolanaClient() solana.Client {
	return solana.New(
		c.RPCEndpoint,
		solana.WithTimeout(c.RPCTimeout),
		solana.WithRequestsPerSecond(c.RPCRequestsPerSecond),
		solana.WithConfirmationPolling(c.ConfirmPollLimit, c.ConfirmPollInterval),
		solana.WithHeaders(c.RPCHeaders),
	)
}
