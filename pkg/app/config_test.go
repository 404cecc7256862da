package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/prereq-client/pkg/solana"
	"github.com/code-payments/prereq-client/pkg/solana/prereq"
)

func TestLoad_Defaults(t *testing.T) {
	config, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.NoError(t, err)
	assert.Equal(t, defaultConfig, config)

	assert.Equal(t, "devnet", config.Cluster())
	assert.EqualValues(t, 100_000_000, config.TransferLamports)
	assert.EqualValues(t, 2_000_000_000, config.AirdropLamports)

	commitment, err := config.ParseCommitment()
	require.NoError(t, err)
	assert.Equal(t, solana.CommitmentConfirmed, commitment)

	version, err := config.ParseMessageVersion()
	require.NoError(t, err)
	assert.Equal(t, solana.MessageVersionLegacy, version)

	cfg, err := config.Prereq()
	require.NoError(t, err)
	assert.Equal(t, prereq.DefaultConfig(), cfg)
}

func TestLoad_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
rpc_endpoint: http://localhost:8899
rpc_timeout: 5s
github_username: from-file
message_version: v0
rpc_headers:
  x-api-key: secret
`), 0600))

	t.Setenv("GITHUB_USERNAME", "from-env")
	t.Setenv("TRANSFER_LAMPORTS", "12345")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("keypair-path", "", "")
	flags.String("rpc-endpoint", "", "")
	flags.String("unrelated", "", "")
	require.NoError(t, flags.Parse([]string{"--keypair-path", "/tmp/wallet.json"}))

	config, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, 5*time.Second, config.RPCTimeout)
	assert.Equal(t, map[string]string{"x-api-key": "secret"}, config.RPCHeaders)
	assert.Equal(t, "from-env", config.GithubUsername)
	assert.EqualValues(t, 12345, config.TransferLamports)
	assert.Equal(t, "/tmp/wallet.json", config.KeypairPath)

	// Unset flags don't override lower precedence sources.
	assert.Equal(t, "http://localhost:8899", config.RPCEndpoint)
	assert.Equal(t, "custom", config.Cluster())

	version, err := config.ParseMessageVersion()
	require.NoError(t, err)
	assert.Equal(t, solana.MessageVersion0, version)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: [unterminated"), 0600))

	_, err := Load(path, nil)
	assert.Error(t, err)
}

func TestConfig_Validation(t *testing.T) {
	config := defaultConfig

	_, err := config.Recipient()
	assert.Equal(t, solana.KindInputConstraint, solana.KindOf(err))

	config.RecipientAddress = "GffKpKRd1ts7kGoEtkJDK84bkufz9itmQfKkcEKLsTCT"
	recipient, err := config.Recipient()
	require.NoError(t, err)
	assert.Len(t, recipient, 32)

	config.Commitment = "eventually"
	_, err = config.ParseCommitment()
	assert.Equal(t, solana.KindInputConstraint, solana.KindOf(err))

	config.MessageVersion = "v1"
	_, err = config.ParseMessageVersion()
	assert.Equal(t, solana.KindInputConstraint, solana.KindOf(err))

	config.PrereqCollection = "not-an-address"
	_, err = config.Prereq()
	assert.Error(t, err)

	config.ExplorerCluster = "localnet"
	assert.Equal(t, "localnet", config.Cluster())
}

func TestConfigureLogger(t *testing.T) {
	defer func(level logrus.Level, formatter logrus.Formatter) {
		logrus.SetLevel(level)
		logrus.SetFormatter(formatter)
	}(logrus.GetLevel(), logrus.StandardLogger().Formatter)

	ConfigureLogger(Config{LogLevel: "WARN", LogFormat: "json"})
	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logrus.StandardLogger().Formatter)

	// Unknown levels leave the current level in place.
	ConfigureLogger(Config{LogLevel: "chatty"})
	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logrus.StandardLogger().Formatter)
}
