package testutil

import (
	"crypto/ed25519"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func GenerateSolanaKeypair(t *testing.T) ed25519.PrivateKey {
	_, p, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return p
}

func GenerateSolanaKeys(t *testing.T, n int) []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, n)
	for i := 0; i < n; i++ {
		p, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		keys[i] = p
	}
	return keys
}

// WriteWallet writes key to dir/name in the Solana CLI keypair format and
// returns the path.
func WriteWallet(t *testing.T, dir, name string, key ed25519.PrivateKey) string {
	path := filepath.Join(dir, name)

	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}

	data, err := json.Marshal(ints)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))

	return path
}
