// Package keypair generates, converts and loads Solana signing keys.
package keypair

import (
	"crypto/ed25519"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/prereq-client/pkg/solana"
)

// VerifyMessage is signed by SignAndVerify to prove control of a keypair.
const VerifyMessage = "I verify my Solana Keypair!"

var (
	// ErrKeyNotFound is returned when key material is missing or malformed.
	ErrKeyNotFound = solana.ErrKeyNotFound

	ErrInvalidPrefixLength = solana.NewInputConstraintError("invalid prefix length")
)

// Keypair is an ed25519 signing key and its address.
type Keypair struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

func Generate() (*Keypair, error) {
	return Grind("")
}

// Grind generates keypairs until one's base58 address starts with prefix.
// Every extra character multiplies the expected work by 58.
func Grind(prefix string) (*Keypair, error) {
	if len(prefix) > 5 {
		return nil, ErrInvalidPrefixLength
	}
	if _, err := base58.Decode(prefix); prefix != "" && err != nil {
		return nil, solana.NewInputConstraintError("prefix is not valid base58")
	}

	for {
		pub, priv, err := ed25519.GenerateKey(nil)
		if err != nil {
			return nil, errors.Wrap(err, "error generating private key")
		}

		if strings.HasPrefix(base58.Encode(pub), prefix) {
			return &Keypair{PublicKey: pub, PrivateKey: priv}, nil
		}
	}
}

// FromBytes accepts the 64 byte secret key layout: seed followed by address.
func FromBytes(b []byte) (*Keypair, error) {
	if len(b) != ed25519.PrivateKeySize {
		return nil, errors.Wrapf(ErrKeyNotFound, "secret key must be %d bytes, got %d", ed25519.PrivateKeySize, len(b))
	}

	priv := make(ed25519.PrivateKey, ed25519.PrivateKeySize)
	copy(priv, b)

	// The trailing half must match the address derived from the seed.
	derived := ed25519.NewKeyFromSeed(priv.Seed())
	if !derived.Equal(priv) {
		return nil, errors.Wrap(ErrKeyNotFound, "secret key does not match its public half")
	}

	return &Keypair{
		PublicKey:  priv.Public().(ed25519.PublicKey),
		PrivateKey: priv,
	}, nil
}

// FromBase58 decodes a base58 encoded 64 byte secret key, as exported by
// browser wallets.
func FromBase58(s string) (*Keypair, error) {
	b, err := base58.Decode(strings.TrimSpace(s))
	if err != nil {
		return nil, errors.Wrap(ErrKeyNotFound, "secret key is not valid base58")
	}
	return FromBytes(b)
}

// ParseWallet decodes a wallet byte array such as "[12, 34, ...]". Brackets
// are optional and bytes may be separated by commas or whitespace.
func ParseWallet(s string) (*Keypair, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})

	b := make([]byte, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(f, 10, 8)
		if err != nil {
			return nil, errors.Wrapf(ErrKeyNotFound, "invalid wallet byte %q", f)
		}
		b = append(b, byte(v))
	}

	return FromBytes(b)
}

func (k *Keypair) Address() string {
	return base58.Encode(k.PublicKey)
}

// ToBase58 encodes the 64 byte secret key.
func (k *Keypair) ToBase58() string {
	return base58.Encode(k.PrivateKey)
}

// MarshalWallet returns the secret key as a JSON byte array, the format used by
// the Solana CLI for keypair files.
func (k *Keypair) MarshalWallet() []byte {
	ints := make([]int, len(k.PrivateKey))
	for i, b := range k.PrivateKey {
		ints[i] = int(b)
	}

	// Marshalling a slice of ints cannot fail.
	out, _ := json.Marshal(ints)
	return out
}

func (k *Keypair) Sign(message []byte) solana.Signature {
	var sig solana.Signature
	copy(sig[:], ed25519.Sign(k.PrivateKey, message))
	return sig
}

// SignAndVerify signs VerifyMessage and checks the signature against the
// public key.
func (k *Keypair) SignAndVerify() (solana.Signature, bool) {
	sig := k.Sign([]byte(VerifyMessage))
	return sig, ed25519.Verify(k.PublicKey, []byte(VerifyMessage), sig[:])
}
