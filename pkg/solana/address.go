package solana

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"math"

	"github.com/jdgcs/ed25519/edwards25519"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	maxSeeds      = 16
	maxSeedLength = 32

	pdaMarker = "ProgramDerivedAddress"
)

var (
	ErrTooManySeeds          = newConstraintError("too many seeds")
	ErrMaxSeedLengthExceeded = newConstraintError("max seed length exceeded")
	ErrInvalidPublicKeyLen   = newConstraintError("public key must be 32 bytes")

	ErrInvalidPublicKey = errors.New("invalid public key")
	ErrIllegalOwner     = newConstraintError("owner may not be a program derived address marker")
)

var (
	programHashCtor = sha256.New
)

// CreateProgramAddress mirrors the implementation of the Solana SDK's CreateProgramAddress.
//
// ProgramAddresses are public keys that _do not_ lie on the ed25519 curve to ensure that
// there is no associated private key. In the event that the program and seed parameters
// result in a valid public key, ErrInvalidPublicKey is returned.
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L158
func CreateProgramAddress(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, error) {
	if len(program) != ed25519.PublicKeySize {
		return nil, ErrInvalidPublicKeyLen
	}
	if len(seeds) > maxSeeds {
		return nil, ErrTooManySeeds
	}

	h := programHashCtor()
	for _, s := range seeds {
		if len(s) > maxSeedLength {
			return nil, ErrMaxSeedLengthExceeded
		}

		if _, err := h.Write(s); err != nil {
			return nil, errors.Wrap(err, "failed to hash seed")
		}
	}

	for _, v := range [][]byte{program, []byte(pdaMarker)} {
		if _, err := h.Write(v); err != nil {
			return nil, errors.Wrap(err, "failed to hash seed")
		}
	}

	var pub [32]byte
	copy(pub[:], h.Sum(nil))

	// Following the Solana SDK, the candidate is rejected if it decompresses
	// to a valid edwards point.
	//
	// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L182-L187
	if IsOnCurve(pub[:]) {
		return nil, ErrInvalidPublicKey
	}

	return pub[:], nil
}

// FindProgramAddressAndBump mirrors the implementation of the Solana SDK's
// FindProgramAddress. It returns the address and bump seed.
//
// The bump is searched from 255 down to 0 inclusive. If every candidate lies
// on the curve, ErrDerivationExhausted is returned.
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L234
func FindProgramAddressAndBump(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, uint8, error) {
	// The bump occupies one seed slot.
	if len(seeds) >= maxSeeds {
		return nil, 0, ErrTooManySeeds
	}

	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := math.MaxUint8; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{uint8(bump)}

		pub, err := CreateProgramAddress(program, withBump...)
		if err == nil {
			return pub, uint8(bump), nil
		}
		if err != ErrInvalidPublicKey {
			return nil, 0, err
		}
	}

	logrus.StandardLogger().WithFields(logrus.Fields{
		"type":    "solana/address",
		"program": base58.Encode(program),
		"seeds":   len(seeds),
	}).Error("program address derivation exhausted every bump")

	return nil, 0, ErrDerivationExhausted
}

// FindProgramAddress mirrors the implementation of the Solana SDK's FindProgramAddress.
// It only returns the address.
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L234
func FindProgramAddress(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, error) {
	pub, _, err := FindProgramAddressAndBump(program, seeds...)
	return pub, err
}

// CreateWithSeed derives an address from base, seed and owner, as
// sha256(base || seed || owner). Unlike program addresses the result may lie
// on the curve; only base can sign for it.
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L199
func CreateWithSeed(base ed25519.PublicKey, seed string, owner ed25519.PublicKey) (ed25519.PublicKey, error) {
	if len(base) != ed25519.PublicKeySize || len(owner) != ed25519.PublicKeySize {
		return nil, ErrInvalidPublicKeyLen
	}
	if len(seed) > maxSeedLength {
		return nil, ErrMaxSeedLengthExceeded
	}
	if bytes.HasSuffix(owner, []byte(pdaMarker)) {
		return nil, ErrIllegalOwner
	}

	h := sha256.New()
	h.Write(base)
	h.Write([]byte(seed))
	h.Write(owner)
	return h.Sum(nil), nil
}

// IsOnCurve reports whether pub decompresses to a valid ed25519 point, ie.
// whether a private key can exist for it.
//
// The edwards25519.ExtendedGroupElement is internal to golang.org/x/crypto,
// so the deprecated open source copy is used for the point decoding.
func IsOnCurve(pub []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}

	var key [32]byte
	copy(key[:], pub)

	var A edwards25519.ExtendedGroupElement
	return A.FromBytes(&key)
}

// ParsePublicKey decodes a base58 encoded 32 byte address.
func ParsePublicKey(s string) (ed25519.PublicKey, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid base58 address %q", s)
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, ErrInvalidPublicKeyLen
	}
	return b, nil
}

// MustParsePublicKey is ParsePublicKey for package level constants.
func MustParsePublicKey(s string) ed25519.PublicKey {
	pub, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return pub
}
