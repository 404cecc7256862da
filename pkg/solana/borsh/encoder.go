// Package borsh encodes Anchor style instruction payloads: an 8 byte
// discriminator followed by borsh encoded arguments.
package borsh

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"math"

	bin "github.com/gagliardetto/binary"
	"github.com/pkg/errors"

	"github.com/code-payments/prereq-client/pkg/solana"
)

// DiscriminatorSize is the length of the tag prefixing every payload.
const DiscriminatorSize = 8

// ErrOversizedArgument is returned when a variable length argument does not
// fit a u32 length prefix.
var ErrOversizedArgument = solana.NewInputConstraintError("argument exceeds maximum encodable length")

// maxArgumentLength is a var so tests can exercise the limit without
// allocating 4GiB.
var maxArgumentLength uint64 = math.MaxUint32

// Discriminator selects the instruction (or account type) a payload is for.
type Discriminator [DiscriminatorSize]byte

func (d Discriminator) String() string {
	return hex.EncodeToString(d[:])
}

// InstructionDiscriminator returns the discriminator Anchor assigns to the
// instruction named name, i.e. sha256("global:<name>")[:8].
func InstructionDiscriminator(name string) Discriminator {
	return sighash("global", name)
}

// AccountDiscriminator returns the discriminator Anchor assigns to the account
// type named name, i.e. sha256("account:<name>")[:8].
func AccountDiscriminator(name string) Discriminator {
	return sighash("account", name)
}

func sighash(namespace, name string) (d Discriminator) {
	h := sha256.Sum256([]byte(namespace + ":" + name))
	copy(d[:], h[:DiscriminatorSize])
	return d
}

// Arg is a single typed instruction argument.
type Arg struct {
	kind   string
	length uint64
	write  func(*bin.Encoder) error
}

func (a Arg) String() string {
	return a.kind
}

func U8(v uint8) Arg {
	return Arg{kind: "u8", write: func(e *bin.Encoder) error { return e.WriteUint8(v) }}
}

func U16(v uint16) Arg {
	return Arg{kind: "u16", write: func(e *bin.Encoder) error { return e.WriteUint16(v, bin.LE) }}
}

func U32(v uint32) Arg {
	return Arg{kind: "u32", write: func(e *bin.Encoder) error { return e.WriteUint32(v, bin.LE) }}
}

func U64(v uint64) Arg {
	return Arg{kind: "u64", write: func(e *bin.Encoder) error { return e.WriteUint64(v, bin.LE) }}
}

func I64(v int64) Arg {
	return Arg{kind: "i64", write: func(e *bin.Encoder) error { return e.WriteInt64(v, bin.LE) }}
}

func Bool(v bool) Arg {
	return Arg{kind: "bool", write: func(e *bin.Encoder) error { return e.WriteBool(v) }}
}

// String encodes a u32 little-endian byte length followed by the raw UTF-8
// bytes.
func String(v string) Arg {
	return Arg{
		kind:   "string",
		length: uint64(len(v)),
		write:  func(e *bin.Encoder) error { return e.WriteString(v) },
	}
}

// Bytes encodes a u32 little-endian length followed by the raw bytes.
func Bytes(v []byte) Arg {
	return Arg{
		kind:   "bytes",
		length: uint64(len(v)),
		write:  func(e *bin.Encoder) error { return e.WriteBytes(v, true) },
	}
}

// PublicKey encodes the raw 32 bytes of an address, without a length prefix.
func PublicKey(v ed25519.PublicKey) Arg {
	return Arg{
		kind: "publicKey",
		write: func(e *bin.Encoder) error {
			if len(v) != ed25519.PublicKeySize {
				return solana.ErrInvalidPublicKeyLen
			}
			return e.WriteBytes(v, false)
		},
	}
}

// Encode returns the discriminator followed by each argument in order.
func Encode(discriminator Discriminator, args ...Arg) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, DiscriminatorSize+8*len(args)))
	buf.Write(discriminator[:])

	enc := bin.NewBorshEncoder(buf)
	for i, arg := range args {
		if arg.write == nil {
			return nil, errors.Errorf("argument %d is not initialized", i)
		}
		if arg.length > maxArgumentLength {
			return nil, errors.Wrapf(ErrOversizedArgument, "argument %d (%s) has length %d", i, arg.kind, arg.length)
		}

		if err := arg.write(enc); err != nil {
			return nil, errors.Wrapf(err, "failed to encode argument %d (%s)", i, arg.kind)
		}
	}

	return buf.Bytes(), nil
}
