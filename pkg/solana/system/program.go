// Package system builds and inspects instructions for the Solana system
// program.
package system

import (
	"bytes"
	"crypto/ed25519"

	bin "github.com/gagliardetto/binary"
	"github.com/pkg/errors"

	"github.com/code-payments/prereq-client/pkg/solana"
)

// ProgramKey is the address of the system program.
//
// https://explorer.solana.com/address/11111111111111111111111111111111
var ProgramKey = solana.MustParsePublicKey("11111111111111111111111111111111")

// Instruction tags are bincode u32 enum indexes.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L58-L88
const (
	commandCreateAccount uint32 = iota
	commandAssign
	commandTransfer
)

const transferDataSize = 4 + 8

// Transfer returns an instruction moving lamports from a system owned account.
//
//	0. [WRITE, SIGNER] Funding account
//	1. [WRITE] Recipient account
func Transfer(from, to ed25519.PublicKey, lamports uint64) solana.Instruction {
	buf := bytes.NewBuffer(make([]byte, 0, transferDataSize))
	enc := bin.NewBinEncoder(buf)

	// Writes to a bytes.Buffer do not fail.
	_ = enc.WriteUint32(commandTransfer, bin.LE)
	_ = enc.WriteUint64(lamports, bin.LE)

	return solana.NewInstruction(
		ProgramKey,
		buf.Bytes(),
		solana.NewAccountMeta(from, true),
		solana.NewAccountMeta(to, false),
	)
}

type DecompiledTransfer struct {
	From     ed25519.PublicKey
	To       ed25519.PublicKey
	Lamports uint64
}

// DecompileTransfer decodes the transfer at index in m. It returns
// solana.ErrIncorrectProgram or solana.ErrIncorrectInstruction when the
// instruction is something else.
func DecompileTransfer(m solana.Message, index int) (*DecompiledTransfer, error) {
	i, dec, err := instructionAt(m, index, commandTransfer)
	if err != nil {
		return nil, err
	}

	if len(i.Accounts) != 2 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}
	if len(i.Data) != transferDataSize {
		return nil, errors.Errorf("invalid instruction data size: %d", len(i.Data))
	}

	lamports, err := dec.ReadUint64(bin.LE)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read lamports")
	}

	return &DecompiledTransfer{
		From:     m.Accounts[i.Accounts[0]],
		To:       m.Accounts[i.Accounts[1]],
		Lamports: lamports,
	}, nil
}

// instructionAt returns the instruction at index along with a decoder
// positioned after its tag.
func instructionAt(m solana.Message, index int, command uint32) (solana.CompiledInstruction, *bin.Decoder, error) {
	if index < 0 || index >= len(m.Instructions) {
		return solana.CompiledInstruction{}, nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]
	if !bytes.Equal(m.Accounts[i.ProgramIndex], ProgramKey) {
		return i, nil, solana.ErrIncorrectProgram
	}

	dec := bin.NewBinDecoder(i.Data)
	tag, err := dec.ReadUint32(bin.LE)
	if err != nil || tag != command {
		return i, nil, solana.ErrIncorrectInstruction
	}

	return i, dec, nil
}
