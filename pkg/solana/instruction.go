package solana

import (
	"bytes"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

var (
	ErrIncorrectProgram     = errors.New("incorrect program")
	ErrIncorrectInstruction = errors.New("incorrect instruction")

	ErrInvalidProgram         = newConstraintError("invalid program address")
	ErrInvalidAccountKey      = newConstraintError("invalid account address")
	ErrConflictingAccountMeta = newConstraintError("account repeated with conflicting permissions")
)

// AccountMeta represents the account information required
// for building transactions.
type AccountMeta struct {
	PublicKey  ed25519.PublicKey
	IsSigner   bool
	IsWritable bool
	isPayer    bool
	isProgram  bool
}

// NewAccountMeta creates a new AccountMeta representing a writable
// account.
func NewAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{
		PublicKey:  pub,
		IsSigner:   isSigner,
		IsWritable: true,
	}
}

// NewReadonlyAccountMeta creates a new AccountMeta representing a readonly
// account.
func NewReadonlyAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{
		PublicKey:  pub,
		IsSigner:   isSigner,
		IsWritable: false,
	}
}

func (a AccountMeta) String() string {
	var flags string
	if a.IsWritable {
		flags += "w"
	} else {
		flags += "r"
	}
	if a.IsSigner {
		flags += "s"
	}
	return base58.Encode(a.PublicKey) + ":" + flags
}

// SortableAccountMeta is a sortable []AccountMeta based on the solana transaction
// account sorting rules.
//
// Reference: https://docs.solana.com/transaction#account-addresses-format
type SortableAccountMeta []AccountMeta

// Len is the number of elements in the collection.
func (s SortableAccountMeta) Len() int {
	return len(s)
}

// Less reports whether the element with
// index i should sort before the element with index j.
func (s SortableAccountMeta) Less(i int, j int) bool {
	if s[i].isPayer != s[j].isPayer {
		return s[i].isPayer
	}
	if s[i].isProgram != s[j].isProgram {
		return !s[i].isProgram
	}

	if s[i].IsSigner != s[j].IsSigner {
		return s[i].IsSigner
	}
	if s[i].IsWritable != s[j].IsWritable {
		return s[i].IsWritable
	}

	return bytes.Compare(s[i].PublicKey, s[j].PublicKey) < 0
}

// Swap swaps the elements with indexes i and j.
func (s SortableAccountMeta) Swap(i int, j int) {
	s[i], s[j] = s[j], s[i]
}

// Instruction represents a transaction instruction.
type Instruction struct {
	Program  ed25519.PublicKey
	Accounts []AccountMeta
	Data     []byte
}

// NewInstruction creates a new instruction without validating its inputs.
// Program bindings with static account lists use it directly.
func NewInstruction(program ed25519.PublicKey, data []byte, accounts ...AccountMeta) Instruction {
	return Instruction{
		Program:  program,
		Data:     data,
		Accounts: accounts,
	}
}

// AssembleInstruction validates and copies its inputs into an Instruction.
//
// Accounts keep the order they are given in, since the program reads them
// positionally. An address may repeat only with identical permissions.
func AssembleInstruction(program ed25519.PublicKey, data []byte, accounts ...AccountMeta) (Instruction, error) {
	if len(program) != ed25519.PublicKeySize {
		return Instruction{}, ErrInvalidProgram
	}

	copied := make([]AccountMeta, len(accounts))
	for i, a := range accounts {
		if len(a.PublicKey) != ed25519.PublicKeySize {
			return Instruction{}, errors.Wrapf(ErrInvalidAccountKey, "account %d", i)
		}

		for _, prev := range copied[:i] {
			if !bytes.Equal(prev.PublicKey, a.PublicKey) {
				continue
			}
			if prev.IsSigner != a.IsSigner || prev.IsWritable != a.IsWritable {
				return Instruction{}, errors.Wrapf(ErrConflictingAccountMeta, "account %d (%s)", i, base58.Encode(a.PublicKey))
			}
		}

		copied[i] = AccountMeta{
			PublicKey:  append(ed25519.PublicKey(nil), a.PublicKey...),
			IsSigner:   a.IsSigner,
			IsWritable: a.IsWritable,
		}
	}

	return Instruction{
		Program:  append(ed25519.PublicKey(nil), program...),
		Accounts: copied,
		Data:     append([]byte(nil), data...),
	}, nil
}

// RequiredSigners returns the unique addresses that must sign any
// transaction carrying the instruction, in account order.
func (i Instruction) RequiredSigners() []ed25519.PublicKey {
	var signers []ed25519.PublicKey
	for _, a := range i.Accounts {
		if a.IsSigner && indexOf(signers, a.PublicKey) < 0 {
			signers = append(signers, a.PublicKey)
		}
	}
	return signers
}

// CompiledInstruction represents an instruction that has been compiled into a transaction.
type CompiledInstruction struct {
	ProgramIndex byte
	Accounts     []byte
	Data         []byte
}
