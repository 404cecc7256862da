package solana

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

const (
	// MaxTransactionSize taken from: https://github.com/solana-labs/solana/blob/39b3ac6a8d29e14faa1de73d8b46d390ad41797b/sdk/src/packet.rs#L9-L13
	MaxTransactionSize = 1232
)

var (
	ErrNoInstructions      = newConstraintError("transaction requires at least one instruction")
	ErrInvalidSigningKey   = newConstraintError("signing key must be 64 bytes")
	ErrTransactionTooLarge = newConstraintError(fmt.Sprintf("transaction exceeds %d bytes", MaxTransactionSize))
)

type Signature [ed25519.SignatureSize]byte
type Blockhash [sha256.Size]byte

func (s Signature) String() string {
	return base58.Encode(s[:])
}

func (b Blockhash) String() string {
	return base58.Encode(b[:])
}

type MessageVersion uint8

const (
	MessageVersionLegacy MessageVersion = iota
	MessageVersion0
)

type Header struct {
	NumSignatures     byte
	NumReadonlySigned byte
	NumReadOnly       byte
}

type MessageAddressTableLookup struct {
	PublicKey       ed25519.PublicKey
	WritableIndexes []byte
	ReadonlyIndexes []byte
}

type Message struct {
	version             MessageVersion
	Header              Header
	Accounts            []ed25519.PublicKey
	RecentBlockhash     Blockhash
	Instructions        []CompiledInstruction
	AddressTableLookups []MessageAddressTableLookup
}

func (m Message) Version() MessageVersion {
	return m.version
}

type Transaction struct {
	Signatures []Signature
	Message    Message
}

// MissingSignerError is returned when a required signer has no key available
// at build time. It matches ErrMissingSigner under errors.Is.
type MissingSignerError struct {
	Signers []ed25519.PublicKey
}

func (e *MissingSignerError) Error() string {
	addrs := make([]string, len(e.Signers))
	for i, s := range e.Signers {
		addrs[i] = base58.Encode(s)
	}
	return fmt.Sprintf("%s: %s", ErrMissingSigner.Error(), strings.Join(addrs, ", "))
}

func (e *MissingSignerError) Is(target error) bool {
	return target == ErrMissingSigner
}

// NewTransaction compiles a legacy transaction paying fees from payer. The
// returned transaction has no blockhash and zeroed signatures.
func NewTransaction(payer ed25519.PublicKey, instructions ...Instruction) Transaction {
	accounts := []AccountMeta{
		{
			PublicKey:  payer,
			IsSigner:   true,
			IsWritable: true,
			isPayer:    true,
		},
	}

	// Extract all of the unique accounts from the instructions.
	for _, i := range instructions {
		accounts = append(accounts, AccountMeta{
			PublicKey: i.Program,
			isProgram: true,
		})
		accounts = append(accounts, i.Accounts...)
	}

	// Sort the account meta's based on:
	//   1. Payer is always the first account / signer.
	//   2. All signers are before non-signers.
	//   3. Writable accounts before read-only accounts.
	//   4. Programs last
	accounts = filterUnique(accounts)
	sort.Sort(SortableAccountMeta(accounts))

	var m Message
	for _, account := range accounts {
		m.Accounts = append(m.Accounts, account.PublicKey)

		if account.IsSigner {
			m.Header.NumSignatures++

			if !account.IsWritable {
				m.Header.NumReadonlySigned++
			}
		} else if !account.IsWritable {
			m.Header.NumReadOnly++
		}
	}

	// Generate the compiled instruction, which uses indices instead
	// of raw account keys.
	for _, i := range instructions {
		c := CompiledInstruction{
			ProgramIndex: byte(indexOf(m.Accounts, i.Program)),
			Data:         i.Data,
		}

		for _, a := range i.Accounts {
			c.Accounts = append(c.Accounts, byte(indexOf(m.Accounts, a.PublicKey)))
		}

		m.Instructions = append(m.Instructions, c)
	}

	for i := range m.Accounts {
		if len(m.Accounts[i]) == 0 {
			m.Accounts[i] = make([]byte, ed25519.PublicKeySize)
		}
	}

	return Transaction{
		Signatures: make([]Signature, m.Header.NumSignatures),
		Message:    m,
	}
}

// BuildAndSign compiles a legacy transaction and signs it with every required
// signer. See BuildAndSignVersioned.
func BuildAndSign(instructions []Instruction, feePayer ed25519.PublicKey, blockhash Blockhash, signers ...ed25519.PrivateKey) (Transaction, error) {
	return BuildAndSignVersioned(MessageVersionLegacy, instructions, feePayer, blockhash, signers...)
}

// BuildAndSignVersioned compiles a transaction of the given message version
// and signs it.
//
// The fee payer and every account flagged as a signer must have a matching key
// in signers, otherwise a *MissingSignerError naming each absent signer is
// returned along with an empty transaction. Keys for accounts that are not
// required signers are ignored.
func BuildAndSignVersioned(version MessageVersion, instructions []Instruction, feePayer ed25519.PublicKey, blockhash Blockhash, signers ...ed25519.PrivateKey) (Transaction, error) {
	if len(instructions) == 0 {
		return Transaction{}, ErrNoInstructions
	}
	if len(feePayer) != ed25519.PublicKeySize {
		return Transaction{}, errors.Wrap(ErrInvalidAccountKey, "fee payer")
	}
	for _, s := range signers {
		if len(s) != ed25519.PrivateKeySize {
			return Transaction{}, ErrInvalidSigningKey
		}
	}

	tx := NewTransaction(feePayer, instructions...).WithMessageVersion(version)
	tx.SetBlockhash(blockhash)

	required := tx.Message.Accounts[:tx.Message.Header.NumSignatures]
	keys := make([]ed25519.PrivateKey, 0, len(required))
	var missing []ed25519.PublicKey
	for _, pub := range required {
		key, ok := findKey(signers, pub)
		if !ok {
			missing = append(missing, pub)
			continue
		}
		keys = append(keys, key)
	}
	if len(missing) > 0 {
		return Transaction{}, &MissingSignerError{Signers: missing}
	}

	if err := tx.Sign(keys...); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// WithMessageVersion returns a copy of the transaction encoded with the
// given message version. Signatures are reset since the signed bytes change.
func (t Transaction) WithMessageVersion(v MessageVersion) Transaction {
	if t.Message.version == v {
		return t
	}

	t.Message.version = v
	t.Signatures = make([]Signature, len(t.Signatures))
	return t
}

func (t *Transaction) Signature() []byte {
	return t.Signatures[0][:]
}

// SignatureOf returns the signature produced by pub, if pub is a signer.
func (t *Transaction) SignatureOf(pub ed25519.PublicKey) (Signature, bool) {
	index := indexOf(t.Message.Accounts, pub)
	if index < 0 || index >= len(t.Signatures) || index >= int(t.Message.Header.NumSignatures) {
		return Signature{}, false
	}
	return t.Signatures[index], true
}

// SignatureMap returns every signature keyed by the base58 address of its
// signer.
func (t *Transaction) SignatureMap() map[string]Signature {
	sigs := make(map[string]Signature, len(t.Signatures))
	for i, s := range t.Signatures {
		if i >= len(t.Message.Accounts) {
			break
		}
		sigs[base58.Encode(t.Message.Accounts[i])] = s
	}
	return sigs
}

// VerifySignatures reports whether every required signature is valid for the
// current message bytes.
func (t *Transaction) VerifySignatures() bool {
	if len(t.Signatures) != int(t.Message.Header.NumSignatures) || len(t.Signatures) > len(t.Message.Accounts) {
		return false
	}

	messageBytes := t.Message.Marshal()
	for i, s := range t.Signatures {
		if !ed25519.Verify(t.Message.Accounts[i], messageBytes, s[:]) {
			return false
		}
	}
	return true
}

// Validate checks the transaction is fully signed and fits in a packet.
func (t *Transaction) Validate() error {
	if len(t.Signatures) != int(t.Message.Header.NumSignatures) {
		return errors.Errorf("expected %d signatures, got %d", t.Message.Header.NumSignatures, len(t.Signatures))
	}
	for i, s := range t.Signatures {
		if s == (Signature{}) {
			return errors.Wrapf(&MissingSignerError{Signers: []ed25519.PublicKey{t.Message.Accounts[i]}}, "signature %d", i)
		}
	}

	if size := len(t.Marshal()); size > MaxTransactionSize {
		return errors.Wrapf(ErrTransactionTooLarge, "size %d", size)
	}
	return nil
}

func (t *Transaction) String() string {
	var sb strings.Builder
	sb.WriteString("Signatures:\n")
	for i, s := range t.Signatures {
		sb.WriteString(fmt.Sprintf("  %d: %s\n", i, base58.Encode(s[:])))
	}
	sb.WriteString("Message:\n")
	sb.WriteString(fmt.Sprintf("  Version: %s\n", t.Message.version.String()))
	sb.WriteString("  Header:\n")
	sb.WriteString(fmt.Sprintf("    NumSignatures: %d\n", t.Message.Header.NumSignatures))
	sb.WriteString(fmt.Sprintf("    NumReadOnly: %d\n", t.Message.Header.NumReadOnly))
	sb.WriteString(fmt.Sprintf("    NumReadOnlySigned: %d\n", t.Message.Header.NumReadonlySigned))
	sb.WriteString(fmt.Sprintf("  RecentBlockhash: %s\n", t.Message.RecentBlockhash))
	sb.WriteString("  Accounts:\n")
	for i, a := range t.Message.Accounts {
		sb.WriteString(fmt.Sprintf("    %d: %s\n", i, base58.Encode(a)))
	}
	sb.WriteString("  Instructions:\n")
	for i := range t.Message.Instructions {
		sb.WriteString(fmt.Sprintf("    %d:\n", i))
		sb.WriteString(fmt.Sprintf("      ProgramIndex: %d\n", t.Message.Instructions[i].ProgramIndex))
		sb.WriteString(fmt.Sprintf("      Accounts: %v\n", t.Message.Instructions[i].Accounts))
		sb.WriteString(fmt.Sprintf("      Data: %v\n", t.Message.Instructions[i].Data))
	}
	return sb.String()
}

// SetBlockhash sets the recent blockhash. Existing signatures become invalid.
func (t *Transaction) SetBlockhash(bh Blockhash) {
	t.Message.RecentBlockhash = bh
}

// Sign signs the message with each of the provided keys. Every key must
// belong to a signing account of the message.
func (t *Transaction) Sign(signers ...ed25519.PrivateKey) error {
	messageBytes := t.Message.Marshal()

	for _, s := range signers {
		pub := s.Public().(ed25519.PublicKey)
		index := indexOf(t.Message.Accounts, pub)
		if index < 0 {
			return errors.Errorf("signing account %s is not in the account list", base58.Encode(pub))
		}
		if index >= len(t.Signatures) {
			return errors.Errorf("signing account %s is not in the list of signers", base58.Encode(pub))
		}

		copy(t.Signatures[index][:], ed25519.Sign(s, messageBytes))
	}

	return nil
}

func findKey(keys []ed25519.PrivateKey, pub ed25519.PublicKey) (ed25519.PrivateKey, bool) {
	for _, k := range keys {
		if bytes.Equal(k.Public().(ed25519.PublicKey), pub) {
			return k, true
		}
	}
	return nil, false
}

func filterUnique(accounts []AccountMeta) []AccountMeta {
	filtered := make([]AccountMeta, 0, len(accounts))

	for i := range accounts {
		for j := range filtered {
			// If we've already seen the account before, then we should check to
			// see if we should promote any of the permissions.
			if bytes.Equal(accounts[i].PublicKey, filtered[j].PublicKey) {
				if accounts[i].IsSigner {
					filtered[j].IsSigner = true
				}
				if accounts[i].IsWritable {
					filtered[j].IsWritable = true
				}
				if accounts[i].isPayer {
					filtered[j].isPayer = true
				}

				goto next
			}
		}

		filtered = append(filtered, accounts[i])
	next:
	}

	return filtered
}

func indexOf(slice []ed25519.PublicKey, item ed25519.PublicKey) int {
	for i, val := range slice {
		if bytes.Equal(val, item) {
			return i
		}
	}

	return -1
}

func (v MessageVersion) String() string {
	switch v {
	case MessageVersionLegacy:
		return "legacy"
	case MessageVersion0:
		return "v0"
	}
	return "unknown"
}
