package solana

import (
	"bytes"
	"crypto/ed25519"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/code-payments/prereq-client/pkg/solana/shortvec"
)

// versionPrefix marks a versioned message. The low bits carry the version.
const versionPrefix = 0x80

// Marshal returns the wire encoding of the transaction: the signatures
// followed by the message.
func (t Transaction) Marshal() []byte {
	b, _ := shortvec.AppendLen(nil, len(t.Signatures))
	for _, s := range t.Signatures {
		b = append(b, s[:]...)
	}
	return append(b, t.Message.Marshal()...)
}

func (t *Transaction) Unmarshal(b []byte) error {
	r := &wireReader{buf: bytes.NewBuffer(b)}

	n, err := r.len("signatures")
	if err != nil {
		return err
	}

	t.Signatures = make([]Signature, n)
	for i := range t.Signatures {
		if err := r.fill(t.Signatures[i][:], "signature"); err != nil {
			return err
		}
	}

	return (&t.Message).Unmarshal(r.buf.Bytes())
}

// Marshal returns the wire encoding of the message. Messages of an unknown
// version cannot be built through this package, so encountering one panics.
func (m Message) Marshal() []byte {
	var b []byte

	switch m.version {
	case MessageVersionLegacy:
	case MessageVersion0:
		b = append(b, versionPrefix|byte(m.version-1))
	default:
		panic("unsupported message version")
	}

	b = append(b, m.Header.NumSignatures, m.Header.NumReadonlySigned, m.Header.NumReadOnly)

	b, _ = shortvec.AppendLen(b, len(m.Accounts))
	for _, a := range m.Accounts {
		b = append(b, a...)
	}

	b = append(b, m.RecentBlockhash[:]...)

	b, _ = shortvec.AppendLen(b, len(m.Instructions))
	for _, ixn := range m.Instructions {
		b = append(b, ixn.ProgramIndex)
		b = appendVec(b, ixn.Accounts)
		b = appendVec(b, ixn.Data)
	}

	if m.version == MessageVersionLegacy {
		return b
	}

	b, _ = shortvec.AppendLen(b, len(m.AddressTableLookups))
	for _, lookup := range m.AddressTableLookups {
		b = append(b, lookup.PublicKey...)
		b = appendVec(b, lookup.WritableIndexes)
		b = appendVec(b, lookup.ReadonlyIndexes)
	}

	return b
}

func (m *Message) Unmarshal(b []byte) (err error) {
	if len(b) == 0 {
		return io.ErrUnexpectedEOF
	}

	r := &wireReader{buf: bytes.NewBuffer(b)}

	m.version = MessageVersionLegacy
	if b[0]&versionPrefix != 0 {
		if v := b[0] &^ versionPrefix; v != 0 {
			return errors.Errorf("unsupported message version %d", v)
		}
		m.version = MessageVersion0
		_, _ = r.buf.ReadByte()
	}

	header := []*byte{&m.Header.NumSignatures, &m.Header.NumReadonlySigned, &m.Header.NumReadOnly}
	for _, field := range header {
		if *field, err = r.buf.ReadByte(); err != nil {
			return errors.Wrap(err, "failed to read message header")
		}
	}

	n, err := r.len("accounts")
	if err != nil {
		return err
	}
	m.Accounts = make([]ed25519.PublicKey, n)
	for i := range m.Accounts {
		if m.Accounts[i], err = r.key("account"); err != nil {
			return err
		}
	}

	if err := r.fill(m.RecentBlockhash[:], "recent blockhash"); err != nil {
		return err
	}

	if n, err = r.len("instructions"); err != nil {
		return err
	}
	// Account indexes of a v0 message may reach into the address table
	// lookups, which follow the instructions, so they are bounded afterwards.
	maxAccounts := len(m.Accounts)
	if m.version != MessageVersionLegacy {
		maxAccounts = math.MaxUint8 + 1
	}

	m.Instructions = make([]CompiledInstruction, n)
	for i := range m.Instructions {
		if m.Instructions[i], err = r.instruction(len(m.Accounts), maxAccounts); err != nil {
			return errors.Wrapf(err, "instruction %d", i)
		}
	}

	if m.version == MessageVersionLegacy {
		return nil
	}

	if n, err = r.len("address table lookups"); err != nil {
		return err
	}
	m.AddressTableLookups = nil
	for i := 0; i < n; i++ {
		var lookup MessageAddressTableLookup
		if lookup.PublicKey, err = r.key("address table"); err != nil {
			return err
		}
		if lookup.WritableIndexes, err = r.vec("writable indexes"); err != nil {
			return err
		}
		if lookup.ReadonlyIndexes, err = r.vec("readonly indexes"); err != nil {
			return err
		}
		m.AddressTableLookups = append(m.AddressTableLookups, lookup)
	}

	return m.checkAccountIndexes()
}

// checkAccountIndexes bounds instruction account indexes by the static
// accounts plus every address loaded through a lookup table.
func (m *Message) checkAccountIndexes() error {
	numAccounts := len(m.Accounts)
	for _, lookup := range m.AddressTableLookups {
		numAccounts += len(lookup.WritableIndexes) + len(lookup.ReadonlyIndexes)
	}

	for i, ixn := range m.Instructions {
		for _, index := range ixn.Accounts {
			if int(index) >= numAccounts {
				return errors.Errorf("instruction %d: account index out of range: %d", i, index)
			}
		}
	}
	return nil
}

func appendVec(dst, data []byte) []byte {
	dst, _ = shortvec.AppendLen(dst, len(data))
	return append(dst, data...)
}

// wireReader decodes the primitives of the message format, naming the field
// that failed in its errors.
type wireReader struct {
	buf *bytes.Buffer
}

func (r *wireReader) len(field string) (int, error) {
	n, err := shortvec.ReadLen(r.buf)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read %s length", field)
	}
	return n, nil
}

func (r *wireReader) fill(dst []byte, field string) error {
	if _, err := io.ReadFull(r.buf, dst); err != nil {
		return errors.Wrapf(err, "failed to read %s", field)
	}
	return nil
}

func (r *wireReader) key(field string) (ed25519.PublicKey, error) {
	key := make(ed25519.PublicKey, ed25519.PublicKeySize)
	return key, r.fill(key, field)
}

func (r *wireReader) vec(field string) ([]byte, error) {
	n, err := r.len(field)
	if err != nil {
		return nil, err
	}
	v := make([]byte, n)
	return v, r.fill(v, field)
}

// instruction reads a compiled instruction. The program must be a static
// account; other accounts are bounded by maxAccounts.
func (r *wireReader) instruction(numStatic, maxAccounts int) (c CompiledInstruction, err error) {
	if c.ProgramIndex, err = r.buf.ReadByte(); err != nil {
		return c, errors.Wrap(err, "failed to read program index")
	}
	if int(c.ProgramIndex) >= numStatic {
		return c, errors.Errorf("program index out of range: %d", c.ProgramIndex)
	}

	if c.Accounts, err = r.vec("account indexes"); err != nil {
		return c, err
	}
	for _, index := range c.Accounts {
		if int(index) >= maxAccounts {
			return c, errors.Errorf("account index out of range: %d", index)
		}
	}

	c.Data, err = r.vec("data")
	return c, err
}
