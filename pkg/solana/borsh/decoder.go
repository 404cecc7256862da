package borsh

import (
	"crypto/ed25519"

	bin "github.com/gagliardetto/binary"
	"github.com/pkg/errors"
)

// Decoder reads back a payload produced by Encode, or an account's data.
type Decoder struct {
	dec *bin.Decoder
}

func NewDecoder(data []byte) *Decoder {
	return &Decoder{dec: bin.NewBorshDecoder(data)}
}

// Discriminator reads the leading tag.
func (d *Decoder) Discriminator() (disc Discriminator, err error) {
	b, err := d.dec.ReadNBytes(DiscriminatorSize)
	if err != nil {
		return disc, errors.Wrap(err, "failed to read discriminator")
	}
	copy(disc[:], b)
	return disc, nil
}

// Expect reads the leading tag and checks it against expected.
func (d *Decoder) Expect(expected Discriminator) error {
	actual, err := d.Discriminator()
	if err != nil {
		return err
	}
	if actual != expected {
		return errors.Errorf("unexpected discriminator %s, expected %s", actual, expected)
	}
	return nil
}

func (d *Decoder) U8() (uint8, error) {
	v, err := d.dec.ReadUint8()
	return v, errors.Wrap(err, "failed to read u8")
}

func (d *Decoder) U16() (uint16, error) {
	v, err := d.dec.ReadUint16(bin.LE)
	return v, errors.Wrap(err, "failed to read u16")
}

func (d *Decoder) U32() (uint32, error) {
	v, err := d.dec.ReadUint32(bin.LE)
	return v, errors.Wrap(err, "failed to read u32")
}

func (d *Decoder) U64() (uint64, error) {
	v, err := d.dec.ReadUint64(bin.LE)
	return v, errors.Wrap(err, "failed to read u64")
}

func (d *Decoder) I64() (int64, error) {
	v, err := d.dec.ReadInt64(bin.LE)
	return v, errors.Wrap(err, "failed to read i64")
}

func (d *Decoder) Bool() (bool, error) {
	v, err := d.dec.ReadBool()
	return v, errors.Wrap(err, "failed to read bool")
}

func (d *Decoder) String() (string, error) {
	v, err := d.dec.ReadString()
	return v, errors.Wrap(err, "failed to read string")
}

func (d *Decoder) Bytes() ([]byte, error) {
	v, err := d.dec.ReadByteSlice()
	return v, errors.Wrap(err, "failed to read bytes")
}

func (d *Decoder) PublicKey() (ed25519.PublicKey, error) {
	b, err := d.dec.ReadNBytes(ed25519.PublicKeySize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read public key")
	}
	key := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(key, b)
	return key, nil
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return d.dec.Remaining()
}
