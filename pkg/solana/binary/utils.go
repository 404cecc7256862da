package binary

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrUnexpectedEnd is returned when variable length data runs past the buffer.
var ErrUnexpectedEnd = errors.New("unexpected end of data")

func PutKey32(dst []byte, src []byte, offset *int) {
	copy(dst, src)
	*offset += ed25519.PublicKeySize
}

func PutUint8(dst []byte, v uint8, offset *int) {
	dst[0] = v
	*offset += 1
}

func PutBool(dst []byte, v bool, offset *int) {
	if v {
		dst[0] = 1
	} else {
		dst[0] = 0
	}
	*offset += 1
}

// PutString writes a u32 length prefixed string. dst must hold 4+len(v) bytes.
func PutString(dst []byte, v string, offset *int) {
	binary.LittleEndian.PutUint32(dst, uint32(len(v)))
	copy(dst[4:], v)
	*offset += 4 + len(v)
}

func GetKey32(src []byte, dst *ed25519.PublicKey, offset *int) {
	*dst = make([]byte, ed25519.PublicKeySize)
	copy(*dst, src)
	*offset += ed25519.PublicKeySize
}

func GetUint8(src []byte, dst *uint8, offset *int) {
	*dst = src[0]
	*offset += 1
}

// GetBool reads a single byte boolean. Values other than 0 and 1 are invalid.
func GetBool(src []byte, dst *bool, offset *int) error {
	switch src[0] {
	case 0:
		*dst = false
	case 1:
		*dst = true
	default:
		return errors.Errorf("invalid bool value: %d", src[0])
	}
	*offset += 1
	return nil
}

// GetString reads a u32 length prefixed string.
func GetString(src []byte, dst *string, offset *int) error {
	if len(src) < 4 {
		return ErrUnexpectedEnd
	}

	size := binary.LittleEndian.Uint32(src)
	if uint64(size) > uint64(len(src)-4) {
		return errors.Wrapf(ErrUnexpectedEnd, "string of length %d", size)
	}

	*dst = string(src[4 : 4+size])
	*offset += 4 + int(size)
	return nil
}
