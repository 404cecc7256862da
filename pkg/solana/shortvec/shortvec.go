// Package shortvec implements the compact-u16 length encoding used by the
// Solana wire format for every variable length array in a message.
package shortvec

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

// MaxEncodedLen is the maximum number of bytes a compact-u16 can occupy.
const MaxEncodedLen = 3

var (
	ErrLengthTooLarge  = errors.Errorf("len exceeds %d", math.MaxUint16)
	ErrInvalidEncoding = errors.New("invalid compact-u16 encoding")
)

// AppendLen appends the compact-u16 encoding of n to dst.
func AppendLen(dst []byte, n int) ([]byte, error) {
	if n < 0 || n > math.MaxUint16 {
		return dst, ErrLengthTooLarge
	}

	v := uint16(n)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(dst, b), nil
		}
		dst = append(dst, b|0x80)
	}
}

// decodeLen reads a compact-u16 length from the front of b, returning the
// value and the number of bytes consumed.
func decodeLen(b []byte) (n int, consumed int, err error) {
	var v uint32
	for i := 0; i < len(b); i++ {
		if i == MaxEncodedLen {
			return 0, 0, ErrInvalidEncoding
		}

		v |= uint32(b[i]&0x7f) << (7 * uint(i))
		if b[i]&0x80 == 0 {
			if v > math.MaxUint16 {
				return 0, 0, ErrLengthTooLarge
			}
			return int(v), i + 1, nil
		}
	}
	return 0, 0, io.ErrUnexpectedEOF
}

// ReadLen reads a compact-u16 length from r one byte at a time.
func ReadLen(r io.ByteReader) (int, error) {
	var buf [MaxEncodedLen]byte
	for i := 0; i < MaxEncodedLen; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		buf[i] = b
		if b&0x80 == 0 {
			n, _, err := decodeLen(buf[:i+1])
			return n, err
		}
	}
	return 0, ErrInvalidEncoding
}
