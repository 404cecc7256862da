package borsh

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoder_RoundTrip(t *testing.T) {
	key, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	for _, github := range []string{"", "alice", "ユーザー", string(make([]byte, 300))} {
		data, err := Encode(initialize, String(github), U8(7), U16(513), U32(42), U64(1<<40), I64(-5), Bool(true), PublicKey(key), Bytes([]byte{1, 2, 3}))
		require.NoError(t, err)

		dec := NewDecoder(data)
		require.NoError(t, dec.Expect(initialize))

		s, err := dec.String()
		require.NoError(t, err)
		assert.Equal(t, github, s)

		u8, err := dec.U8()
		require.NoError(t, err)
		assert.EqualValues(t, 7, u8)

		u16, err := dec.U16()
		require.NoError(t, err)
		assert.EqualValues(t, 513, u16)

		u32, err := dec.U32()
		require.NoError(t, err)
		assert.EqualValues(t, 42, u32)

		u64, err := dec.U64()
		require.NoError(t, err)
		assert.EqualValues(t, 1<<40, u64)

		i64, err := dec.I64()
		require.NoError(t, err)
		assert.EqualValues(t, -5, i64)

		b, err := dec.Bool()
		require.NoError(t, err)
		assert.True(t, b)

		actualKey, err := dec.PublicKey()
		require.NoError(t, err)
		assert.Equal(t, key, actualKey)

		raw, err := dec.Bytes()
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3}, raw)

		assert.Zero(t, dec.Remaining())
	}
}

func TestDecoder_Errors(t *testing.T) {
	dec := NewDecoder([]byte{1, 2, 3})
	_, err := dec.Discriminator()
	assert.Error(t, err)

	data, err := Encode(initialize)
	require.NoError(t, err)
	assert.Error(t, NewDecoder(data).Expect(InstructionDiscriminator("update")))

	// Declared string length runs past the end.
	dec = NewDecoder([]byte{10, 0, 0, 0, 'a'})
	_, err = dec.String()
	assert.Error(t, err)

	dec = NewDecoder([]byte{1})
	_, err = dec.U16()
	assert.Error(t, err)

	dec = NewDecoder([]byte{1, 2, 3, 4})
	_, err = dec.I64()
	assert.Error(t, err)
}
