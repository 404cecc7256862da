package prereq

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/prereq-client/pkg/solana"
	"github.com/code-payments/prereq-client/pkg/solana/borsh"
)

// idlSeed is the seed Anchor combines with the program's signer address to
// locate the account holding the program's interface description.
const idlSeed = "anchor:idl"

// maxIDLSize bounds the decompressed IDL.
const maxIDLSize = 10 << 20

var (
	idlAccountDiscriminator = borsh.AccountDiscriminator("IdlAccount")

	ErrInvalidIDL = errors.New("invalid idl account")
)

// IDL is the interface description an Anchor program publishes on chain.
type IDL struct {
	Authority ed25519.PublicKey

	// JSON is the decompressed IDL document.
	JSON []byte

	Name    string
	Version string
}

// IDLAddress derives the program's IDL account:
// createWithSeed(findProgramAddress([], program), "anchor:idl", program).
func (c Config) IDLAddress() (ed25519.PublicKey, error) {
	base, err := solana.FindProgramAddress(c.Program)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive idl base address")
	}

	addr, err := solana.CreateWithSeed(base, idlSeed, c.Program)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive idl address")
	}
	return addr, nil
}

// DecodeIDL decodes the IDL account: discriminator, authority, then a u32
// length prefixed zlib stream of the JSON document.
func (c Config) DecodeIDL(info solana.AccountInfo) (*IDL, error) {
	if !bytes.Equal(info.Owner, c.Program) {
		return nil, errors.Wrapf(ErrInvalidIDL, "account not owned by program (owner %s)", base58.Encode(info.Owner))
	}

	dec := borsh.NewDecoder(info.Data)
	if err := dec.Expect(idlAccountDiscriminator); err != nil {
		return nil, errors.Wrap(ErrInvalidIDL, err.Error())
	}

	authority, err := dec.PublicKey()
	if err != nil {
		return nil, errors.Wrap(ErrInvalidIDL, err.Error())
	}
	compressed, err := dec.Bytes()
	if err != nil {
		return nil, errors.Wrap(ErrInvalidIDL, err.Error())
	}

	body, err := inflate(compressed)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidIDL, err.Error())
	}

	// Anchor 0.30 moved name and version under metadata.
	var header struct {
		Name     string `json:"name"`
		Version  string `json:"version"`
		Metadata struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(body, &header); err != nil {
		return nil, errors.Wrapf(ErrInvalidIDL, "idl is not json: %v", err)
	}

	idl := &IDL{
		Authority: authority,
		JSON:      body,
		Name:      header.Metadata.Name,
		Version:   header.Metadata.Version,
	}
	if idl.Name == "" {
		idl.Name = header.Name
	}
	if idl.Version == "" {
		idl.Version = header.Version
	}
	return idl, nil
}

func inflate(compressed []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open zlib stream")
	}
	defer r.Close()

	body, err := io.ReadAll(io.LimitReader(r, maxIDLSize+1))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decompress idl")
	}
	if len(body) > maxIDLSize {
		return nil, errors.Errorf("idl exceeds %d bytes", maxIDLSize)
	}
	return body, nil
}

// EncodeIDL builds IDL account data for body owned by authority. It is the
// inverse of DecodeIDL.
func EncodeIDL(authority ed25519.PublicKey, body []byte) ([]byte, error) {
	var compressed bytes.Buffer
	w := zlib.NewWriter(&compressed)
	if _, err := w.Write(body); err != nil {
		return nil, errors.Wrap(err, "failed to compress idl")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to compress idl")
	}

	return borsh.Encode(idlAccountDiscriminator, borsh.PublicKey(authority), borsh.Bytes(compressed.Bytes()))
}
