package prereq

import (
	"bytes"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/prereq-client/pkg/solana"
	"github.com/code-payments/prereq-client/pkg/solana/binary"
	"github.com/code-payments/prereq-client/pkg/solana/borsh"
)

// minAccountSize covers every fixed width field plus an empty github string.
const minAccountSize = borsh.DiscriminatorSize + ed25519.PublicKeySize + 1 + 1 + 1 + 4

var ErrInvalidAccountSize = errors.New("invalid enrollment account size")

// Enrollment is the state the program keeps for each enrolled user.
type Enrollment struct {
	User     ed25519.PublicKey
	Bump     uint8
	PreReqTs bool
	PreReqRs bool
	Github   string
}

func (obj Enrollment) Marshal(discriminator borsh.Discriminator) []byte {
	res := make([]byte, minAccountSize+len(obj.Github))

	var offset int
	copy(res, discriminator[:])
	offset += borsh.DiscriminatorSize

	binary.PutKey32(res[offset:], obj.User, &offset)
	binary.PutUint8(res[offset:], obj.Bump, &offset)
	binary.PutBool(res[offset:], obj.PreReqTs, &offset)
	binary.PutBool(res[offset:], obj.PreReqRs, &offset)
	binary.PutString(res[offset:], obj.Github, &offset)

	return res
}

func (obj *Enrollment) Unmarshal(discriminator borsh.Discriminator, data []byte) error {
	if len(data) < minAccountSize {
		return ErrInvalidAccountSize
	}
	if !bytes.Equal(data[:borsh.DiscriminatorSize], discriminator[:]) {
		return errors.Errorf("unexpected account discriminator %x", data[:borsh.DiscriminatorSize])
	}

	offset := borsh.DiscriminatorSize

	binary.GetKey32(data[offset:], &obj.User, &offset)
	binary.GetUint8(data[offset:], &obj.Bump, &offset)
	if err := binary.GetBool(data[offset:], &obj.PreReqTs, &offset); err != nil {
		return errors.Wrap(err, "invalid pre_req_ts")
	}
	if err := binary.GetBool(data[offset:], &obj.PreReqRs, &offset); err != nil {
		return errors.Wrap(err, "invalid pre_req_rs")
	}
	if err := binary.GetString(data[offset:], &obj.Github, &offset); err != nil {
		return errors.Wrap(err, "invalid github")
	}

	return nil
}

// DecodeEnrollment decodes the enrollment account's data, checking the account
// is owned by the program.
func (c Config) DecodeEnrollment(info solana.AccountInfo) (*Enrollment, error) {
	if !bytes.Equal(info.Owner, c.Program) {
		return nil, errors.Errorf("enrollment account not owned by program (owner %s)", base58.Encode(info.Owner))
	}

	var e Enrollment
	if err := e.Unmarshal(c.AccountDiscriminator, info.Data); err != nil {
		return nil, err
	}
	return &e, nil
}
