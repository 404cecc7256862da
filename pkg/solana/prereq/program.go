package prereq

import (
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/prereq-client/pkg/solana"
	"github.com/code-payments/prereq-client/pkg/solana/borsh"
)

// EnrollmentAddress derives the enrollment account of user, seeded by
// ["prereqs", user].
func (c Config) EnrollmentAddress(user ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddressAndBump(c.Program, enrollmentSeed, user)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to derive enrollment address")
	}
	return addr, bump, nil
}

// CollectionAuthority derives the authority over the collection, seeded by
// ["collection", collection].
func (c Config) CollectionAuthority() (ed25519.PublicKey, error) {
	addr, err := solana.FindProgramAddress(c.Program, authoritySeed, c.Collection)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive collection authority")
	}
	return addr, nil
}

// Initialize creates the enrollment account of user, recording github.
//
// Account references
//   0. [WRITE, SIGNER] User
//   1. [WRITE] Enrollment account
//   2. [] System program
func (c Config) Initialize(user ed25519.PublicKey, github string) (solana.Instruction, error) {
	return c.github(c.InitializeDiscriminator, user, github)
}

// Update changes the github handle recorded in the enrollment account. It
// takes the same accounts as Initialize.
func (c Config) Update(user ed25519.PublicKey, github string) (solana.Instruction, error) {
	return c.github(c.UpdateDiscriminator, user, github)
}

func (c Config) github(discriminator borsh.Discriminator, user ed25519.PublicKey, github string) (solana.Instruction, error) {
	enrollment, _, err := c.EnrollmentAddress(user)
	if err != nil {
		return solana.Instruction{}, err
	}

	data, err := borsh.Encode(discriminator, borsh.String(github))
	if err != nil {
		return solana.Instruction{}, err
	}

	return solana.AssembleInstruction(
		c.Program,
		data,
		solana.NewAccountMeta(user, true),
		solana.NewAccountMeta(enrollment, false),
		solana.NewReadonlyAccountMeta(c.SystemProgram, false),
	)
}

// Submit mints the completion asset for track into the collection. Both user
// and mint must sign.
//
// Account references
//   0. [WRITE, SIGNER] User
//   1. [WRITE] Enrollment account
//   2. [WRITE, SIGNER] Mint
//   3. [WRITE] Collection
//   4. [] Collection authority
//   5. [] MPL core program
//   6. [] System program
func (c Config) Submit(track Track, user, mint ed25519.PublicKey) (solana.Instruction, error) {
	var discriminator borsh.Discriminator
	switch track {
	case TrackTs:
		discriminator = c.SubmitTsDiscriminator
	case TrackRs:
		discriminator = c.SubmitRsDiscriminator
	default:
		return solana.Instruction{}, solana.NewInputConstraintError("unknown track " + string(track))
	}

	enrollment, _, err := c.EnrollmentAddress(user)
	if err != nil {
		return solana.Instruction{}, err
	}
	authority, err := c.CollectionAuthority()
	if err != nil {
		return solana.Instruction{}, err
	}

	data, err := borsh.Encode(discriminator)
	if err != nil {
		return solana.Instruction{}, err
	}

	return solana.AssembleInstruction(
		c.Program,
		data,
		solana.NewAccountMeta(user, true),
		solana.NewAccountMeta(enrollment, false),
		solana.NewAccountMeta(mint, true),
		solana.NewAccountMeta(c.Collection, false),
		solana.NewReadonlyAccountMeta(authority, false),
		solana.NewReadonlyAccountMeta(c.MplCoreProgram, false),
		solana.NewReadonlyAccountMeta(c.SystemProgram, false),
	)
}
