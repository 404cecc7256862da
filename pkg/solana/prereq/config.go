// Package prereq binds the instructions and accounts of the on-chain
// prerequisite enrollment program.
package prereq

import (
	"crypto/ed25519"

	"github.com/code-payments/prereq-client/pkg/solana"
	"github.com/code-payments/prereq-client/pkg/solana/borsh"
	"github.com/code-payments/prereq-client/pkg/solana/system"
)

var (
	enrollmentSeed = []byte("prereqs")
	authoritySeed  = []byte("collection")
)

// Config holds the addresses and discriminators the bindings are built with.
type Config struct {
	Program        ed25519.PublicKey
	Collection     ed25519.PublicKey
	MplCoreProgram ed25519.PublicKey
	SystemProgram  ed25519.PublicKey

	InitializeDiscriminator borsh.Discriminator
	UpdateDiscriminator     borsh.Discriminator
	SubmitTsDiscriminator   borsh.Discriminator
	SubmitRsDiscriminator   borsh.Discriminator

	// AccountDiscriminator tags the enrollment account's data.
	AccountDiscriminator borsh.Discriminator
}

// DefaultConfig returns the devnet deployment of the program.
func DefaultConfig() Config {
	return Config{
		Program:        solana.MustParsePublicKey("TRBZyQHB3m68FGeVsqTK39Wm4xejadjVhP5MAZaKWDM"),
		Collection:     solana.MustParsePublicKey("5ebsp5RChCGK7ssRZMVMufgVZhd2kFbNaotcZ5UvytN2"),
		MplCoreProgram: solana.MustParsePublicKey("CoREENxT6tW1HoK8ypY1SxRMZTcVPm7R94rH4PZNhX7d"),
		SystemProgram:  system.ProgramKey,

		InitializeDiscriminator: borsh.Discriminator{175, 175, 109, 31, 13, 152, 155, 237},
		UpdateDiscriminator:     borsh.Discriminator{219, 200, 88, 176, 158, 63, 253, 127},
		SubmitTsDiscriminator:   borsh.Discriminator{137, 241, 199, 223, 125, 33, 85, 217},
		SubmitRsDiscriminator:   borsh.Discriminator{77, 124, 82, 163, 21, 133, 181, 206},

		AccountDiscriminator: borsh.AccountDiscriminator("ApplicationAccount"),
	}
}

// Track selects which submission instruction is sent.
type Track string

const (
	TrackTs Track = "ts"
	TrackRs Track = "rs"
)

// ParseTrack parses "ts" or "rs".
func ParseTrack(s string) (Track, error) {
	switch Track(s) {
	case TrackTs, TrackRs:
		return Track(s), nil
	}
	return "", solana.NewInputConstraintError("unknown track " + s + ", expected ts or rs")
}
