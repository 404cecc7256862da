package tasks

import (
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/prereq-client/pkg/solana"
	"github.com/code-payments/prereq-client/pkg/solana/prereq"
)

// IDLResult is the program's published interface description and where it
// was read from.
type IDLResult struct {
	Address ed25519.PublicKey
	*prereq.IDL
}

// FetchIDL reads the prerequisite program's Anchor IDL from its on chain
// account.
func (s *Service) FetchIDL(ctx context.Context) (*IDLResult, error) {
	log := s.log.WithField("method", "FetchIDL")

	address, err := s.prereq.IDLAddress()
	if err != nil {
		return nil, err
	}
	log = log.WithField("idl", base58.Encode(address))

	info, err := s.client.GetAccountInfo(ctx, address, s.conf.Commitment)
	if errors.Is(err, solana.ErrNoAccountInfo) {
		return nil, errors.Wrapf(err, "program %s has no idl account", base58.Encode(s.prereq.Program))
	} else if err != nil {
		log.WithError(err).Warn("failure getting idl account")
		return nil, errors.Wrap(err, "failed to get idl account")
	}

	idl, err := s.prereq.DecodeIDL(info)
	if err != nil {
		log.WithError(err).Warn("failure decoding idl account")
		return nil, err
	}

	log.WithField("name", idl.Name).Debug("idl fetched")
	return &IDLResult{Address: address, IDL: idl}, nil
}
