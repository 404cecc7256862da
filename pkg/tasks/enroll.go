package tasks

import (
	"bytes"
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/prereq-client/pkg/keypair"
	"github.com/code-payments/prereq-client/pkg/solana"
	"github.com/code-payments/prereq-client/pkg/solana/prereq"
)

// EnrollResult is the outcome of Enroll.
type EnrollResult struct {
	Enrollment ed25519.PublicKey

	// AlreadyEnrolled is set when the account existed and no transaction was
	// sent, in which case Receipt is nil.
	AlreadyEnrolled bool
	Receipt         *Receipt
}

// SubmitResult is the outcome of Submit.
type SubmitResult struct {
	Receipt
	Mint ed25519.PublicKey
}

// Status is the decoded enrollment of a wallet.
type Status struct {
	Address ed25519.PublicKey
	Account *prereq.Enrollment
}

// Enroll initializes the wallet's enrollment account with its github
// username, unless the account already exists.
func (s *Service) Enroll(ctx context.Context, ref, github string) (*EnrollResult, error) {
	log := s.log.WithFields(logrus.Fields{
		"method": "Enroll",
		"github": github,
	})

	if github == "" {
		return nil, ErrMissingGithub
	}

	kp, err := s.loadKey(ctx, log, ref)
	if err != nil {
		return nil, err
	}
	log = log.WithField("wallet", kp.Address())

	enrollment, exists, err := s.lookupEnrollment(ctx, log, kp)
	if err != nil {
		return nil, err
	}

	result := &EnrollResult{Enrollment: enrollment}
	if exists {
		log.Info("wallet already enrolled")
		result.AlreadyEnrolled = true
		return result, nil
	}

	ixn, err := s.prereq.Initialize(kp.PublicKey, github)
	if err != nil {
		return nil, err
	}

	receipt, err := s.sendAndConfirm(ctx, log, kp.PublicKey, []solana.Instruction{ixn}, kp.PrivateKey)
	if err != nil {
		return nil, err
	}

	log.WithField("signature", receipt.Signature.String()).Info("wallet enrolled")
	result.Receipt = &receipt
	return result, nil
}

// Update replaces the github username on an existing enrollment.
func (s *Service) Update(ctx context.Context, ref, github string) (Receipt, error) {
	log := s.log.WithFields(logrus.Fields{
		"method": "Update",
		"github": github,
	})

	if github == "" {
		return Receipt{}, ErrMissingGithub
	}

	kp, err := s.loadKey(ctx, log, ref)
	if err != nil {
		return Receipt{}, err
	}
	log = log.WithField("wallet", kp.Address())

	ixn, err := s.prereq.Update(kp.PublicKey, github)
	if err != nil {
		return Receipt{}, err
	}

	return s.sendAndConfirm(ctx, log, kp.PublicKey, []solana.Instruction{ixn}, kp.PrivateKey)
}

// Submit completes a track, minting a credential to a freshly generated
// mint account co-signed by the wallet.
func (s *Service) Submit(ctx context.Context, ref string, track prereq.Track) (*SubmitResult, error) {
	log := s.log.WithFields(logrus.Fields{
		"method": "Submit",
		"track":  track,
	})

	kp, err := s.loadKey(ctx, log, ref)
	if err != nil {
		return nil, err
	}

	mint, err := keypair.Generate()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate mint keypair")
	}

	log = log.WithFields(logrus.Fields{
		"wallet": kp.Address(),
		"mint":   mint.Address(),
	})

	ixn, err := s.prereq.Submit(track, kp.PublicKey, mint.PublicKey)
	if err != nil {
		return nil, err
	}

	receipt, err := s.sendAndConfirm(ctx, log, kp.PublicKey, []solana.Instruction{ixn}, kp.PrivateKey, mint.PrivateKey)
	if err != nil {
		return nil, err
	}

	log.WithField("signature", receipt.Signature.String()).Info("track submitted")
	return &SubmitResult{Receipt: receipt, Mint: mint.PublicKey}, nil
}

// Status fetches and decodes the wallet's enrollment account.
func (s *Service) Status(ctx context.Context, ref string) (*Status, error) {
	log := s.log.WithField("method", "Status")

	kp, err := s.loadKey(ctx, log, ref)
	if err != nil {
		return nil, err
	}
	log = log.WithField("wallet", kp.Address())

	enrollment, _, err := s.prereq.EnrollmentAddress(kp.PublicKey)
	if err != nil {
		return nil, err
	}

	info, err := s.client.GetAccountInfo(ctx, enrollment, s.conf.Commitment)
	if errors.Is(err, solana.ErrNoAccountInfo) {
		return nil, errors.Wrapf(err, "wallet %s is not enrolled", kp.Address())
	} else if err != nil {
		log.WithError(err).Warn("failure getting enrollment account")
		return nil, errors.Wrap(err, "failed to get enrollment account")
	}

	decoded, err := s.prereq.DecodeEnrollment(info)
	if err != nil {
		log.WithError(err).Warn("failure decoding enrollment account")
		return nil, err
	}

	return &Status{Address: enrollment, Account: decoded}, nil
}

// lookupEnrollment derives the wallet's enrollment address and reports
// whether the program already owns an account there.
func (s *Service) lookupEnrollment(ctx context.Context, log *logrus.Entry, kp *keypair.Keypair) (ed25519.PublicKey, bool, error) {
	enrollment, bump, err := s.prereq.EnrollmentAddress(kp.PublicKey)
	if err != nil {
		log.WithError(err).Error("failure deriving enrollment address")
		return nil, false, err
	}

	log = log.WithFields(logrus.Fields{
		"enrollment": base58.Encode(enrollment),
		"bump":       bump,
	})

	info, err := s.client.GetAccountInfo(ctx, enrollment, s.conf.Commitment)
	if errors.Is(err, solana.ErrNoAccountInfo) {
		return enrollment, false, nil
	} else if err != nil {
		log.WithError(err).Warn("failure getting enrollment account")
		return nil, false, errors.Wrap(err, "failed to get enrollment account")
	}

	if !bytes.Equal(info.Owner, s.prereq.Program) {
		return nil, false, solana.NewInputConstraintError("enrollment address is owned by " + base58.Encode(info.Owner))
	}

	return enrollment, true, nil
}
