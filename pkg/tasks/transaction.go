package tasks

import (
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/prereq-client/pkg/solana"
)

// sendAndConfirm signs instructions against a fresh blockhash, submits them
// and waits for the configured commitment.
func (s *Service) sendAndConfirm(ctx context.Context, log *logrus.Entry, payer ed25519.PublicKey, ixns []solana.Instruction, signers ...ed25519.PrivateKey) (Receipt, error) {
	bh, err := s.client.GetLatestBlockhash(ctx)
	if err != nil {
		log.WithError(err).Warn("failure getting latest blockhash")
		return Receipt{}, errors.Wrap(err, "failed to get latest blockhash")
	}

	txn, err := solana.BuildAndSignVersioned(s.conf.MessageVersion, ixns, payer, bh, signers...)
	if err != nil {
		return Receipt{}, errors.Wrap(err, "failed to build transaction")
	}

	return s.submit(ctx, log, txn)
}

// submit sends a signed transaction once. Confirmation polling only reads
// the signature status and never resubmits.
func (s *Service) submit(ctx context.Context, log *logrus.Entry, txn solana.Transaction) (Receipt, error) {
	if err := txn.Validate(); err != nil {
		return Receipt{}, errors.Wrap(err, "invalid transaction")
	}

	sig, err := s.client.SubmitTransaction(ctx, txn, s.conf.Commitment)
	if err != nil {
		if solana.IsStaleBlockhash(err) {
			log.WithError(err).Warn("blockhash expired before submission")
		} else {
			log.WithError(err).Warn("failure submitting transaction")
		}
		return Receipt{}, errors.Wrap(err, "failed to submit transaction")
	}

	receipt := s.receipt(sig)
	log = log.WithField("signature", sig.String())
	log.Debug("transaction submitted")

	return receipt, s.confirm(ctx, log, sig)
}

func (s *Service) confirm(ctx context.Context, log *logrus.Entry, sig solana.Signature) error {
	if _, err := s.client.GetSignatureStatus(ctx, sig, s.conf.Commitment); err != nil {
		log.WithError(err).Warn("transaction not confirmed")
		return errors.Wrapf(err, "transaction %s not confirmed", sig)
	}

	log.WithField("commitment", s.conf.Commitment.Commitment).Debug("transaction confirmed")
	return nil
}
