package tasks

import (
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/prereq-client/pkg/keypair"
	"github.com/code-payments/prereq-client/pkg/solana"
	"github.com/code-payments/prereq-client/pkg/solana/system"
)

// Drain transfers the wallet's entire balance, less the fee, to the
// recipient.
func (s *Service) Drain(ctx context.Context, ref string, to ed25519.PublicKey) (Receipt, error) {
	log := s.log.WithFields(logrus.Fields{
		"method": "Drain",
		"to":     base58.Encode(to),
	})

	if len(to) != ed25519.PublicKeySize {
		return Receipt{}, solana.ErrInvalidPublicKeyLen
	}

	kp, err := s.loadKey(ctx, log, ref)
	if err != nil {
		return Receipt{}, err
	}
	log = log.WithField("from", kp.Address())

	balance, err := s.client.GetBalance(ctx, kp.PublicKey)
	if err != nil && !errors.Is(err, solana.ErrNoBalance) {
		log.WithError(err).Warn("failure getting balance")
		return Receipt{}, errors.Wrap(err, "failed to get balance")
	}

	bh, err := s.client.GetLatestBlockhash(ctx)
	if err != nil {
		log.WithError(err).Warn("failure getting latest blockhash")
		return Receipt{}, errors.Wrap(err, "failed to get latest blockhash")
	}

	txn, err := s.buildDrain(ctx, log, kp, to, balance, bh)
	if err != nil {
		return Receipt{}, err
	}

	return s.submit(ctx, log, txn)
}

// buildDrain estimates the fee of a transfer of the full balance, then signs
// the transfer of balance minus that fee. Both passes share the blockhash so
// the estimate is for the message that is finally signed, up to the amount.
func (s *Service) buildDrain(ctx context.Context, log *logrus.Entry, kp *keypair.Keypair, to ed25519.PublicKey, balance uint64, bh solana.Blockhash) (solana.Transaction, error) {
	estimate := solana.NewTransaction(kp.PublicKey, system.Transfer(kp.PublicKey, to, balance)).
		WithMessageVersion(s.conf.MessageVersion)
	estimate.SetBlockhash(bh)

	fee, err := s.client.GetFeeForMessage(ctx, estimate.Message)
	if err != nil {
		log.WithError(err).Warn("failure getting fee for message")
		return solana.Transaction{}, errors.Wrap(err, "failed to get fee for message")
	}

	log = log.WithFields(logrus.Fields{
		"balance": balance,
		"fee":     fee,
	})

	if balance < fee {
		log.Info("balance too low to cover fee")
		return solana.Transaction{}, errors.Wrapf(ErrInsufficientBalance, "balance %d is below fee %d", balance, fee)
	}

	log.Debug("fee estimated")

	return solana.BuildAndSignVersioned(
		s.conf.MessageVersion,
		[]solana.Instruction{system.Transfer(kp.PublicKey, to, balance-fee)},
		kp.PublicKey,
		bh,
		kp.PrivateKey,
	)
}
