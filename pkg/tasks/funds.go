package tasks

import (
	"context"
	"crypto/ed25519"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/prereq-client/pkg/solana"
	"github.com/code-payments/prereq-client/pkg/solana/system"
)

const (
	LamportsPerSol = 1_000_000_000

	// transferFeeReserve is kept back by Transfer to pay the single
	// signature fee.
	transferFeeReserve = 5000
)

// BalanceReport describes a wallet's funds.
type BalanceReport struct {
	Address  string
	Lamports uint64

	// RentExemptMinimum is the minimum balance of a zero data account.
	RentExemptMinimum uint64
}

// Airdrop requests lamports for the wallet and waits for them to land.
func (s *Service) Airdrop(ctx context.Context, ref string, lamports uint64) (Receipt, error) {
	log := s.log.WithFields(logrus.Fields{
		"method":   "Airdrop",
		"lamports": lamports,
	})

	if lamports == 0 {
		return Receipt{}, solana.NewInputConstraintError("airdrop amount must be positive")
	}

	kp, err := s.loadKey(ctx, log, ref)
	if err != nil {
		return Receipt{}, err
	}
	log = log.WithField("wallet", kp.Address())

	sig, err := s.client.RequestAirdrop(ctx, kp.PublicKey, lamports, s.conf.Commitment)
	if err != nil {
		log.WithError(err).Warn("failure requesting airdrop")
		return Receipt{}, errors.Wrap(err, "failed to request airdrop")
	}

	receipt := s.receipt(sig)
	log = log.WithField("signature", sig.String())
	log.Info("airdrop requested")

	return receipt, s.confirm(ctx, log, sig)
}

// Balance reports the wallet's balance and the rent exemption minimum.
func (s *Service) Balance(ctx context.Context, ref string) (*BalanceReport, error) {
	log := s.log.WithField("method", "Balance")

	kp, err := s.loadKey(ctx, log, ref)
	if err != nil {
		return nil, err
	}

	balance, err := s.client.GetBalance(ctx, kp.PublicKey)
	if err != nil && !errors.Is(err, solana.ErrNoBalance) {
		log.WithError(err).Warn("failure getting balance")
		return nil, errors.Wrap(err, "failed to get balance")
	}

	rent, err := s.client.GetMinimumBalanceForRentExemption(ctx, 0)
	if err != nil {
		log.WithError(err).Warn("failure getting rent exemption minimum")
		return nil, errors.Wrap(err, "failed to get rent exemption minimum")
	}

	return &BalanceReport{
		Address:           kp.Address(),
		Lamports:          balance,
		RentExemptMinimum: rent,
	}, nil
}

// Transfer sends a fixed amount when the wallet holds enough to also pay the
// fee.
func (s *Service) Transfer(ctx context.Context, ref string, to ed25519.PublicKey, lamports uint64) (Receipt, error) {
	log := s.log.WithFields(logrus.Fields{
		"method":   "Transfer",
		"to":       base58.Encode(to),
		"lamports": lamports,
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

	if lamports > balance || balance-lamports < transferFeeReserve {
		log.WithField("balance", balance).Info("balance too low for transfer")
		return Receipt{}, errors.Wrapf(ErrInsufficientBalance, "balance %d cannot cover %d plus fees", balance, lamports)
	}

	return s.sendAndConfirm(
		ctx,
		log,
		kp.PublicKey,
		[]solana.Instruction{system.Transfer(kp.PublicKey, to, lamports)},
		kp.PrivateKey,
	)
}

// FormatSol renders lamports as SOL without trailing zeros.
func FormatSol(lamports uint64) string {
	whole := strconv.FormatUint(lamports/LamportsPerSol, 10)
	frac := lamports % LamportsPerSol
	if frac == 0 {
		return whole
	}

	digits := strconv.FormatUint(frac, 10)
	digits = strings.Repeat("0", 9-len(digits)) + digits
	return whole + "." + strings.TrimRight(digits, "0")
}
