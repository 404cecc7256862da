// Package tasks runs the prerequisite routines against a Solana cluster:
// funding and draining wallets, and enrolling with the prerequisite program.
package tasks

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/prereq-client/pkg/keypair"
	"github.com/code-payments/prereq-client/pkg/solana"
	"github.com/code-payments/prereq-client/pkg/solana/prereq"
)

var (
	// ErrInsufficientBalance is returned when a wallet cannot cover a
	// transfer and its fee.
	ErrInsufficientBalance = solana.NewInputConstraintError("insufficient balance")

	ErrMissingGithub = solana.NewInputConstraintError("github username is required")
)

// Conf configures how transactions are built and reported.
type Conf struct {
	Commitment     solana.Commitment
	MessageVersion solana.MessageVersion

	// Cluster is the explorer cluster used in receipt links.
	Cluster string
}

// Receipt identifies a submitted transaction.
type Receipt struct {
	Signature   solana.Signature
	ExplorerURL string
}

// Service executes routines. Each call loads its own keys and fetches its own
// blockhash, so a Service is safe for concurrent use.
type Service struct {
	log    *logrus.Entry
	conf   Conf
	client solana.Client
	keys   keypair.Provider
	prereq prereq.Config
}

func New(client solana.Client, keys keypair.Provider, prereqConfig prereq.Config, conf Conf) *Service {
	if conf.Commitment == (solana.Commitment{}) {
		conf.Commitment = solana.CommitmentConfirmed
	}

	return &Service{
		log:    logrus.StandardLogger().WithField("type", "tasks/service"),
		conf:   conf,
		client: client,
		keys:   keys,
		prereq: prereqConfig,
	}
}

func (s *Service) loadKey(ctx context.Context, log *logrus.Entry, ref string) (*keypair.Keypair, error) {
	kp, err := s.keys.Load(ctx, ref)
	if err != nil {
		log.WithError(err).WithField("keypair", ref).Warn("failure loading keypair")
		return nil, errors.Wrapf(err, "failed to load keypair %s", ref)
	}
	return kp, nil
}

func (s *Service) receipt(sig solana.Signature) Receipt {
	return Receipt{
		Signature:   sig,
		ExplorerURL: solana.ExplorerTxURL(sig, s.conf.Cluster),
	}
}
