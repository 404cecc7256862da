// Package memory provides an in-memory solana.Client for tests.
package memory

import (
	"context"
	"crypto/ed25519"
	"sync"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/prereq-client/pkg/solana"
	"github.com/code-payments/prereq-client/pkg/solana/system"
)

// DefaultLamportsPerSignature is the fee charged per required signature.
const DefaultLamportsPerSignature = 5000

// Client tracks balances and accounts, applying system transfers on
// submission. Other instructions are recorded but have no effect.
type Client struct {
	sync.Mutex

	LamportsPerSignature uint64
	LamportsPerByteYear  uint64

	blockhash  solana.Blockhash
	balances   map[string]uint64
	accounts   map[string]solana.AccountInfo
	statuses   map[solana.Signature]*solana.SignatureStatus
	submitted  []solana.Transaction
	airdrops   int
	injected   map[string]error
	feeQueries int
}

func NewClient() *Client {
	c := &Client{
		LamportsPerSignature: DefaultLamportsPerSignature,
		LamportsPerByteYear:  3480,
		balances:             make(map[string]uint64),
		accounts:             make(map[string]solana.AccountInfo),
		statuses:             make(map[solana.Signature]*solana.SignatureStatus),
		injected:             make(map[string]error),
	}
	c.blockhash[0] = 1
	return c
}

// SetBalance sets the lamports held by account.
func (c *Client) SetBalance(account ed25519.PublicKey, lamports uint64) {
	c.Lock()
	defer c.Unlock()
	c.balances[base58.Encode(account)] = lamports
}

// SetAccount stores the account info returned by GetAccountInfo.
func (c *Client) SetAccount(account ed25519.PublicKey, info solana.AccountInfo) {
	c.Lock()
	defer c.Unlock()
	c.accounts[base58.Encode(account)] = info
}

// InjectError makes every call to method fail with err until cleared with a
// nil err. Method names match the solana.Client interface.
func (c *Client) InjectError(method string, err error) {
	c.Lock()
	defer c.Unlock()
	if err == nil {
		delete(c.injected, method)
		return
	}
	c.injected[method] = err
}

// AdvanceBlockhash makes subsequent GetLatestBlockhash calls return a new value.
func (c *Client) AdvanceBlockhash() {
	c.Lock()
	defer c.Unlock()
	c.blockhash[0]++
}

// Submitted returns the transactions accepted so far.
func (c *Client) Submitted() []solana.Transaction {
	c.Lock()
	defer c.Unlock()
	return append([]solana.Transaction(nil), c.submitted...)
}

// FeeQueries returns how many times GetFeeForMessage was called.
func (c *Client) FeeQueries() int {
	c.Lock()
	defer c.Unlock()
	return c.feeQueries
}

func (c *Client) GetAccountInfo(_ context.Context, account ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
	c.Lock()
	defer c.Unlock()

	if err := c.injected["GetAccountInfo"]; err != nil {
		return solana.AccountInfo{}, err
	}

	info, ok := c.accounts[base58.Encode(account)]
	if !ok {
		return solana.AccountInfo{}, solana.ErrNoAccountInfo
	}
	info.Lamports = c.balances[base58.Encode(account)]
	return info, nil
}

func (c *Client) GetBalance(_ context.Context, account ed25519.PublicKey) (uint64, error) {
	c.Lock()
	defer c.Unlock()

	if err := c.injected["GetBalance"]; err != nil {
		return 0, err
	}
	return c.balances[base58.Encode(account)], nil
}

func (c *Client) GetFeeForMessage(_ context.Context, msg solana.Message) (uint64, error) {
	c.Lock()
	defer c.Unlock()

	c.feeQueries++
	if err := c.injected["GetFeeForMessage"]; err != nil {
		return 0, err
	}
	if msg.RecentBlockhash != c.blockhash {
		return 0, &solana.RejectedError{
			Reason:           "fee unavailable for message",
			TransactionError: solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound),
		}
	}
	return uint64(msg.Header.NumSignatures) * c.LamportsPerSignature, nil
}

func (c *Client) GetLatestBlockhash(_ context.Context) (solana.Blockhash, error) {
	c.Lock()
	defer c.Unlock()

	if err := c.injected["GetLatestBlockhash"]; err != nil {
		return solana.Blockhash{}, err
	}
	return c.blockhash, nil
}

func (c *Client) GetMinimumBalanceForRentExemption(_ context.Context, size uint64) (uint64, error) {
	c.Lock()
	defer c.Unlock()

	if err := c.injected["GetMinimumBalanceForRentExemption"]; err != nil {
		return 0, err
	}

	// Exemption covers two years of rent, including 128 bytes of metadata.
	return (128 + size) * c.LamportsPerByteYear * 2, nil
}

func (c *Client) GetSignatureStatus(ctx context.Context, sig solana.Signature, commitment solana.Commitment) (*solana.SignatureStatus, error) {
	statuses, err := c.GetSignatureStatuses(ctx, []solana.Signature{sig})
	if err != nil {
		return nil, err
	}

	s := statuses[0]
	if s == nil {
		return nil, solana.ErrSignatureNotFound
	}
	if s.ErrorResult != nil {
		return s, &solana.RejectedError{Reason: "transaction failed", TransactionError: s.ErrorResult}
	}
	if !s.Reached(commitment) {
		return s, solana.ErrConfirmationsNotFound
	}
	return s, nil
}

func (c *Client) GetSignatureStatuses(_ context.Context, sigs []solana.Signature) ([]*solana.SignatureStatus, error) {
	c.Lock()
	defer c.Unlock()

	if err := c.injected["GetSignatureStatuses"]; err != nil {
		return nil, err
	}

	statuses := make([]*solana.SignatureStatus, len(sigs))
	for i, sig := range sigs {
		if s, ok := c.statuses[sig]; ok {
			copied := *s
			statuses[i] = &copied
		}
	}
	return statuses, nil
}

func (c *Client) RequestAirdrop(_ context.Context, account ed25519.PublicKey, lamports uint64, _ solana.Commitment) (solana.Signature, error) {
	c.Lock()
	defer c.Unlock()

	if err := c.injected["RequestAirdrop"]; err != nil {
		return solana.Signature{}, err
	}

	c.airdrops++
	c.balances[base58.Encode(account)] += lamports

	var sig solana.Signature
	copy(sig[:], account)
	sig[63] = byte(c.airdrops)
	c.statuses[sig] = finalized()
	return sig, nil
}

// SubmitTransaction verifies signatures, charges the fee payer and applies any
// system transfers. Failures leave balances untouched.
func (c *Client) SubmitTransaction(_ context.Context, txn solana.Transaction, _ solana.Commitment) (solana.Signature, error) {
	c.Lock()
	defer c.Unlock()

	if err := c.injected["SubmitTransaction"]; err != nil {
		return solana.Signature{}, err
	}
	if len(txn.Signatures) == 0 {
		return solana.Signature{}, errors.New("unsigned transaction")
	}

	sig := txn.Signatures[0]
	if !txn.VerifySignatures() {
		return sig, &solana.RejectedError{
			Reason:           "signature verification failure",
			TransactionError: solana.NewTransactionError(solana.TransactionErrorSignatureFailure),
		}
	}
	if txn.Message.RecentBlockhash != c.blockhash {
		return sig, &solana.RejectedError{
			Reason:           "blockhash not found",
			TransactionError: solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound),
		}
	}
	if _, ok := c.statuses[sig]; ok {
		return sig, &solana.RejectedError{
			Reason:           "transaction already processed",
			TransactionError: solana.NewTransactionError(solana.TransactionErrorDuplicateSignature),
		}
	}

	balances := make(map[string]uint64, len(c.balances))
	for k, v := range c.balances {
		balances[k] = v
	}

	payer := base58.Encode(txn.Message.Accounts[0])
	fee := uint64(txn.Message.Header.NumSignatures) * c.LamportsPerSignature
	if balances[payer] < fee {
		return sig, &solana.RejectedError{
			Reason:           "insufficient funds for fee",
			TransactionError: solana.NewTransactionError(solana.TransactionErrorInsufficientFundsForFee),
		}
	}
	balances[payer] -= fee

	for i := range txn.Message.Instructions {
		transfer, err := system.DecompileTransfer(txn.Message, i)
		if err != nil {
			continue
		}

		from, to := base58.Encode(transfer.From), base58.Encode(transfer.To)
		if balances[from] < transfer.Lamports {
			return sig, &solana.RejectedError{
				Reason:           "insufficient lamports",
				TransactionError: solana.NewTransactionError(solana.TransactionErrorInstructionError),
			}
		}
		balances[from] -= transfer.Lamports
		balances[to] += transfer.Lamports
	}

	c.balances = balances
	c.submitted = append(c.submitted, txn)
	c.statuses[sig] = finalized()

	return sig, nil
}

func finalized() *solana.SignatureStatus {
	return &solana.SignatureStatus{
		Slot:               1,
		ConfirmationStatus: "finalized",
	}
}
