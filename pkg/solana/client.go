package solana

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ybbus/jsonrpc"
	xrate "golang.org/x/time/rate"

	"github.com/code-payments/prereq-client/pkg/rate"
	"github.com/code-payments/prereq-client/pkg/retry"
	"github.com/code-payments/prereq-client/pkg/retry/backoff"
)

const (
	ticksPerSec  = 160
	ticksPerSlot = 64
	slotsPerSec  = ticksPerSec / ticksPerSlot

	// PollRate is the rate at which blocks should be polled at.
	PollRate = (time.Second / slotsPerSec) / 2

	// Poll rate is ~2x the slot rate, and we want to wait ~32 slots
	DefaultConfirmationPollLimit = 2 * 32

	DefaultTimeout = 30 * time.Second

	// Reference: https://github.com/solana-labs/solana/blob/71e9958e061493d7545bd28d4ac7a85aaed6ffbb/client/src/rpc_custom_error.rs#L11
	rpcNodeUnhealthyCode = -32005

	invalidParamCode = -32602

	limiterKey = "rpc"
)

type Commitment struct {
	Commitment string `json:"commitment"`
}

const (
	confirmationStatusProcessed = "processed"
	confirmationStatusConfirmed = "confirmed"
	confirmationStatusFinalized = "finalized"
)

var (
	CommitmentProcessed = Commitment{Commitment: confirmationStatusProcessed}
	CommitmentConfirmed = Commitment{Commitment: confirmationStatusConfirmed}
	CommitmentFinalized = Commitment{Commitment: confirmationStatusFinalized}
)

// ParseCommitment parses one of "processed", "confirmed" or "finalized".
func ParseCommitment(s string) (Commitment, error) {
	switch s {
	case confirmationStatusProcessed:
		return CommitmentProcessed, nil
	case confirmationStatusConfirmed:
		return CommitmentConfirmed, nil
	case confirmationStatusFinalized:
		return CommitmentFinalized, nil
	}
	return Commitment{}, newConstraintError(fmt.Sprintf("unknown commitment %q", s))
}

var (
	ErrNoAccountInfo         = errors.New("no account info")
	ErrSignatureNotFound     = errors.New("signature not found")
	ErrNoBalance             = errors.New("no balance")
	ErrConfirmationsNotFound = errors.New("confirmations not reached")
)

// AccountInfo contains the Solana account information (not to be confused with a TokenAccount)
type AccountInfo struct {
	Data       []byte
	Owner      ed25519.PublicKey
	Lamports   uint64
	Executable bool
}

type SignatureStatus struct {
	Slot        uint64
	ErrorResult *TransactionError

	// Confirmations will be nil if the transaction has been rooted.
	Confirmations      *int
	ConfirmationStatus string
}

func (s SignatureStatus) Confirmed() bool {
	if s.Finalized() {
		return true
	}

	if s.ConfirmationStatus == confirmationStatusConfirmed {
		return true
	}

	return *s.Confirmations >= 1
}

func (s SignatureStatus) Finalized() bool {
	return s.Confirmations == nil || s.ConfirmationStatus == confirmationStatusFinalized
}

// Reached reports whether the status satisfies commitment.
func (s SignatureStatus) Reached(commitment Commitment) bool {
	switch commitment {
	case CommitmentConfirmed:
		return s.Confirmed()
	case CommitmentFinalized:
		return s.Finalized()
	}
	return true
}

// Client provides an interaction with the Solana JSON RPC API.
//
// Reference: https://docs.solana.com/apps/jsonrpc-api
type Client interface {
	GetAccountInfo(context.Context, ed25519.PublicKey, Commitment) (AccountInfo, error)
	GetBalance(context.Context, ed25519.PublicKey) (uint64, error)
	GetFeeForMessage(context.Context, Message) (uint64, error)
	GetLatestBlockhash(context.Context) (Blockhash, error)
	GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (lamports uint64, err error)

	// GetSignatureStatus polls until the signature reaches commitment or the
	// poll limit is hit.
	GetSignatureStatus(context.Context, Signature, Commitment) (*SignatureStatus, error)
	GetSignatureStatuses(context.Context, []Signature) ([]*SignatureStatus, error)

	RequestAirdrop(context.Context, ed25519.PublicKey, uint64, Commitment) (Signature, error)

	// SubmitTransaction sends a signed transaction once. It is never retried.
	SubmitTransaction(context.Context, Transaction, Commitment) (Signature, error)
}

var (
	errRateLimited  = errors.Wrap(ErrUnreachable, "rate limited")
	errServiceError = errors.Wrap(ErrUnreachable, "service error")
)

// unreachableError is a transport failure. It matches ErrUnreachable under
// errors.Is and unwraps to the transport error.
type unreachableError struct {
	method string
	cause  error
}

func (e *unreachableError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrUnreachable.Error(), e.method, e.cause)
}

func (e *unreachableError) Is(target error) bool {
	return target == ErrUnreachable
}

func (e *unreachableError) Unwrap() error {
	return e.cause
}

type client struct {
	log       *logrus.Entry
	client    jsonrpc.RPCClient
	retrier   retry.Retrier
	limiter   rate.Limiter
	pollLimit uint
	pollRate  time.Duration
}

// Option configures a client.
type Option func(*clientOptions)

type clientOptions struct {
	timeout           time.Duration
	requestsPerSecond float64
	pollLimit         uint
	pollRate          time.Duration
	headers           map[string]string
}

// WithTimeout bounds every HTTP request made by the client.
func WithTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = timeout
	}
}

// WithRequestsPerSecond throttles outbound requests. Zero disables throttling.
func WithRequestsPerSecond(rps float64) Option {
	return func(o *clientOptions) {
		o.requestsPerSecond = rps
	}
}

// WithConfirmationPolling sets how many times and how often
// GetSignatureStatus polls.
func WithConfirmationPolling(limit uint, interval time.Duration) Option {
	return func(o *clientOptions) {
		o.pollLimit = limit
		o.pollRate = interval
	}
}

// WithHeaders sets custom HTTP headers, e.g. for authenticated RPC providers.
func WithHeaders(headers map[string]string) Option {
	return func(o *clientOptions) {
		o.headers = headers
	}
}

// New returns a client using the specified endpoint.
func New(endpoint string, opts ...Option) Client {
	o := clientOptions{
		timeout:   DefaultTimeout,
		pollLimit: DefaultConfirmationPollLimit,
		pollRate:  PollRate,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var limiter rate.Limiter = &rate.NoLimiter{}
	if o.requestsPerSecond > 0 {
		limiter = rate.NewLocalRateLimiter(xrate.Limit(o.requestsPerSecond))
	}

	log := logrus.StandardLogger().WithField("type", "solana/client")

	return &client{
		log: log,
		client: jsonrpc.NewClientWithOpts(endpoint, &jsonrpc.RPCClientOpts{
			HTTPClient:    &http.Client{Timeout: o.timeout},
			CustomHeaders: o.headers,
		}),
		retrier: retry.NewRetrier(
			retry.Logged(log),
			retry.RetriableErrors(errRateLimited, errServiceError),
			retry.Limit(3),
			retry.BackoffWithJitter(backoff.BinaryExponential(time.Second), 10*time.Second, 0.1),
		),
		limiter:   limiter,
		pollLimit: o.pollLimit,
		pollRate:  o.pollRate,
	}
}

// call performs a read-only request, retrying rate limits and service errors.
func (c *client) call(ctx context.Context, out interface{}, method string, params ...interface{}) error {
	_, err := c.retrier.Retry(ctx, func() error {
		return c.callOnce(ctx, out, method, params...)
	})
	return err
}

// callOnce performs a single request. The underlying JSON-RPC client has no
// context support, so the request runs in its own goroutine, bounded by the
// HTTP client timeout.
func (c *client) callOnce(ctx context.Context, out interface{}, method string, params ...interface{}) error {
	if err := c.limiter.Wait(ctx, limiterKey); err != nil {
		return &unreachableError{method: method, cause: err}
	}

	result := make(chan error, 1)
	go func() {
		result <- c.client.CallFor(out, method, params...)
	}()

	select {
	case <-ctx.Done():
		return &unreachableError{method: method, cause: ctx.Err()}
	case err := <-result:
		if err == nil {
			return nil
		}
		return c.handleRpcError(method, err)
	}
}

func (c *client) handleRpcError(method string, err error) error {
	log := c.log.WithField("method", method)

	switch e := err.(type) {
	case *jsonrpc.RPCError:
		if e.Code == http.StatusTooManyRequests {
			log.Warn("rate limited")
			return errRateLimited
		}
		if e.Code >= 500 || e.Code == rpcNodeUnhealthyCode {
			log.WithError(err).Warn("service error")
			return errServiceError
		}

		return NewRejectedError(e)
	case *jsonrpc.HTTPError:
		if e.Code == http.StatusTooManyRequests {
			log.Warn("rate limited")
			return errRateLimited
		}
		if e.Code >= 500 {
			log.WithError(err).Warn("service error")
			return errServiceError
		}

		return &RejectedError{Reason: e.Error(), Code: e.Code}
	}

	log.WithError(err).Debug("transport failure")
	return &unreachableError{method: method, cause: err}
}

func (c *client) GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (lamports uint64, err error) {
	if err := c.call(ctx, &lamports, "getMinimumBalanceForRentExemption", dataSize); err != nil {
		return 0, errors.Wrapf(err, "getMinimumBalanceForRentExemption() failed to send request")
	}

	return lamports, nil
}

func (c *client) GetLatestBlockhash(ctx context.Context) (hash Blockhash, err error) {
	type response struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}

	// The node rejects a bare commitment object as params.
	var resp response
	if err := c.call(ctx, &resp, "getLatestBlockhash", []interface{}{CommitmentConfirmed}); err != nil {
		return hash, errors.Wrapf(err, "getLatestBlockhash() failed to send request")
	}

	hashBytes, err := base58.Decode(resp.Value.Blockhash)
	if err != nil {
		return hash, errors.Wrap(err, "invalid base58 encoded hash in response")
	}
	if len(hashBytes) != len(hash) {
		return hash, errors.Errorf("invalid blockhash length %d", len(hashBytes))
	}

	copy(hash[:], hashBytes)
	return hash, nil
}

func (c *client) GetBalance(ctx context.Context, account ed25519.PublicKey) (uint64, error) {
	type response struct {
		Value *uint64 `json:"value"`
	}

	var resp response
	if err := c.call(ctx, &resp, "getBalance", base58.Encode(account[:]), CommitmentConfirmed); err != nil {
		var rejected *RejectedError
		if errors.As(err, &rejected) && rejected.Code == invalidParamCode {
			return 0, ErrNoBalance
		}

		return 0, errors.Wrapf(err, "getBalance() failed to send request")
	}

	if resp.Value == nil {
		return 0, errors.Errorf("invalid value in response")
	}

	return *resp.Value, nil
}

// GetFeeForMessage returns the fee the network charges for the message. The
// message must carry a recent blockhash.
func (c *client) GetFeeForMessage(ctx context.Context, msg Message) (uint64, error) {
	type response struct {
		Value *uint64 `json:"value"`
	}

	encoded := base64.StdEncoding.EncodeToString(msg.Marshal())

	var resp response
	if err := c.call(ctx, &resp, "getFeeForMessage", encoded, CommitmentConfirmed); err != nil {
		return 0, errors.Wrapf(err, "getFeeForMessage() failed to send request")
	}

	// A null value means the blockhash has expired.
	if resp.Value == nil {
		return 0, &RejectedError{Reason: "fee unavailable for message", TransactionError: NewTransactionError(TransactionErrorBlockhashNotFound)}
	}

	return *resp.Value, nil
}

// SubmitTransaction sends the transaction with preflight checks enabled, so
// simulation failures surface as a *RejectedError with the program logs.
func (c *client) SubmitTransaction(ctx context.Context, txn Transaction, commitment Commitment) (Signature, error) {
	if len(txn.Signatures) == 0 {
		return Signature{}, errors.Wrap(ErrNoInstructions, "unsigned transaction")
	}

	sig := txn.Signatures[0]

	config := struct {
		Encoding            string `json:"encoding"`
		SkipPreflight       bool   `json:"skipPreflight"`
		PreflightCommitment string `json:"preflightCommitment"`
	}{
		Encoding:            "base64",
		PreflightCommitment: commitment.Commitment,
	}

	var sigStr string
	if err := c.callOnce(ctx, &sigStr, "sendTransaction", base64.StdEncoding.EncodeToString(txn.Marshal()), config); err != nil {
		c.log.WithError(err).WithField("signature", sig.String()).Debug("transaction submission failed")
		return sig, errors.Wrap(err, "sendTransaction() failed")
	}

	returned, err := base58.Decode(sigStr)
	if err != nil || !bytes.Equal(returned, sig[:]) {
		return sig, errors.Errorf("unexpected signature in response: %s", sigStr)
	}

	return sig, nil
}

func (c *client) GetAccountInfo(ctx context.Context, account ed25519.PublicKey, commitment Commitment) (accountInfo AccountInfo, err error) {
	type rpcResponse struct {
		Value *struct {
			Lamports   uint64   `json:"lamports"`
			Owner      string   `json:"owner"`
			Data       []string `json:"data"`
			Executable bool     `json:"executable"`
		} `json:"value"`
	}

	rpcConfig := struct {
		Commitment string `json:"commitment"`
		Encoding   string `json:"encoding"`
	}{
		Commitment: commitment.Commitment,
		Encoding:   "base64",
	}

	var resp rpcResponse
	if err := c.call(ctx, &resp, "getAccountInfo", base58.Encode(account[:]), rpcConfig); err != nil {
		return accountInfo, errors.Wrap(err, "getAccountInfo() failed to send request")
	}

	if resp.Value == nil {
		return accountInfo, ErrNoAccountInfo
	}

	accountInfo.Owner, err = base58.Decode(resp.Value.Owner)
	if err != nil {
		return accountInfo, errors.Wrap(err, "invalid base58 encoded owner")
	}

	if len(resp.Value.Data) > 0 {
		accountInfo.Data, err = base64.StdEncoding.DecodeString(resp.Value.Data[0])
		if err != nil {
			return accountInfo, errors.Wrap(err, "invalid base64 encoded data")
		}
	}

	accountInfo.Lamports = resp.Value.Lamports
	accountInfo.Executable = resp.Value.Executable

	return accountInfo, nil
}

func (c *client) RequestAirdrop(ctx context.Context, account ed25519.PublicKey, lamports uint64, commitment Commitment) (Signature, error) {
	var sigStr string
	if err := c.callOnce(ctx, &sigStr, "requestAirdrop", base58.Encode(account[:]), lamports, commitment); err != nil {
		return Signature{}, errors.Wrapf(err, "requestAirdrop() failed to send request")
	}

	sigBytes, err := base58.Decode(sigStr)
	if err != nil {
		return Signature{}, errors.Wrap(err, "invalid signature in response")
	}

	var sig Signature
	copy(sig[:], sigBytes)

	if sig == (Signature{}) {
		return Signature{}, errors.New("empty signature returned")
	}

	return sig, nil
}

func (c *client) GetSignatureStatus(ctx context.Context, sig Signature, commitment Commitment) (*SignatureStatus, error) {
	var s *SignatureStatus
	_, err := retry.Retry(
		ctx,
		func() error {
			statuses, err := c.GetSignatureStatuses(ctx, []Signature{sig})
			if err != nil {
				return err
			}

			s = statuses[0]
			if s == nil {
				return ErrSignatureNotFound
			}

			if s.ErrorResult != nil {
				return &RejectedError{Reason: "transaction failed", TransactionError: s.ErrorResult}
			}

			if !s.Reached(commitment) {
				return ErrConfirmationsNotFound
			}

			return nil
		},
		retry.Logged(c.log.WithFields(logrus.Fields{
			"method":    "GetSignatureStatus",
			"signature": sig.String(),
		})),
		retry.RetriableErrors(ErrSignatureNotFound, ErrConfirmationsNotFound),
		retry.Limit(c.pollLimit),
		retry.Backoff(backoff.Constant(c.pollRate), c.pollRate),
	)

	return s, err
}

func (c *client) GetSignatureStatuses(ctx context.Context, sigs []Signature) ([]*SignatureStatus, error) {
	b58Sigs := make([]string, len(sigs))
	for i := range sigs {
		b58Sigs[i] = base58.Encode(sigs[i][:])
	}

	req := struct {
		SearchTransactionHistory bool `json:"searchTransactionHistory"`
	}{
		SearchTransactionHistory: true,
	}

	type signatureStatus struct {
		Slot               uint64          `json:"slot"`
		Confirmations      *int            `json:"confirmations"`
		ConfirmationStatus string          `json:"confirmationStatus"`
		Err                json.RawMessage `json:"err"`
	}

	type rpcResp struct {
		Context struct {
			Slot int `json:"slot"`
		} `json:"context"`
		Value []*signatureStatus `json:"value"`
	}

	var resp rpcResp
	if err := c.call(ctx, &resp, "getSignatureStatuses", b58Sigs, req); err != nil {
		return nil, errors.Wrap(err, "getSignatureStatuses() failed to send request")
	}

	statuses := make([]*SignatureStatus, len(sigs))
	for i, v := range resp.Value {
		if v == nil || i >= len(statuses) {
			continue
		}

		statuses[i] = &SignatureStatus{}
		statuses[i].Confirmations = v.Confirmations
		statuses[i].ConfirmationStatus = v.ConfirmationStatus
		statuses[i].Slot = v.Slot

		if len(v.Err) > 0 && !bytes.Equal(v.Err, []byte("null")) {
			var txError interface{}
			err := json.NewDecoder(bytes.NewBuffer(v.Err)).Decode(&txError)
			if err != nil {
				return nil, errors.Wrap(err, "failed to parse transaction result")
			}

			statuses[i].ErrorResult, err = ParseTransactionError(txError)
			if err != nil {
				return nil, errors.Wrap(err, "failed to parse transaction result")
			}
		}
	}

	return statuses, nil
}
