package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ybbus/jsonrpc"

	"github.com/code-payments/prereq-client/pkg/retry"
)

func TestSignatureStatus(t *testing.T) {
	zero, one := 0, 1

	testCases := []struct {
		s         SignatureStatus
		confirmed bool
		finalized bool
	}{
		{
			s: SignatureStatus{
				Slot:               10,
				ErrorResult:        nil,
				Confirmations:      &zero,
				ConfirmationStatus: "",
			},
		},
		{
			s: SignatureStatus{
				Slot:               10,
				ErrorResult:        nil,
				Confirmations:      &zero,
				ConfirmationStatus: "random",
			},
		},
		{
			s: SignatureStatus{
				Slot:               10,
				ErrorResult:        nil,
				Confirmations:      &zero,
				ConfirmationStatus: confirmationStatusProcessed,
			},
		},
		{
			s: SignatureStatus{
				Slot:               10,
				ErrorResult:        nil,
				Confirmations:      &one,
				ConfirmationStatus: "",
			},
			confirmed: true,
		},
		{
			s: SignatureStatus{
				Slot:               10,
				ErrorResult:        nil,
				Confirmations:      &zero,
				ConfirmationStatus: confirmationStatusConfirmed,
			},
			confirmed: true,
		},
		{
			s: SignatureStatus{
				Slot:               10,
				ErrorResult:        nil,
				Confirmations:      &zero,
				ConfirmationStatus: confirmationStatusFinalized,
			},
			confirmed: true,
			finalized: true,
		},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.confirmed, tc.s.Confirmed())
		assert.Equal(t, tc.finalized, tc.s.Finalized())
	}
}

func TestSignatureStatus_Reached(t *testing.T) {
	zero := 0

	processed := SignatureStatus{Confirmations: &zero, ConfirmationStatus: confirmationStatusProcessed}
	assert.True(t, processed.Reached(CommitmentProcessed))
	assert.False(t, processed.Reached(CommitmentConfirmed))
	assert.False(t, processed.Reached(CommitmentFinalized))

	rooted := SignatureStatus{ConfirmationStatus: confirmationStatusFinalized}
	assert.True(t, rooted.Reached(CommitmentConfirmed))
	assert.True(t, rooted.Reached(CommitmentFinalized))
}

func TestParseCommitment(t *testing.T) {
	for _, c := range []Commitment{CommitmentProcessed, CommitmentConfirmed, CommitmentFinalized} {
		parsed, err := ParseCommitment(c.Commitment)
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}

	_, err := ParseCommitment("max")
	assert.Equal(t, KindInputConstraint, KindOf(err))
}

type rpcHandler func(params []json.RawMessage) (interface{}, *jsonrpc.RPCError)

type testServer struct {
	*httptest.Server

	sync.Mutex
	calls    map[string]int
	handlers map[string]rpcHandler
	header   http.Header
}

func newTestServer(t *testing.T, handlers map[string]rpcHandler) *testServer {
	s := &testServer{
		calls:    make(map[string]int),
		handlers: handlers,
	}

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int               `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		s.Lock()
		s.header = r.Header.Clone()
		s.calls[req.Method]++
		handler, ok := s.handlers[req.Method]
		s.Unlock()

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
		}
		if !ok {
			resp["error"] = &jsonrpc.RPCError{Code: -32601, Message: "method not found"}
		} else if result, rpcErr := handler(req.Params); rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(s.Close)

	return s
}

func (s *testServer) callCount(method string) int {
	s.Lock()
	defer s.Unlock()
	return s.calls[method]
}

func (s *testServer) lastHeader(name string) string {
	s.Lock()
	defer s.Unlock()
	return s.header.Get(name)
}

func newTestClient(url string) *client {
	c := New(url, WithConfirmationPolling(3, time.Millisecond)).(*client)
	c.retrier = retry.NewRetrier(
		retry.RetriableErrors(errRateLimited, errServiceError),
		retry.Limit(3),
	)
	return c
}

func TestClient_GetBalance(t *testing.T) {
	keys := generateKeys(t, 1)

	s := newTestServer(t, map[string]rpcHandler{
		"getBalance": func(params []json.RawMessage) (interface{}, *jsonrpc.RPCError) {
			var addr string
			if err := json.Unmarshal(params[0], &addr); err != nil || addr != base58.Encode(public(keys[0])) {
				return nil, &jsonrpc.RPCError{Code: invalidParamCode, Message: "invalid param"}
			}
			return map[string]interface{}{"context": map[string]int{"slot": 1}, "value": 1500000000}, nil
		},
	})

	c := newTestClient(s.URL)

	balance, err := c.GetBalance(context.Background(), public(keys[0]))
	require.NoError(t, err)
	assert.EqualValues(t, 1500000000, balance)

	_, err = c.GetBalance(context.Background(), make([]byte, 32))
	assert.Equal(t, ErrNoBalance, err)
}

func TestClient_Headers(t *testing.T) {
	s := newTestServer(t, map[string]rpcHandler{
		"getMinimumBalanceForRentExemption": func(params []json.RawMessage) (interface{}, *jsonrpc.RPCError) {
			return 890880, nil
		},
	})

	c := New(s.URL, WithHeaders(map[string]string{"x-api-key": "secret"}))

	_, err := c.GetMinimumBalanceForRentExemption(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "secret", s.lastHeader("X-Api-Key"))
}

func TestClient_GetLatestBlockhash(t *testing.T) {
	var expected Blockhash
	copy(expected[:], []byte("a very recent blockhash value.."))

	s := newTestServer(t, map[string]rpcHandler{
		"getLatestBlockhash": func(params []json.RawMessage) (interface{}, *jsonrpc.RPCError) {
			return map[string]interface{}{
				"context": map[string]int{"slot": 1},
				"value": map[string]interface{}{
					"blockhash":            base58.Encode(expected[:]),
					"lastValidBlockHeight": 100,
				},
			}, nil
		},
	})

	c := newTestClient(s.URL)

	// Every call goes to the network.
	for i := 0; i < 3; i++ {
		actual, err := c.GetLatestBlockhash(context.Background())
		require.NoError(t, err)
		assert.Equal(t, expected, actual)
	}
	assert.Equal(t, 3, s.callCount("getLatestBlockhash"))
}

func TestClient_GetFeeForMessage(t *testing.T) {
	keys := generateKeys(t, 2)
	tx := NewTransaction(public(keys[0]), NewInstruction(public(keys[1]), []byte{1}, NewAccountMeta(public(keys[0]), true)))
	tx.SetBlockhash(Blockhash{1, 2, 3})

	var expired atomic.Bool
	s := newTestServer(t, map[string]rpcHandler{
		"getFeeForMessage": func(params []json.RawMessage) (interface{}, *jsonrpc.RPCError) {
			var encoded string
			if err := json.Unmarshal(params[0], &encoded); err != nil {
				return nil, &jsonrpc.RPCError{Code: invalidParamCode, Message: "invalid param"}
			}
			if encoded != base64.StdEncoding.EncodeToString(tx.Message.Marshal()) {
				return nil, &jsonrpc.RPCError{Code: invalidParamCode, Message: "unexpected message"}
			}
			if expired.Load() {
				return map[string]interface{}{"context": map[string]int{"slot": 1}, "value": nil}, nil
			}
			return map[string]interface{}{"context": map[string]int{"slot": 1}, "value": 5000}, nil
		},
	})

	c := newTestClient(s.URL)

	fee, err := c.GetFeeForMessage(context.Background(), tx.Message)
	require.NoError(t, err)
	assert.EqualValues(t, 5000, fee)

	expired.Store(true)
	_, err = c.GetFeeForMessage(context.Background(), tx.Message)
	assert.Equal(t, KindRejected, KindOf(err))
}

func TestClient_SubmitTransaction(t *testing.T) {
	keys := generateKeys(t, 2)
	ixn := NewInstruction(public(keys[1]), []byte{1}, NewAccountMeta(public(keys[0]), true))
	tx, err := BuildAndSign([]Instruction{ixn}, public(keys[0]), Blockhash{1}, keys[0])
	require.NoError(t, err)

	var reject atomic.Bool
	s := newTestServer(t, map[string]rpcHandler{
		"sendTransaction": func(params []json.RawMessage) (interface{}, *jsonrpc.RPCError) {
			if reject.Load() {
				return nil, &jsonrpc.RPCError{
					Code:    -32002,
					Message: "Transaction simulation failed: Error processing Instruction 0: custom program error: 0x0",
					Data: map[string]interface{}{
						"err":  map[string]interface{}{"InstructionError": []interface{}{0, map[string]interface{}{"Custom": 0}}},
						"logs": []string{"Program log: Allocate: account already in use"},
					},
				}
			}

			var encoded string
			if err := json.Unmarshal(params[0], &encoded); err != nil {
				return nil, &jsonrpc.RPCError{Code: invalidParamCode, Message: "invalid param"}
			}
			raw, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				return nil, &jsonrpc.RPCError{Code: invalidParamCode, Message: "invalid base64"}
			}

			var submitted Transaction
			if err := submitted.Unmarshal(raw); err != nil || !submitted.VerifySignatures() {
				return nil, &jsonrpc.RPCError{Code: -32003, Message: "signature verification failure"}
			}
			return base58.Encode(submitted.Signatures[0][:]), nil
		},
	})

	c := newTestClient(s.URL)

	sig, err := c.SubmitTransaction(context.Background(), tx, CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, tx.Signatures[0], sig)

	reject.Store(true)
	_, err = c.SubmitTransaction(context.Background(), tx, CommitmentConfirmed)
	assert.Equal(t, KindRejected, KindOf(err))

	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, []string{"Program log: Allocate: account already in use"}, rejected.Logs)
	require.NotNil(t, rejected.TransactionError)
	assert.Equal(t, TransactionErrorInstructionError, rejected.TransactionError.ErrorKey())

	// Submission is never retried.
	assert.Equal(t, 2, s.callCount("sendTransaction"))
}

func TestClient_ServiceErrorsRetried(t *testing.T) {
	s := newTestServer(t, map[string]rpcHandler{
		"getMinimumBalanceForRentExemption": func(params []json.RawMessage) (interface{}, *jsonrpc.RPCError) {
			return nil, &jsonrpc.RPCError{Code: rpcNodeUnhealthyCode, Message: "node is behind"}
		},
		"sendTransaction": func(params []json.RawMessage) (interface{}, *jsonrpc.RPCError) {
			return nil, &jsonrpc.RPCError{Code: rpcNodeUnhealthyCode, Message: "node is behind"}
		},
	})

	c := newTestClient(s.URL)

	_, err := c.GetMinimumBalanceForRentExemption(context.Background(), 0)
	assert.Equal(t, KindUnreachable, KindOf(err))
	assert.Equal(t, 3, s.callCount("getMinimumBalanceForRentExemption"))

	keys := generateKeys(t, 2)
	ixn := NewInstruction(public(keys[1]), nil, NewAccountMeta(public(keys[0]), true))
	tx, err := BuildAndSign([]Instruction{ixn}, public(keys[0]), Blockhash{}, keys[0])
	require.NoError(t, err)

	_, err = c.SubmitTransaction(context.Background(), tx, CommitmentConfirmed)
	assert.Equal(t, KindUnreachable, KindOf(err))
	assert.Equal(t, 1, s.callCount("sendTransaction"))
}

func TestClient_RateLimited(t *testing.T) {
	var calls int
	var mu sync.Mutex
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer s.Close()

	c := newTestClient(s.URL)

	_, err := c.GetLatestBlockhash(context.Background())
	assert.True(t, errors.Is(err, errRateLimited))
	assert.Equal(t, KindUnreachable, KindOf(err))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, calls)
}

func TestClient_Unreachable(t *testing.T) {
	s := httptest.NewServer(http.NotFoundHandler())
	url := s.URL
	s.Close()

	c := newTestClient(url)

	_, err := c.GetBalance(context.Background(), make([]byte, 32))
	assert.Equal(t, KindUnreachable, KindOf(err))
}

func TestClient_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer s.Close()
	defer close(release)

	c := newTestClient(s.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.GetLatestBlockhash(ctx)
	assert.Equal(t, KindUnreachable, KindOf(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, time.Since(start) < time.Second)
}

func TestClient_GetAccountInfo(t *testing.T) {
	keys := generateKeys(t, 2)
	owner := public(keys[1])

	s := newTestServer(t, map[string]rpcHandler{
		"getAccountInfo": func(params []json.RawMessage) (interface{}, *jsonrpc.RPCError) {
			var addr string
			_ = json.Unmarshal(params[0], &addr)
			if addr != base58.Encode(public(keys[0])) {
				return map[string]interface{}{"context": map[string]int{"slot": 1}, "value": nil}, nil
			}
			return map[string]interface{}{
				"context": map[string]int{"slot": 1},
				"value": map[string]interface{}{
					"lamports":   1000,
					"owner":      base58.Encode(owner),
					"data":       []string{base64.StdEncoding.EncodeToString([]byte("account data")), "base64"},
					"executable": false,
					"rentEpoch":  0,
				},
			}, nil
		},
	})

	c := newTestClient(s.URL)

	info, err := c.GetAccountInfo(context.Background(), public(keys[0]), CommitmentConfirmed)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, info.Lamports)
	assert.Equal(t, owner, info.Owner)
	assert.Equal(t, []byte("account data"), info.Data)

	_, err = c.GetAccountInfo(context.Background(), owner, CommitmentConfirmed)
	assert.Equal(t, ErrNoAccountInfo, err)
}

func TestClient_GetSignatureStatus(t *testing.T) {
	var sig, failed Signature
	copy(sig[:], []byte("signature"))
	copy(failed[:], []byte("failed"))

	var polls atomic.Int32
	s := newTestServer(t, map[string]rpcHandler{
		"getSignatureStatuses": func(params []json.RawMessage) (interface{}, *jsonrpc.RPCError) {
			var sigs []string
			_ = json.Unmarshal(params[0], &sigs)

			if sigs[0] == failed.String() {
				return map[string]interface{}{
					"context": map[string]int{"slot": 1},
					"value": []interface{}{
						map[string]interface{}{
							"slot":               10,
							"confirmations":      1,
							"confirmationStatus": "confirmed",
							"err":                map[string]interface{}{"InstructionError": []interface{}{0, "InvalidArgument"}},
						},
					},
				}, nil
			}

			if polls.Add(1) == 1 {
				return map[string]interface{}{"context": map[string]int{"slot": 1}, "value": []interface{}{nil}}, nil
			}
			return map[string]interface{}{
				"context": map[string]int{"slot": 1},
				"value": []interface{}{
					map[string]interface{}{
						"slot":               10,
						"confirmations":      2,
						"confirmationStatus": "confirmed",
						"err":                nil,
					},
				},
			}, nil
		},
	})

	c := newTestClient(s.URL)

	status, err := c.GetSignatureStatus(context.Background(), sig, CommitmentConfirmed)
	require.NoError(t, err)
	assert.EqualValues(t, 10, status.Slot)
	assert.True(t, status.Confirmed())
	assert.Nil(t, status.ErrorResult)
	assert.EqualValues(t, 2, polls.Load())

	// Never reaching finalized exhausts the poll limit.
	polls.Store(0)
	_, err = c.GetSignatureStatus(context.Background(), sig, CommitmentFinalized)
	assert.Equal(t, ErrConfirmationsNotFound, err)

	_, err = c.GetSignatureStatus(context.Background(), failed, CommitmentConfirmed)
	assert.Equal(t, KindRejected, KindOf(err))
}

func TestClient_RequestAirdrop(t *testing.T) {
	keys := generateKeys(t, 1)

	var sig Signature
	copy(sig[:], []byte("airdrop"))

	var limited atomic.Bool
	s := newTestServer(t, map[string]rpcHandler{
		"requestAirdrop": func(params []json.RawMessage) (interface{}, *jsonrpc.RPCError) {
			if limited.Load() {
				return nil, &jsonrpc.RPCError{Code: -32603, Message: "airdrop request limit reached"}
			}

			var lamports uint64
			_ = json.Unmarshal(params[1], &lamports)
			if lamports != 2_000_000_000 {
				return nil, &jsonrpc.RPCError{Code: invalidParamCode, Message: "unexpected amount"}
			}
			return sig.String(), nil
		},
	})

	c := newTestClient(s.URL)

	actual, err := c.RequestAirdrop(context.Background(), public(keys[0]), 2_000_000_000, CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, sig, actual)

	limited.Store(true)
	_, err = c.RequestAirdrop(context.Background(), public(keys[0]), 2_000_000_000, CommitmentConfirmed)
	assert.Equal(t, KindRejected, KindOf(err))
}
