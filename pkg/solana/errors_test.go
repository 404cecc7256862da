package solana

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ybbus/jsonrpc"
)

func TestParse(t *testing.T) {
	d := json.NewDecoder(bytes.NewBufferString(`{"InstructionError":[2,{"Custom":3}]}`))

	var raw interface{}
	assert.NoError(t, d.Decode(&raw))

	e, err := ParseTransactionError(raw)
	assert.NoError(t, err)

	assert.Equal(t, TransactionErrorInstructionError, e.ErrorKey())
	assert.NotNil(t, e.InstructionError())
	assert.Equal(t, 2, e.InstructionError().Index)
	assert.Equal(t, InstructionErrorCustom, e.InstructionError().ErrorKey())
	assert.NotNil(t, e.InstructionError().CustomError())
	assert.Equal(t, CustomError(3), *e.InstructionError().CustomError())

	d = json.NewDecoder(bytes.NewBufferString(`{"InstructionError":[0,"InvalidArgument"]}`))
	assert.NoError(t, d.Decode(&raw))

	e, err = ParseTransactionError(raw)
	assert.NoError(t, err)

	assert.Equal(t, TransactionErrorInstructionError, e.ErrorKey())
	assert.NotNil(t, e.InstructionError())
	assert.Equal(t, 0, e.InstructionError().Index)
	assert.Equal(t, InstructionErrorInvalidArgument, e.InstructionError().ErrorKey())

	d = json.NewDecoder(bytes.NewBufferString(`"DuplicateSignature"`))
	assert.NoError(t, d.Decode(&raw))

	e, err = ParseTransactionError(raw)
	assert.NoError(t, err)

	assert.Equal(t, TransactionErrorDuplicateSignature, e.ErrorKey())
	assert.Nil(t, e.InstructionError())
}

func TestNew(t *testing.T) {
	d := json.NewDecoder(bytes.NewBufferString(`"DuplicateSignature"`))
	var expected interface{}
	assert.NoError(t, d.Decode(&expected))

	e := NewTransactionError(TransactionErrorDuplicateSignature)
	assert.Equal(t, expected, e.raw)

	raw, err := e.JSONString()
	assert.NoError(t, err)
	assert.Equal(t, `"DuplicateSignature"`, raw)
}

func TestCustomError_Anchor(t *testing.T) {
	assert.Equal(t, "custom program error: bc4 (AccountNotInitialized)", CustomError(3012).Error())
	assert.Equal(t, "custom program error: 1", CustomError(1).Error())
}

func TestNewRejectedError(t *testing.T) {
	d := json.NewDecoder(bytes.NewBufferString(`{
		"err": {"InstructionError": [0, {"Custom": 2006}]},
		"logs": ["Program log: AnchorError caused by account: prereq", "Program failed"]
	}`))

	var data interface{}
	require.NoError(t, d.Decode(&data))

	rejected := NewRejectedError(&jsonrpc.RPCError{
		Code:    -32002,
		Message: "Transaction simulation failed",
		Data:    data,
	})

	assert.Equal(t, -32002, rejected.Code)
	assert.Equal(t, "Transaction simulation failed", rejected.Reason)
	assert.Len(t, rejected.Logs, 2)
	require.NotNil(t, rejected.TransactionError)
	require.NotNil(t, rejected.TransactionError.InstructionError())
	assert.Equal(t, CustomError(2006), *rejected.TransactionError.InstructionError().CustomError())

	var err error = rejected
	assert.True(t, errors.Is(errors.Wrap(err, "submit"), ErrRejected))
	assert.Equal(t, KindRejected, KindOf(errors.Wrap(err, "submit")))
	assert.Contains(t, err.Error(), "ConstraintSeeds")

	// Errors without structured data keep the message.
	rejected = NewRejectedError(&jsonrpc.RPCError{Code: -32600, Message: "invalid request"})
	assert.Nil(t, rejected.TransactionError)
	assert.Equal(t, "rejected by network: invalid request", rejected.Error())
}

func TestParseJSONNumber(t *testing.T) {
	tc := []interface{}{
		"1",
		1.0,
		json.Number("1"),
	}
	for i, c := range tc {
		v, err := parseJSONNumber(c)
		assert.NoError(t, err)
		assert.Equal(t, 1, v, i)
	}
}

func TestIsStaleBlockhash(t *testing.T) {
	stale := &RejectedError{
		Reason:           "Transaction simulation failed: Blockhash not found",
		TransactionError: NewTransactionError(TransactionErrorBlockhashNotFound),
	}
	assert.True(t, IsStaleBlockhash(stale))
	assert.True(t, IsStaleBlockhash(errors.Wrap(stale, "submit")))

	assert.False(t, IsStaleBlockhash(&RejectedError{Reason: "airdrop limit"}))
	assert.False(t, IsStaleBlockhash(&RejectedError{TransactionError: NewTransactionError(TransactionErrorAccountInUse)}))
	assert.False(t, IsStaleBlockhash(ErrUnreachable))
	assert.False(t, IsStaleBlockhash(nil))
}
