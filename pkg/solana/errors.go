package solana

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/ybbus/jsonrpc"
)

// TransactionErrorKey is the string key returned in a transaction error.
//
// Source: https://github.com/solana-labs/solana/blob/fc2bf2d3b669d1c6655ae48b0a05f470938f3676/sdk/src/transaction/mod.rs#L37
type TransactionErrorKey string

const (
	TransactionErrorAccountInUse            TransactionErrorKey = "AccountInUse"
	TransactionErrorAccountNotFound         TransactionErrorKey = "AccountNotFound"
	TransactionErrorProgramAccountNotFound  TransactionErrorKey = "ProgramAccountNotFound"
	TransactionErrorInsufficientFundsForFee TransactionErrorKey = "InsufficientFundsForFee"
	TransactionErrorDuplicateSignature      TransactionErrorKey = "DuplicateSignature"
	TransactionErrorBlockhashNotFound       TransactionErrorKey = "BlockhashNotFound"
	TransactionErrorInstructionError        TransactionErrorKey = "InstructionError"
	TransactionErrorSignatureFailure        TransactionErrorKey = "SignatureFailure"
	TransactionErrorSanitizeFailure         TransactionErrorKey = "SanitizeFailure"
	TransactionErrorUnsupportedVersion      TransactionErrorKey = "UnsupportedVersion"
)

// InstructionErrorKey is the string keys returned in an instruction error.
//
// Source: https://github.com/solana-labs/solana/blob/4e2754341514cd181ae3f373cc2548bd22e918b8/sdk/program/src/instruction.rs#L23
type InstructionErrorKey string

const (
	InstructionErrorInvalidArgument           InstructionErrorKey = "InvalidArgument"
	InstructionErrorInvalidInstructionData    InstructionErrorKey = "InvalidInstructionData"
	InstructionErrorInvalidAccountData        InstructionErrorKey = "InvalidAccountData"
	InstructionErrorInsufficientFunds         InstructionErrorKey = "InsufficientFunds"
	InstructionErrorIncorrectProgramID        InstructionErrorKey = "IncorrectProgramId"
	InstructionErrorMissingRequiredSignature  InstructionErrorKey = "MissingRequiredSignature"
	InstructionErrorAccountAlreadyInitialized InstructionErrorKey = "AccountAlreadyInitialized"
	InstructionErrorUninitializedAccount      InstructionErrorKey = "UninitializedAccount"
	InstructionErrorNotEnoughAccountKeys      InstructionErrorKey = "NotEnoughAccountKeys"
	InstructionErrorCustom                    InstructionErrorKey = "Custom"
)

// anchorErrors names the framework error codes an Anchor program returns as
// custom errors.
//
// Source: https://github.com/coral-xyz/anchor/blob/v0.30.1/lang/src/error.rs
var anchorErrors = map[int]string{
	100:  "InstructionMissing",
	101:  "InstructionFallbackNotFound",
	102:  "InstructionDidNotDeserialize",
	2000: "ConstraintMut",
	2002: "ConstraintSigner",
	2003: "ConstraintRaw",
	2006: "ConstraintSeeds",
	2012: "ConstraintAddress",
	3001: "AccountDiscriminatorNotFound",
	3002: "AccountDiscriminatorMismatch",
	3003: "AccountDidNotDeserialize",
	3007: "AccountOwnedByWrongProgram",
	3012: "AccountNotInitialized",
}

// CustomError is the numerical error returned by a non-system program.
type CustomError int

func (c CustomError) Error() string {
	if name, ok := anchorErrors[int(c)]; ok {
		return fmt.Sprintf("custom program error: %x (%s)", int(c), name)
	}
	return fmt.Sprintf("custom program error: %x", int(c))
}

// InstructionError indicates an instruction returned an error in a transaction.
type InstructionError struct {
	Index int
	Err   error
}

func parseInstructionError(v interface{}) (e InstructionError, err error) {
	values, ok := v.([]interface{})
	if !ok {
		return e, errors.New("unexpected instruction error format")
	}

	if len(values) != 2 {
		return e, errors.Errorf("too many entries in InstructionError tuple: %d", len(values))
	}

	e.Index, err = parseJSONNumber(values[0])
	if err != nil {
		return e, err
	}

	switch t := values[1].(type) {
	case string:
		e.Err = errors.New(t)
	case map[string]interface{}:
		k, v, ok := singleEntry(t)
		if !ok {
			e.Err = errors.New("unhandled InstructionError")
			return e, errors.Errorf("invalid instruction result size: %d", len(t))
		}

		if k != string(InstructionErrorCustom) {
			e.Err = errors.New(k)
			break
		}

		code, err := parseJSONNumber(v)
		if err != nil {
			e.Err = errors.New("unhandled CustomError")
			break
		}

		e.Err = CustomError(code)
	}

	return e, nil
}

func (i InstructionError) Error() string {
	return fmt.Sprintf("Error processing Instruction %d: %v", i.Index, i.Err)
}

func (i InstructionError) ErrorKey() InstructionErrorKey {
	if i.Err == nil {
		return ""
	}

	if i.CustomError() != nil {
		return InstructionErrorCustom
	}

	return InstructionErrorKey(i.Err.Error())
}

func (i InstructionError) CustomError() *CustomError {
	ce, ok := i.Err.(CustomError)
	if ok {
		return &ce
	}

	return nil
}

// TransactionError contains the transaction error details.
type TransactionError struct {
	transactionError error
	instructionError *InstructionError
	raw              interface{}
}

// RejectedError is returned when the network was reached and refused a
// request, e.g. a transaction failing preflight or an airdrop being denied.
type RejectedError struct {
	Reason string

	// Code is the JSON-RPC or HTTP error code, when one was returned.
	Code int

	TransactionError *TransactionError
	Logs             []string
}

func (e *RejectedError) Error() string {
	var sb strings.Builder
	sb.WriteString(ErrRejected.Error())
	if e.Reason != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Reason)
	}
	if e.TransactionError != nil {
		sb.WriteString(" (")
		sb.WriteString(e.TransactionError.Error())
		sb.WriteString(")")
	}
	return sb.String()
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// IsStaleBlockhash reports whether err is a rejection caused by the recent
// blockhash having expired before the transaction landed.
func IsStaleBlockhash(err error) bool {
	var rejected *RejectedError
	if !errors.As(err, &rejected) || rejected.TransactionError == nil {
		return false
	}
	return rejected.TransactionError.ErrorKey() == TransactionErrorBlockhashNotFound
}

// NewRejectedError converts an RPC error into a *RejectedError, extracting the
// transaction error and simulation logs when present.
func NewRejectedError(rpcErr *jsonrpc.RPCError) *RejectedError {
	rejected := &RejectedError{
		Reason: rpcErr.Message,
		Code:   rpcErr.Code,
	}

	// A failure to parse still leaves the message as the reason.
	rejected.TransactionError, _ = ParseRPCError(rpcErr)

	if data, ok := rpcErr.Data.(map[string]interface{}); ok {
		if logs, ok := data["logs"].([]interface{}); ok {
			for _, l := range logs {
				if s, ok := l.(string); ok {
					rejected.Logs = append(rejected.Logs, s)
				}
			}
		}
	}

	return rejected
}

// ParseRPCError parses the jsonrpc.RPCError returned from a method.
func ParseRPCError(err *jsonrpc.RPCError) (*TransactionError, error) {
	if err == nil {
		return nil, nil
	}

	data, ok := err.Data.(map[string]interface{})
	if !ok {
		return nil, errors.New("expected map type")
	}

	if txErr, ok := data["err"]; ok && txErr != nil {
		return ParseTransactionError(txErr)
	}

	return nil, nil
}

// ParseTransactionError parses the JSON error returned from the "err" field in various
// RPC methods and fields.
func ParseTransactionError(raw interface{}) (*TransactionError, error) {
	if raw == nil {
		return nil, nil
	}

	switch t := raw.(type) {
	case string:
		return &TransactionError{
			transactionError: errors.New(t),
			raw:              raw,
		}, nil
	case map[string]interface{}:
		k, v, ok := singleEntry(t)
		if !ok {
			return &TransactionError{
				transactionError: errors.New("unhandled transaction error"),
				raw:              raw,
			}, errors.Errorf("invalid transaction result size: %d", len(t))
		}

		if k != string(TransactionErrorInstructionError) {
			return &TransactionError{
				transactionError: errors.New(k),
				raw:              raw,
			}, nil
		}

		instructionErr, err := parseInstructionError(v)
		if err != nil {
			return &TransactionError{
				transactionError: errors.New("unhandled transaction error"),
				raw:              raw,
			}, errors.Wrap(err, "failed to parse instruction error")
		}

		return &TransactionError{
			transactionError: errors.New(string(TransactionErrorInstructionError)),
			instructionError: &instructionErr,
			raw:              raw,
		}, nil
	default:
		return nil, errors.New("unhandled error type")
	}
}

func NewTransactionError(key TransactionErrorKey) *TransactionError {
	return &TransactionError{
		transactionError: errors.New(string(key)),
		raw:              string(key),
	}
}

func (t TransactionError) Error() string {
	if t.instructionError != nil {
		return t.instructionError.Error()
	}

	if t.transactionError != nil {
		return t.transactionError.Error()
	}

	return ""
}

func (t TransactionError) ErrorKey() TransactionErrorKey {
	if t.transactionError == nil {
		return ""
	}

	return TransactionErrorKey(t.transactionError.Error())
}

func (t TransactionError) InstructionError() *InstructionError {
	return t.instructionError
}

func (t TransactionError) JSONString() (string, error) {
	b, err := json.Marshal(t.raw)
	return string(b), err
}

func singleEntry(m map[string]interface{}) (string, interface{}, bool) {
	if len(m) != 1 {
		return "", nil, false
	}
	for k, v := range m {
		return k, v, true
	}
	return "", nil, false
}

func parseJSONNumber(v interface{}) (int, error) {
	switch t := v.(type) {
	case json.Number:
		index, err := t.Int64()
		if err != nil {
			return 0, errors.Errorf("non int64 value in InstructionError tuple: %v", v)
		}
		return int(index), nil
	case string:
		index, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, errors.Errorf("non numeric value in InstructionError tuple: %v", v)
		}
		return int(index), nil
	case float64:
		return int(t), nil
	}

	return 0, errors.Errorf("non numeric value in InstructionError tuple: %v", v)
}
