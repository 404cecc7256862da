package solana

import (
	"github.com/pkg/errors"
)

// ErrorKind classifies failures surfaced by the transaction building core and
// the collaborators it talks to.
type ErrorKind uint8

const (
	KindUnknown ErrorKind = iota

	// KindInputConstraint covers malformed seeds, oversized arguments,
	// empty instruction lists and similar caller mistakes. Never retried.
	KindInputConstraint

	// KindMissingSigner indicates a required signer had no key at build time.
	KindMissingSigner

	// KindDerivationExhausted indicates no bump produced an off-curve address.
	KindDerivationExhausted

	// KindKeyNotFound indicates key material was absent or malformed.
	KindKeyNotFound

	// KindUnreachable indicates a collaborator could not be reached.
	KindUnreachable

	// KindRejected indicates a collaborator was reached and refused the request.
	KindRejected
)

var (
	ErrInputConstraint     = errors.New("input constraint violation")
	ErrMissingSigner       = errors.New("missing signer for required signature")
	ErrDerivationExhausted = errors.New("no viable program address found")
	ErrKeyNotFound         = errors.New("key not found")
	ErrUnreachable         = errors.New("collaborator unreachable")
	ErrRejected            = errors.New("rejected by network")
)

// constraintError is an input constraint violation with a specific reason.
// It matches ErrInputConstraint under errors.Is.
type constraintError string

func newConstraintError(reason string) error {
	return constraintError(reason)
}

func (e constraintError) Error() string {
	return string(e)
}

func (e constraintError) Is(target error) bool {
	return target == ErrInputConstraint
}

// NewInputConstraintError returns an error of kind KindInputConstraint. It is
// used by program bindings and routines outside this package.
func NewInputConstraintError(reason string) error {
	return newConstraintError(reason)
}

// KindOf returns the ErrorKind of err, looking through any wrapping.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrInputConstraint):
		return KindInputConstraint
	case errors.Is(err, ErrMissingSigner):
		return KindMissingSigner
	case errors.Is(err, ErrDerivationExhausted):
		return KindDerivationExhausted
	case errors.Is(err, ErrKeyNotFound):
		return KindKeyNotFound
	case errors.Is(err, ErrUnreachable):
		return KindUnreachable
	case errors.Is(err, ErrRejected):
		return KindRejected
	}

	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return KindRejected
	}

	return KindUnknown
}

func (k ErrorKind) String() string {
	switch k {
	case KindInputConstraint:
		return "input_constraint"
	case KindMissingSigner:
		return "missing_signer"
	case KindDerivationExhausted:
		return "derivation_exhausted"
	case KindKeyNotFound:
		return "key_not_found"
	case KindUnreachable:
		return "unreachable"
	case KindRejected:
		return "rejected"
	}
	return "unknown"
}
