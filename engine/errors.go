package engine

import "errors"

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidInput        = errors.New("invalid input")
	ErrProposalNotFound    = errors.New("proposal not found")
	ErrVotingPeriodExpired = errors.New("voting period expired")
	ErrProposalFinalized   = errors.New("proposal finalized")
	ErrDuplicateVote       = errors.New("duplicate vote")
)

var (
	ErrCorruptState      = errors.New("corrupt governance state")
	ErrPayloadMissing    = errors.New("payload missing")
	ErrExecutionPanicked = errors.New("execution panicked")
)

// ABCI result codes for rejected governance calls. Code 1 is reserved for
// envelope failures (decode, signature, nonce).
const (
	CodeOK                  uint32 = 0
	CodeTxInvalid           uint32 = 1
	CodeUnauthorized        uint32 = 2
	CodeInvalidInput        uint32 = 3
	CodeProposalNotFound    uint32 = 4
	CodeVotingPeriodExpired uint32 = 5
	CodeProposalFinalized   uint32 = 6
	CodeDuplicateVote       uint32 = 7
)

var errCodes = []struct {
	err  error
	code uint32
}{
	{ErrUnauthorized, CodeUnauthorized},
	{ErrInvalidInput, CodeInvalidInput},
	{ErrProposalNotFound, CodeProposalNotFound},
	{ErrVotingPeriodExpired, CodeVotingPeriodExpired},
	{ErrProposalFinalized, CodeProposalFinalized},
	{ErrDuplicateVote, CodeDuplicateVote},
}

// ErrorCode maps a lifecycle error to its result code.
func ErrorCode(err error) uint32 {
	if err == nil {
		return CodeOK
	}
	for _, c := range errCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeTxInvalid
}

// IsRejection reports whether err is a deterministic refusal of a call, as
// opposed to a storage fault.
func IsRejection(err error) bool {
	return ErrorCode(err) > CodeTxInvalid
}

type ErrorClass uint8

const (
	ClassNone ErrorClass = iota
	ClassValidation
	ClassAuthorization
	ClassState
)

func (c ErrorClass) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassAuthorization:
		return "authorization"
	case ClassState:
		return "state"
	}
	return "none"
}

func ClassOf(err error) ErrorClass {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return ClassValidation
	case errors.Is(err, ErrUnauthorized):
		return ClassAuthorization
	case errors.Is(err, ErrProposalNotFound), errors.Is(err, ErrVotingPeriodExpired),
		errors.Is(err, ErrProposalFinalized), errors.Is(err, ErrDuplicateVote):
		return ClassState
	}
	return ClassNone
}
