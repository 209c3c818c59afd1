package tx

import (
	"errors"
	"fmt"
)

type GovTxType uint8

const (
	GovTxTypeUnknown        GovTxType = 0
	GovTxTypeCreateProposal GovTxType = 1
	GovTxTypeVote           GovTxType = 2
	GovTxTypeCancelProposal GovTxType = 3
	GovTxTypeVetoProposal   GovTxType = 4
)

func (t GovTxType) String() string {
	switch t {
	case GovTxTypeCreateProposal:
		return "create_proposal"
	case GovTxTypeVote:
		return "vote"
	case GovTxTypeCancelProposal:
		return "cancel_proposal"
	case GovTxTypeVetoProposal:
		return "veto_proposal"
	}
	return fmt.Sprintf("GovTxType(%d)", uint8(t))
}

const (
	GovTxVersion0 uint8 = 0
	GovTxVersion1 uint8 = 1
)

var (
	ErrInvalidTx            = errors.New("invalid tx")
	ErrUnsupportedTxType    = errors.New("unsupported tx type")
	ErrUnmatchedTxType      = errors.New("unmatched tx type")
	ErrUnsupportedTxVersion = errors.New("unsupported tx version")
)
