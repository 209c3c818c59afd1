package tx

import (
	"encoding/json"
	"fmt"

	"github.com/mnaamani/joystream/types"
)

// GovTx is the signed envelope of every governance operation. Account is
// the index of the sending account and Sig covers SigData.
type GovTx struct {
	Version uint8     `json:"version"`
	Type    GovTxType `json:"type"`
	Nonce   uint64    `json:"nonce"`
	Account uint64    `json:"account"`
	Tx      any       `json:"tx"`
	Sig     [][]byte  `json:"sig"`
}

type CreateProposalTx struct {
	// Parameters left zero are filled from the governance params.
	Parameters  types.Parameters `json:"parameters"`
	Title       []byte           `json:"title"`
	Body        []byte           `json:"body"`
	PayloadType uint32           `json:"payloadType"`
	Payload     []byte           `json:"payload"`
}

type VoteTx struct {
	Proposal uint64         `json:"proposal"`
	Kind     types.VoteKind `json:"kind"`
}

type CancelProposalTx struct {
	Proposal uint64 `json:"proposal"`
}

type VetoProposalTx struct {
	Proposal uint64 `json:"proposal"`
}

type govTxTmpl[Tx any] struct {
	Version uint8     `json:"version"`
	Type    GovTxType `json:"type"`
	Nonce   uint64    `json:"nonce"`
	Account uint64    `json:"account"`
	Tx      Tx        `json:"tx"`
	Sig     [][]byte  `json:"sig"`
}

func NewGovTx(tp GovTxType, account, nonce uint64, body any) *GovTx {
	return &GovTx{
		Version: GovTxVersion1,
		Type:    tp,
		Nonce:   nonce,
		Account: account,
		Tx:      body,
	}
}

// SigData is the message an account signs: the tx with its signatures
// replaced by the chain id.
func (tx *GovTx) SigData(ext []byte) (dat []byte, err error) {
	ntx := *tx
	ntx.Sig = [][]byte{ext}
	dat, err = json.Marshal(ntx)
	return
}

func parseGovTxType(dat []byte) GovTxType {
	var tx struct {
		Type GovTxType `json:"type"`
	}
	err := json.Unmarshal(dat, &tx)
	if err != nil {
		return GovTxTypeUnknown
	}
	return tx.Type
}

func unmarshalGovTx[Tx any](dat []byte) (btx *GovTx, err error) {
	var txt govTxTmpl[Tx]
	err = json.Unmarshal(dat, &txt)
	if err != nil {
		return
	}
	if txt.Version != GovTxVersion1 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedTxVersion, txt.Version)
	}
	btx = new(GovTx)
	btx.Version = txt.Version
	btx.Type = txt.Type
	btx.Nonce = txt.Nonce
	btx.Account = txt.Account
	btx.Tx = &txt.Tx
	btx.Sig = txt.Sig
	return
}

func UnmarshalGovTx(dat []byte) (btx *GovTx, err error) {
	tp := parseGovTxType(dat)
	switch tp {
	case GovTxTypeCreateProposal:
		return unmarshalGovTx[CreateProposalTx](dat)
	case GovTxTypeVote:
		return unmarshalGovTx[VoteTx](dat)
	case GovTxTypeCancelProposal:
		return unmarshalGovTx[CancelProposalTx](dat)
	case GovTxTypeVetoProposal:
		return unmarshalGovTx[VetoProposalTx](dat)
	default:
		err = ErrUnsupportedTxType
	}
	return
}

func MarshalGovTx(btx *GovTx) (dat []byte, err error) {
	return json.Marshal(btx)
}
