package handler

import (
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/mnaamani/joystream/engine"
	"github.com/mnaamani/joystream/tx"
	"github.com/mnaamani/joystream/types"
)

func NewCreateProposalTxHandler(logger cmtlog.Logger, newEngine EngineFactory) TxHandler {
	return &baseHandler{
		logger:    logger.With("module", "createProposalTx"),
		newEngine: newEngine,
		deliver:   deliverCreateProposal,
	}
}

func deliverCreateProposal(e *engine.Engine, height uint64, btx *tx.GovTx) ([]abcitypes.Event, error) {
	ptx := btx.Tx.(*tx.CreateProposalTx)
	id, err := e.CreateProposal(height, btx.Account, &engine.CreateRequest{
		Parameters:  ptx.Parameters,
		Title:       ptx.Title,
		Body:        ptx.Body,
		PayloadType: ptx.PayloadType,
		Payload:     ptx.Payload,
	})
	if err != nil {
		return nil, err
	}
	p, err := e.Proposal(id)
	if err != nil {
		return nil, err
	}
	return []abcitypes.Event{types.EncodeEventProposalCreated(&types.EventProposalCreated{
		Proposal:     p.ID,
		Proposer:     p.Proposer,
		PayloadType:  p.PayloadType,
		VotingPeriod: p.Parameters.VotingPeriod,
		Quorum:       p.Parameters.Quorum.String(),
		Created:      p.Created,
		Title:        string(p.Title),
	})}, nil
}

func NewVoteTxHandler(logger cmtlog.Logger, newEngine EngineFactory) TxHandler {
	return &baseHandler{
		logger:    logger.With("module", "voteTx"),
		newEngine: newEngine,
		deliver:   deliverVote,
	}
}

func deliverVote(e *engine.Engine, height uint64, btx *tx.GovTx) ([]abcitypes.Event, error) {
	vtx := btx.Tx.(*tx.VoteTx)
	if err := e.Vote(height, btx.Account, vtx.Proposal, vtx.Kind); err != nil {
		return nil, err
	}
	return []abcitypes.Event{types.EncodeEventProposalVoted(&types.EventProposalVoted{
		Proposal: vtx.Proposal,
		Voter:    btx.Account,
		Kind:     vtx.Kind,
	})}, nil
}

func NewCancelProposalTxHandler(logger cmtlog.Logger, newEngine EngineFactory) TxHandler {
	return &baseHandler{
		logger:    logger.With("module", "cancelProposalTx"),
		newEngine: newEngine,
		deliver:   deliverCancel,
	}
}

func deliverCancel(e *engine.Engine, _ uint64, btx *tx.GovTx) ([]abcitypes.Event, error) {
	ptx := btx.Tx.(*tx.CancelProposalTx)
	if err := e.CancelProposal(btx.Account, ptx.Proposal); err != nil {
		return nil, err
	}
	return []abcitypes.Event{types.EncodeEventProposalCancelled(&types.EventProposalClosed{
		Proposal: ptx.Proposal,
		Caller:   btx.Account,
	})}, nil
}

func NewVetoProposalTxHandler(logger cmtlog.Logger, newEngine EngineFactory) TxHandler {
	return &baseHandler{
		logger:    logger.With("module", "vetoProposalTx"),
		newEngine: newEngine,
		deliver:   deliverVeto,
	}
}

func deliverVeto(e *engine.Engine, _ uint64, btx *tx.GovTx) ([]abcitypes.Event, error) {
	vtx := btx.Tx.(*tx.VetoProposalTx)
	if err := e.VetoProposal(btx.Account, vtx.Proposal); err != nil {
		return nil, err
	}
	return []abcitypes.Event{types.EncodeEventProposalVetoed(&types.EventProposalClosed{
		Proposal: vtx.Proposal,
		Caller:   btx.Account,
	})}, nil
}
