package app

import (
	"context"
	"errors"
	"fmt"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/mnaamani/joystream/engine"
	"github.com/mnaamani/joystream/state"
	"github.com/mnaamani/joystream/tx"
	"github.com/mnaamani/joystream/types"
)

var (
	ErrUnexpectedTxProcess = errors.New("unexpected tx process")
	ErrNoPendingState      = errors.New("commit without finalized block")
)

func (app *JoyApp) parseTx(st *state.State, txDat []byte, allowNonceGap bool) (btx *tx.GovTx, err error) {
	btx, err = tx.UnmarshalGovTx(txDat)
	if err != nil {
		return
	}
	_, err = st.Verify(btx, allowNonceGap)
	return
}

func (app *JoyApp) CheckTx(ctx context.Context, check *abcitypes.RequestCheckTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: engine.CodeOK}
	st := app.db.State()
	btx, err := app.parseTx(st, check.Tx, true)
	if err != nil {
		app.logger.Info("check tx parse fail", "err", err)
		res.Code = engine.CodeTxInvalid
		res.Log = err.Error()
		return res, nil
	}
	h, ok := app.txHdlrs[btx.Type]
	if !ok {
		app.logger.Error("unsupported tx", "type", btx.Type)
		res.Code = engine.CodeTxInvalid
		res.Log = tx.ErrUnsupportedTxType.Error()
		return res, nil
	}
	res, err = h.Check(ctx, st, btx)
	if err != nil {
		app.logger.Error("check tx fail", "err", err)
		res = &abcitypes.ResponseCheckTx{Code: engine.CodeTxInvalid, Log: err.Error()}
		err = nil
	}
	return
}

// deliverTx applies one transaction to st. Transactions that do not parse
// or verify yield a CodeTxInvalid result and leave st untouched. A
// verified transaction always consumes its nonce, even when the
// governance call is rejected. Only FinalizeBlock delivers with simulate
// unset, so metrics and logs count committed blocks once.
func (app *JoyApp) deliverTx(ctx context.Context, st *state.State, stx []byte, height uint64, simulate bool) (*abcitypes.ExecTxResult, error) {
	btx, err := app.parseTx(st, stx, false)
	if err != nil {
		return &abcitypes.ExecTxResult{Code: engine.CodeTxInvalid, Log: err.Error()}, nil
	}
	h, ok := app.txHdlrs[btx.Type]
	if !ok {
		return &abcitypes.ExecTxResult{Code: engine.CodeTxInvalid, Log: tx.ErrUnsupportedTxType.Error()}, nil
	}
	result, err := h.Deliver(ctx, st, height, btx, simulate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedTxProcess, err)
	}
	if err = st.IncNonce(btx.Account); err != nil {
		return nil, err
	}
	if result.Code != engine.CodeOK && !simulate {
		app.logger.Info("governance call rejected", "type", btx.Type.String(), "account", btx.Account, "code", result.Code, "log", result.Log)
	}
	return result, nil
}

func (app *JoyApp) PrepareProposal(ctx context.Context, proposal *abcitypes.RequestPrepareProposal) (res *abcitypes.ResponsePrepareProposal, err error) {
	height := uint64(proposal.Height)
	st := app.db.NewState()
	st.SetHeight(height)
	var size int64
	txs := make([][]byte, 0, len(proposal.Txs))
	for _, stx := range proposal.Txs {
		if proposal.MaxTxBytes > 0 && size+int64(len(stx)) > proposal.MaxTxBytes {
			break
		}
		stTmp := st.Clone()
		result, err := app.deliverTx(ctx, stTmp, stx, height, true)
		if err != nil {
			app.logger.Error("prepare tx fail", "err", err)
			continue
		}
		if result.Code == engine.CodeTxInvalid {
			app.logger.Info("prepare drop tx", "log", result.Log)
			continue
		}
		st = stTmp
		size += int64(len(stx))
		txs = append(txs, stx)
	}
	return &abcitypes.ResponsePrepareProposal{Txs: txs}, nil
}

func (app *JoyApp) ProcessProposal(ctx context.Context, proposal *abcitypes.RequestProcessProposal) (res *abcitypes.ResponseProcessProposal, err error) {
	res = &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}
	height := uint64(proposal.Height)
	st := app.db.NewState()
	st.SetHeight(height)
	for i, stx := range proposal.Txs {
		result, err := app.deliverTx(ctx, st, stx, height, true)
		if err != nil {
			app.logger.Error("process fail", "height", height, "tx", i, "err", err)
			return res, nil
		}
		if result.Code == engine.CodeTxInvalid {
			app.logger.Info("proposal carries invalid tx", "height", height, "tx", i, "log", result.Log)
			return res, nil
		}
	}
	res.Status = abcitypes.ResponseProcessProposal_ACCEPT
	return res, nil
}

func (app *JoyApp) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	height := uint64(req.Height)
	app.logger.Info("FinalizeBlock", "height", height, "txs", len(req.Txs))
	st := app.db.NewState()
	st.SetHeight(height)

	results := make([]*abcitypes.ExecTxResult, len(req.Txs))
	for i, stx := range req.Txs {
		result, err := app.deliverTx(ctx, st, stx, height, false)
		if err != nil {
			app.logger.Error("deliver tx fail", "height", height, "tx", i, "err", err)
			return nil, err
		}
		results[i] = result
	}

	report, err := app.newEngine(st, false).Advance(height)
	if err != nil {
		app.logger.Error("advance proposals fail", "height", height, "err", err)
		return nil, err
	}

	h, err := st.Update()
	if err != nil {
		app.logger.Error("state update hash fail", "err", err)
		return nil, err
	}
	app.st = st
	return &abcitypes.ResponseFinalizeBlock{
		TxResults: results,
		AppHash:   h.Bytes(),
		Events:    stepEvents(report),
	}, nil
}

// stepEvents reports every tally decision of the step followed by the
// execution outcome of the approved ones.
func stepEvents(report *engine.StepReport) []abcitypes.Event {
	events := make([]abcitypes.Event, 0, len(report.Tallies)+len(report.Executions))
	for i := range report.Tallies {
		events = append(events, types.EncodeEventProposalFinalized(&report.Tallies[i]))
	}
	for _, exec := range report.Executions {
		events = append(events, types.EncodeEventProposalExecuted(&types.EventProposalExecuted{
			Proposal:    exec.ProposalID,
			PayloadType: exec.PayloadType,
			Status:      exec.Status,
			Reason:      exec.Reason,
		}))
	}
	return events
}

func (app *JoyApp) Commit(ctx context.Context, commit *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	if app.st == nil {
		return nil, ErrNoPendingState
	}
	h, err := app.db.SetState(app.st)
	if err != nil {
		return nil, err
	}
	app.logger.Info("Commit", "height", app.st.Height(), "hash", h.Hex())
	app.st = nil
	return &abcitypes.ResponseCommit{}, nil
}
