// Package handler applies decoded governance transactions to a block state.
package handler

import (
	"context"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/mnaamani/joystream/engine"
	"github.com/mnaamani/joystream/state"
	"github.com/mnaamani/joystream/tx"
)

// EngineFactory builds the proposal engine over one state. A simulated
// engine must not report metrics.
type EngineFactory func(st *state.State, simulate bool) *engine.Engine

type TxHandler interface {
	// Check runs the transaction against a throwaway copy of st.
	Check(ctx context.Context, st *state.State, btx *tx.GovTx) (res *abcitypes.ResponseCheckTx, err error)
	// Deliver applies the transaction at step height. A rejected governance
	// call is reported through the result code; err is a storage fault.
	// Proposal building and validation passes deliver with simulate set.
	Deliver(ctx context.Context, st *state.State, height uint64, btx *tx.GovTx, simulate bool) (res *abcitypes.ExecTxResult, err error)
}

type deliverFunc func(e *engine.Engine, height uint64, btx *tx.GovTx) ([]abcitypes.Event, error)

type baseHandler struct {
	logger    cmtlog.Logger
	newEngine EngineFactory
	deliver   deliverFunc
}

func (h *baseHandler) Check(ctx context.Context, st *state.State, btx *tx.GovTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: engine.CodeOK}
	events, err := h.deliver(h.newEngine(st.Clone(), true), st.Height()+1, btx)
	r := result(events, err)
	if r == nil {
		return nil, err
	}
	err = nil
	if r.Code != engine.CodeOK {
		h.logger.Info("CheckTx rejected", "type", btx.Type, "code", r.Code, "log", r.Log)
		res.Code = r.Code
		res.Log = r.Log
	}
	return
}

func (h *baseHandler) Deliver(ctx context.Context, st *state.State, height uint64, btx *tx.GovTx, simulate bool) (res *abcitypes.ExecTxResult, err error) {
	events, err := h.deliver(h.newEngine(st, simulate), height, btx)
	res = result(events, err)
	if res == nil {
		return nil, err
	}
	return res, nil
}

// result turns a delivery outcome into a tx result, or nil when err is not
// a rejection.
func result(events []abcitypes.Event, err error) *abcitypes.ExecTxResult {
	res := &abcitypes.ExecTxResult{Code: engine.CodeOK}
	if err != nil {
		if !engine.IsRejection(err) {
			return nil
		}
		res.Code = engine.ErrorCode(err)
		res.Codespace = engine.ClassOf(err).String()
		res.Log = err.Error()
		return res
	}
	res.Events = events
	return res
}
