package app

import (
	"context"
	"fmt"
	"path/filepath"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cometbft/cometbft/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/mnaamani/joystream/codex"
	"github.com/mnaamani/joystream/config"
	"github.com/mnaamani/joystream/engine"
	"github.com/mnaamani/joystream/state"
	"github.com/mnaamani/joystream/tx"
	"github.com/mnaamani/joystream/tx/handler"
	"github.com/mnaamani/joystream/types"
	"github.com/prometheus/client_golang/prometheus"
)

var _ abcitypes.Application = &JoyApp{}

// JoyApp runs the proposal engine as a CometBFT application. Every block is
// one governance step: its transactions are applied in order and the
// active proposals are tallied at the block height.
type JoyApp struct {
	cfg    *config.AppConfig
	logger cmtlog.Logger

	db       *state.StateDB
	txHdlrs  map[tx.GovTxType]handler.TxHandler
	queriers map[string]Querier
	metrics  *engine.Metrics

	st *state.State
}

// NewJoyApp opens the state under the home data directory. Engine metrics
// are registered on reg when it is not nil.
func NewJoyApp(cfg *config.AppConfig, logger cmtlog.Logger, reg prometheus.Registerer) (app *JoyApp, err error) {
	logger = logger.With("module", "app")

	db, err := state.NewStateDB(filepath.Join(cfg.Home, "data"), logger)
	if err != nil {
		return nil, err
	}
	return NewJoyAppWithDB(cfg, db, logger, reg), nil
}

func NewJoyAppWithDB(cfg *config.AppConfig, db *state.StateDB, logger cmtlog.Logger, reg prometheus.Registerer) *JoyApp {
	app := &JoyApp{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		queriers: make(map[string]Querier),
		metrics:  engine.NewMetrics(reg),
	}
	app.registerTxHandler()
	app.registerQuerier()
	return app
}

// Start checks that the block store reaches the restored state height.
func (app *JoyApp) Start(bs *store.BlockStore) error {
	height := app.db.Header().Height
	if height > 0 && bs.LoadBlockMeta(int64(height)) == nil {
		return fmt.Errorf("block store has no block at state height %d", height)
	}
	app.logger.Info("joy app started", "height", height)
	return nil
}

func (app *JoyApp) Stop() {
	err := app.db.Close()
	if err != nil {
		app.logger.Error("close db fail", "err", err)
	}
	app.logger.Info("joy app stopped")
}

func (app *JoyApp) newEngine(st *state.State, simulate bool) *engine.Engine {
	logger := app.logger
	opts := []engine.Option{}
	if simulate {
		logger = cmtlog.NewNopLogger()
	} else {
		opts = append(opts, engine.WithMetrics(app.metrics))
	}
	opts = append(opts, engine.WithLogger(logger))
	e := engine.New(st, st, codex.NewRegistry(st, logger), opts...)
	e.SetInvariantChecks(app.cfg.InvariantChecks)
	return e
}

func (app *JoyApp) registerTxHandler() {
	app.txHdlrs = map[tx.GovTxType]handler.TxHandler{
		tx.GovTxTypeCreateProposal: handler.NewCreateProposalTxHandler(app.logger, app.newEngine),
		tx.GovTxTypeVote:           handler.NewVoteTxHandler(app.logger, app.newEngine),
		tx.GovTxTypeCancelProposal: handler.NewCancelProposalTxHandler(app.logger, app.newEngine),
		tx.GovTxTypeVetoProposal:   handler.NewVetoProposalTxHandler(app.logger, app.newEngine),
	}
}

func (app *JoyApp) registerQuerier() {
	app.queriers["/accounts/"] = NewAccountQuerier(app.db, app.logger)
	app.queriers["/proposals/"] = NewProposalQuerier(app.db, app.logger)
	app.queriers["/votes/"] = NewVotesQuerier(app.db, app.logger)
	app.queriers["/tally/"] = NewTallyQuerier(app.db, app.logger)
	app.queriers["/active/"] = NewActiveQuerier(app.db, app.logger)
	app.queriers["/params/"] = NewParamsQuerier(app.db, app.logger)
}

// InitChain stores the genesis params, one member account per validator
// and the extra genesis accounts.
func (app *JoyApp) InitChain(_ context.Context, chain *abcitypes.RequestInitChain) (res *abcitypes.ResponseInitChain, err error) {
	gs, err := types.ParseGenesisAppState(chain.AppStateBytes)
	if err != nil {
		app.logger.Error("InitChain parse app state fail", "err", err)
		return nil, err
	}
	st := app.db.NewState()
	st.SetChainId(chain.ChainId)
	if err = st.SetParams(gs.Params); err != nil {
		return nil, err
	}
	for _, v := range chain.Validators {
		var acnt state.Account
		acnt.SetPubKey(v.PubKey.GetEd25519())
		acnt.Roles = types.RoleMember
		err = st.AddAccount(&acnt)
		if err != nil {
			app.logger.Error("InitChain add account fail", "err", err)
			return nil, err
		}
	}
	for _, a := range gs.Accounts {
		var acnt state.Account
		acnt.SetPubKey(a.PubKey)
		acnt.Roles = a.Roles
		if err = st.AddAccount(&acnt); err != nil {
			app.logger.Error("InitChain add genesis account fail", "err", err)
			return nil, err
		}
	}
	var h common.Hash
	_, err = st.Update()
	if err != nil {
		app.logger.Error("InitChain update state fail", "err", err)
		return nil, err
	}
	h, err = app.db.SetState(st)
	if err != nil {
		app.logger.Error("InitChain apply state fail", "err", err)
		return nil, err
	}
	return &abcitypes.ResponseInitChain{
		AppHash: h.Bytes(),
	}, nil
}

func (app *JoyApp) Info(ctx context.Context, info *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	header := app.db.Header()
	return &abcitypes.ResponseInfo{
		LastBlockHeight:  int64(header.Height),
		LastBlockAppHash: header.Hash,
	}, nil
}

func (app *JoyApp) ExtendVote(_ context.Context, extend *abcitypes.RequestExtendVote) (*abcitypes.ResponseExtendVote, error) {
	return &abcitypes.ResponseExtendVote{}, nil
}

func (app *JoyApp) VerifyVoteExtension(_ context.Context, verify *abcitypes.RequestVerifyVoteExtension) (*abcitypes.ResponseVerifyVoteExtension, error) {
	return &abcitypes.ResponseVerifyVoteExtension{Status: abcitypes.ResponseVerifyVoteExtension_ACCEPT}, nil
}

func (app *JoyApp) ApplySnapshotChunk(context.Context, *abcitypes.RequestApplySnapshotChunk) (*abcitypes.ResponseApplySnapshotChunk, error) {
	return &abcitypes.ResponseApplySnapshotChunk{}, nil
}

func (app *JoyApp) ListSnapshots(context.Context, *abcitypes.RequestListSnapshots) (*abcitypes.ResponseListSnapshots, error) {
	return &abcitypes.ResponseListSnapshots{}, nil
}

func (app *JoyApp) LoadSnapshotChunk(context.Context, *abcitypes.RequestLoadSnapshotChunk) (*abcitypes.ResponseLoadSnapshotChunk, error) {
	return &abcitypes.ResponseLoadSnapshotChunk{}, nil
}

func (app *JoyApp) OfferSnapshot(context.Context, *abcitypes.RequestOfferSnapshot) (*abcitypes.ResponseOfferSnapshot, error) {
	return &abcitypes.ResponseOfferSnapshot{}, nil
}
