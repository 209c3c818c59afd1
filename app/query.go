package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/mnaamani/joystream/state"
	"github.com/mnaamani/joystream/types"
)

const (
	CodeQueryNotFound   uint32 = 1
	CodeQueryBadRequest uint32 = 2
	CodeQueryInternal   uint32 = 3
	CodeQueryNoPath     uint32 = 404
)

var errBadIndex = errors.New("index must be at most 8 big-endian bytes")

func (app *JoyApp) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	path := req.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	q, ok := app.queriers[path]
	if !ok {
		res = &abcitypes.ResponseQuery{}
		res.Code = CodeQueryNoPath
		return
	}
	res, err = q.Query(ctx, req)
	return
}

type Querier interface {
	Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error)
}

// DecodeIndex reads a big-endian unsigned integer of up to 8 bytes.
func DecodeIndex(dat []byte) (idx uint64, err error) {
	if len(dat) > 8 {
		return 0, errBadIndex
	}
	for _, v := range dat {
		idx <<= 8
		idx |= uint64(v)
	}
	return
}

// EncodeIndex is the shortest big-endian form of idx.
func EncodeIndex(idx uint64) []byte {
	var dat []byte
	for ; idx > 0; idx >>= 8 {
		dat = append([]byte{byte(idx)}, dat...)
	}
	return dat
}

type AccountQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewAccountQuerier(db *state.StateDB, logger cmtlog.Logger) (q *AccountQuerier) {
	q = &AccountQuerier{
		db:     db,
		logger: logger,
	}
	return
}

// Query takes a 20 byte address or an account index.
func (q *AccountQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	var a *state.Account
	var height uint64
	if len(req.Data) == 20 {
		a, height, _ = q.db.GetAccountByAddress(req.Data)
	} else if idx, err1 := DecodeIndex(req.Data); err1 == nil {
		a, height, _ = q.db.GetAccountByIndex(idx)
	}
	if a != nil {
		res.Value, _ = a.MarshalJSON()
		res.Height = int64(height)
	} else {
		res.Code = CodeQueryNotFound
	}
	return
}

// stateQuerier answers a query by reading the committed state.
type stateQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
	read   func(st *state.State, data []byte) (any, error)
}

func (q *stateQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	var v any
	err = q.db.View(func(st *state.State) error {
		res.Height = int64(st.Height())
		var err error
		v, err = q.read(st, req.Data)
		return err
	})
	switch {
	case errors.Is(err, errBadIndex):
		res.Code = CodeQueryBadRequest
		res.Log = err.Error()
		return res, nil
	case err != nil:
		q.logger.Error("query fail", "path", req.Path, "err", err)
		res.Code = CodeQueryInternal
		res.Log = err.Error()
		return res, nil
	case v == nil:
		res.Code = CodeQueryNotFound
		return res, nil
	}
	res.Value, err = json.Marshal(v)
	return
}

// ProposalView is the /proposals/ answer.
type ProposalView struct {
	Proposal *types.Proposal    `json:"proposal"`
	Payload  *types.Payload     `json:"payload"`
	Tally    *types.TallyResult `json:"tally,omitempty"`
	Votes    int                `json:"votes"`
}

func NewProposalQuerier(db *state.StateDB, logger cmtlog.Logger) Querier {
	return &stateQuerier{db: db, logger: logger, read: func(st *state.State, data []byte) (any, error) {
		id, err := DecodeIndex(data)
		if err != nil {
			return nil, err
		}
		p, err := st.Proposal(id)
		if err != nil || p == nil {
			return nil, err
		}
		view := &ProposalView{Proposal: p}
		if view.Payload, err = st.Payload(id); err != nil {
			return nil, err
		}
		if view.Tally, err = st.TallyResult(id); err != nil {
			return nil, err
		}
		votes, err := st.Votes(id)
		if err != nil {
			return nil, err
		}
		view.Votes = len(votes)
		return view, nil
	}}
}

func NewVotesQuerier(db *state.StateDB, logger cmtlog.Logger) Querier {
	return &stateQuerier{db: db, logger: logger, read: func(st *state.State, data []byte) (any, error) {
		id, err := DecodeIndex(data)
		if err != nil {
			return nil, err
		}
		p, err := st.Proposal(id)
		if err != nil || p == nil {
			return nil, err
		}
		votes, err := st.Votes(id)
		if err != nil {
			return nil, err
		}
		if votes == nil {
			votes = []types.Vote{}
		}
		return votes, nil
	}}
}

func NewTallyQuerier(db *state.StateDB, logger cmtlog.Logger) Querier {
	return &stateQuerier{db: db, logger: logger, read: func(st *state.State, data []byte) (any, error) {
		id, err := DecodeIndex(data)
		if err != nil {
			return nil, err
		}
		t, err := st.TallyResult(id)
		if err != nil || t == nil {
			return nil, err
		}
		return t, nil
	}}
}

func NewActiveQuerier(db *state.StateDB, logger cmtlog.Logger) Querier {
	return &stateQuerier{db: db, logger: logger, read: func(st *state.State, _ []byte) (any, error) {
		ids, err := st.ActiveIDs()
		if err != nil {
			return nil, err
		}
		if ids == nil {
			ids = []uint64{}
		}
		return ids, nil
	}}
}

func NewParamsQuerier(db *state.StateDB, logger cmtlog.Logger) Querier {
	return &stateQuerier{db: db, logger: logger, read: func(st *state.State, _ []byte) (any, error) {
		return st.Params()
	}}
}
