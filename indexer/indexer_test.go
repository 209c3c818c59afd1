package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	"github.com/mnaamani/joystream/types"
	"github.com/stretchr/testify/require"
)

type fakeChain struct {
	blocks []*coretypes.ResultBlockResults
}

func (f *fakeChain) add(txs []*abci.ExecTxResult, events ...abci.Event) {
	f.blocks = append(f.blocks, &coretypes.ResultBlockResults{
		Height:              int64(len(f.blocks) + 1),
		TxsResults:          txs,
		FinalizeBlockEvents: events,
	})
}

func (f *fakeChain) Status(ctx context.Context) (*coretypes.ResultStatus, error) {
	return &coretypes.ResultStatus{SyncInfo: coretypes.SyncInfo{LatestBlockHeight: int64(len(f.blocks))}}, nil
}

func (f *fakeChain) BlockResults(ctx context.Context, height *int64) (*coretypes.ResultBlockResults, error) {
	if *height < 1 || *height > int64(len(f.blocks)) {
		return nil, errors.New("height out of range")
	}
	return f.blocks[*height-1], nil
}

func okTx(events ...abci.Event) *abci.ExecTxResult {
	return &abci.ExecTxResult{Events: events}
}

func created(id uint64, title string) abci.Event {
	return types.EncodeEventProposalCreated(&types.EventProposalCreated{
		Proposal:     id,
		Proposer:     65536,
		PayloadType:  1,
		VotingPeriod: 10,
		Quorum:       "count:1",
		Created:      1,
		Title:        title,
	})
}

func openIndexer(t *testing.T, path string, cli ChainClient) *ChainIndexer {
	db, err := gorm.Open("sqlite3", path)
	require.NoError(t, err)
	c, err := newChainIndexer(cmtlog.NewNopLogger(), db, cli)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func governanceChain() *fakeChain {
	f := &fakeChain{}
	f.add([]*abci.ExecTxResult{
		okTx(created(1, "first")),
		{Code: 3, Events: []abci.Event{created(7, "rejected")}},
	})
	f.add([]*abci.ExecTxResult{
		okTx(types.EncodeEventProposalVoted(&types.EventProposalVoted{Proposal: 1, Voter: 65536, Kind: types.VoteApprove})),
	},
		types.EncodeEventProposalFinalized(&types.TallyResult{ProposalID: 1, Approvals: 1, Status: types.ProposalStatusApproved, FinalizedAt: 2}),
		types.EncodeEventProposalExecuted(&types.EventProposalExecuted{Proposal: 1, PayloadType: 1, Status: types.ProposalStatusExecuted}),
	)
	f.add([]*abci.ExecTxResult{
		okTx(created(2, "second")),
		okTx(types.EncodeEventProposalVetoed(&types.EventProposalClosed{Proposal: 2, Caller: 65537})),
	})
	return f
}

func TestSync(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indexer.db")
	c := openIndexer(t, path, governanceChain())
	require.Equal(t, int64(1), c.Height)

	require.NoError(t, c.Sync(context.Background()))
	require.Equal(t, int64(4), c.Height)

	p, err := c.getProposalById(1)
	require.NoError(t, err)
	require.Equal(t, "first", p.Title)
	require.Equal(t, uint8(types.ProposalStatusExecuted), p.Status)
	require.Equal(t, uint64(2), p.CloseHeight)

	p, err = c.getProposalById(2)
	require.NoError(t, err)
	require.Equal(t, types.ProposalStatusVetoed.String(), p.StatusName)
	require.Equal(t, uint64(65537), p.Closer)

	_, err = c.getProposalById(7)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	tally, err := c.getTally(1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), tally.Approvals)
	tally, err = c.getTally(2)
	require.NoError(t, err)
	require.Nil(t, tally)

	proposals, total, err := c.getProposals(ProposalFilter{Status: uint8(types.ProposalStatusVetoed)}, 0, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(1), total)
	require.Len(t, proposals, 1)

	votes, total, err := c.getVotes(VoteFilter{Proposal: 1}, 0, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(1), total)
	require.Equal(t, types.VoteApprove.String(), votes[0].KindName)

	// a second indexer resumes after the last stored height
	resumed := openIndexer(t, path, governanceChain())
	require.Equal(t, int64(4), resumed.Height)
}

func TestBadEventRollsBackBlock(t *testing.T) {
	f := &fakeChain{}
	f.add([]*abci.ExecTxResult{
		okTx(created(1, "kept")),
		okTx(abci.Event{Type: types.EventProposalVotedType, Attributes: []abci.EventAttribute{{Key: "proposal", Value: "x"}}}),
	})
	c := openIndexer(t, filepath.Join(t.TempDir(), "indexer.db"), f)

	require.ErrorIs(t, c.Sync(context.Background()), errDecodeEvent)
	require.Equal(t, int64(1), c.Height)

	_, total, err := c.getProposals(ProposalFilter{}, 0, 10)
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := openIndexer(t, filepath.Join(t.TempDir(), "indexer.db"), governanceChain())
	require.NoError(t, c.Sync(context.Background()))
	h := NewService("", c).Handler()

	do := func(method, path string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodPost, "/getProposals", GetProposalsReq{PageSize: 1})
	require.Equal(t, http.StatusOK, w.Code)
	var proposals GetProposalsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &proposals))
	require.Equal(t, uint64(2), proposals.Total)
	require.Len(t, proposals.Proposals, 1)
	require.Equal(t, uint64(2), proposals.Proposals[0].Id)

	w = do(http.MethodPost, "/getVotes", GetVotesReq{Voter: 65536})
	require.Equal(t, http.StatusOK, w.Code)
	var votes GetVotesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &votes))
	require.Equal(t, uint64(1), votes.Total)

	w = do(http.MethodGet, "/proposals/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var info ProposalInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	require.Equal(t, "first", info.Proposal.Title)
	require.NotNil(t, info.Tally)
	require.Len(t, info.Votes, 1)

	require.Equal(t, http.StatusNotFound, do(http.MethodGet, "/proposals/9", nil).Code)
	require.Equal(t, http.StatusBadRequest, do(http.MethodGet, "/proposals/abc", nil).Code)
	require.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/getVotes", "not an object").Code)
}
