package engine

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/mnaamani/joystream/types"
	"github.com/stretchr/testify/require"
)

const (
	tagNoop  uint32 = 0
	tagFail  uint32 = 1
	tagPanic uint32 = 2
	tagLong  uint32 = 3
)

type fakeCaps struct {
	roles map[uint64]types.Role
	total uint64
}

func newFakeCaps() *fakeCaps {
	c := &fakeCaps{roles: make(map[uint64]types.Role)}
	for i := uint64(1); i <= 4; i++ {
		c.roles[i] = types.RoleMember
	}
	c.roles[9] = types.RoleVeto
	c.total = 4
	return c
}

func (c *fakeCaps) CanPropose(who uint64) (bool, error) { return c.roles[who].Has(types.RoleProposer), nil }
func (c *fakeCaps) CanVote(who uint64) (bool, error)    { return c.roles[who].Has(types.RoleVoter), nil }
func (c *fakeCaps) IsPrivileged(who uint64) (bool, error) {
	return c.roles[who].Has(types.RoleVeto), nil
}
func (c *fakeCaps) TotalVoters() (uint64, error) { return c.total, nil }

type testEnv struct {
	store    *MemStore
	caps     *fakeCaps
	engine   *Engine
	executed []uint64
}

func newTestEnv(t *testing.T, params *types.GovParams) *testEnv {
	env := &testEnv{
		store: NewMemStore(params),
		caps:  newFakeCaps(),
	}
	dec := DecoderFunc(func(tag uint32, data []byte) (Executable, error) {
		switch tag {
		case tagNoop:
			return ExecutableFunc(func() error {
				id := uint64(0)
				if len(data) > 0 {
					id = uint64(data[0])
				}
				env.executed = append(env.executed, id)
				return nil
			}), nil
		case tagFail:
			return ExecutableFunc(func() error { return errors.New("boom") }), nil
		case tagPanic:
			return ExecutableFunc(func() error { panic("kaput") }), nil
		case tagLong:
			return ExecutableFunc(func() error { return errors.New(strings.Repeat("x", 500)) }), nil
		}
		return nil, errors.New("unknown tag")
	})
	env.engine = New(env.store, env.caps, dec)
	env.engine.SetInvariantChecks(true)
	return env
}

func countRule(n uint64) types.Parameters {
	return types.Parameters{VotingPeriod: 3, Quorum: types.QuorumRule{Kind: types.QuorumCount, Value: n}}
}

func (env *testEnv) create(t *testing.T, now, caller uint64, params types.Parameters, tag uint32) uint64 {
	id, err := env.engine.CreateProposal(now, caller, &CreateRequest{
		Parameters:  params,
		Title:       []byte("title"),
		Body:        []byte("body"),
		PayloadType: tag,
	})
	require.NoError(t, err)
	return id
}

func (env *testEnv) status(t *testing.T, id uint64) types.ProposalStatus {
	p, err := env.store.Proposal(id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p.Status
}

func (env *testEnv) advance(t *testing.T, now uint64) *StepReport {
	rep, err := env.engine.Advance(now)
	require.NoError(t, err)
	return rep
}

func TestCreateProposal(t *testing.T) {
	env := newTestEnv(t, nil)

	id := env.create(t, 1, 1, types.Parameters{}, tagNoop)
	require.Equal(t, uint64(1), id)
	p, err := env.store.Proposal(id)
	require.NoError(t, err)
	require.Equal(t, types.ProposalStatusActive, p.Status)
	require.Equal(t, uint64(1), p.Created)
	require.Equal(t, uint64(types.DefaultVotingPeriod), p.Parameters.VotingPeriod)
	require.Equal(t, types.QuorumRule{Kind: types.QuorumPercentage, Value: types.DefaultQuorumPercent}, p.Parameters.Quorum)

	id = env.create(t, 2, 2, countRule(2), tagFail)
	require.Equal(t, uint64(2), id)
	ids, err := env.store.ActiveIDs()
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2}, ids)
	count, err := env.store.ProposalCount()
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)
	payload, err := env.store.Payload(2)
	require.NoError(t, err)
	require.Equal(t, tagFail, payload.Type)
}

func TestCreateProposalRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	long := func(n int) []byte { return []byte(strings.Repeat("a", n)) }

	cases := []struct {
		name   string
		caller uint64
		req    CreateRequest
		err    error
	}{
		{"not a proposer", 9, CreateRequest{Title: []byte("t"), Body: []byte("b")}, ErrUnauthorized},
		{"unknown account", 42, CreateRequest{Title: []byte("t"), Body: []byte("b")}, ErrUnauthorized},
		{"empty title", 1, CreateRequest{Body: []byte("b")}, ErrInvalidInput},
		{"empty body", 1, CreateRequest{Title: []byte("t")}, ErrInvalidInput},
		{"title too long", 1, CreateRequest{Title: long(types.DefaultTitleMaxLen + 1), Body: []byte("b")}, ErrInvalidInput},
		{"body too long", 1, CreateRequest{Title: []byte("t"), Body: long(types.DefaultBodyMaxLen + 1)}, ErrInvalidInput},
		{"percentage above 100", 1, CreateRequest{Title: []byte("t"), Body: []byte("b"),
			Parameters: types.Parameters{Quorum: types.QuorumRule{Kind: types.QuorumPercentage, Value: 101}}}, ErrInvalidInput},
		{"unknown quorum kind", 1, CreateRequest{Title: []byte("t"), Body: []byte("b"),
			Parameters: types.Parameters{Quorum: types.QuorumRule{Kind: 7, Value: 1}}}, ErrInvalidInput},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := env.engine.CreateProposal(1, c.caller, &c.req)
			require.ErrorIs(t, err, c.err)
		})
	}

	count, err := env.store.ProposalCount()
	require.NoError(t, err)
	require.Zero(t, count)

	id := env.create(t, 1, 1, types.Parameters{}, tagNoop)
	require.Equal(t, uint64(1), id)
	_, err = env.engine.CreateProposal(1, 1, &CreateRequest{
		Title: long(types.DefaultTitleMaxLen),
		Body:  long(types.DefaultBodyMaxLen),
	})
	require.NoError(t, err)
}

func TestVotePreconditionOrder(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.create(t, 1, 1, countRule(3), tagNoop)

	require.ErrorIs(t, env.engine.Vote(1, 9, 100, types.VoteApprove), ErrProposalNotFound)
	require.ErrorIs(t, env.engine.Vote(1, 1, 100, 0), ErrProposalNotFound)
	require.ErrorIs(t, env.engine.Vote(1, 9, id, 0), ErrUnauthorized)
	require.ErrorIs(t, env.engine.Vote(1, 9, id, types.VoteApprove), ErrUnauthorized)
	require.ErrorIs(t, env.engine.Vote(1, 1, id, 0), ErrInvalidInput)
	require.ErrorIs(t, env.engine.Vote(4, 1, id, types.VoteApprove), ErrVotingPeriodExpired)
	require.ErrorIs(t, env.engine.Vote(4, 9, id, types.VoteApprove), ErrUnauthorized)

	require.NoError(t, env.engine.Vote(3, 1, id, types.VoteApprove))

	require.NoError(t, env.engine.CancelProposal(1, id))
	require.ErrorIs(t, env.engine.Vote(3, 2, id, types.VoteApprove), ErrProposalFinalized)
	require.ErrorIs(t, env.engine.Vote(5, 2, id, types.VoteApprove), ErrVotingPeriodExpired)
}

func TestDuplicateVote(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.create(t, 1, 1, countRule(3), tagNoop)

	require.NoError(t, env.engine.Vote(1, 2, id, types.VoteReject))
	err := env.engine.Vote(1, 2, id, types.VoteApprove)
	require.ErrorIs(t, err, ErrDuplicateVote)
	require.Equal(t, CodeDuplicateVote, ErrorCode(err))

	votes, err := env.store.Votes(id)
	require.NoError(t, err)
	require.Equal(t, []types.Vote{{Voter: 2, Kind: types.VoteReject}}, votes)
}

func TestApprovedAndExecuted(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.create(t, 1, 1, countRule(3), tagNoop)
	for voter := uint64(1); voter <= 4; voter++ {
		require.NoError(t, env.engine.Vote(1, voter, id, types.VoteApprove))
	}

	rep := env.advance(t, 2)
	require.Equal(t, types.ProposalStatusExecuted, env.status(t, id))
	require.Equal(t, []types.TallyResult{{
		ProposalID:  id,
		Approvals:   4,
		Status:      types.ProposalStatusApproved,
		FinalizedAt: 2,
	}}, rep.Tallies)
	require.Equal(t, []Execution{{ProposalID: id, PayloadType: tagNoop, Status: types.ProposalStatusExecuted}}, rep.Executions)

	tally, err := env.store.TallyResult(id)
	require.NoError(t, err)
	require.Equal(t, rep.Tallies[0], *tally)
	ids, err := env.store.ActiveIDs()
	require.NoError(t, err)
	require.Empty(t, ids)
	require.Len(t, env.executed, 1)

	rep = env.advance(t, 3)
	require.Empty(t, rep.Tallies)
	require.Len(t, env.executed, 1)
}

func TestPercentageQuorum(t *testing.T) {
	env := newTestEnv(t, nil)
	params := types.Parameters{VotingPeriod: 3, Quorum: types.QuorumRule{Kind: types.QuorumPercentage, Value: 49}}
	id := env.create(t, 1, 1, params, tagNoop)
	require.NoError(t, env.engine.Vote(1, 1, id, types.VoteApprove))
	require.NoError(t, env.engine.Vote(1, 2, id, types.VoteApprove))
	require.NoError(t, env.engine.Vote(1, 3, id, types.VoteReject))
	require.NoError(t, env.engine.Vote(1, 4, id, types.VoteAbstain))

	rep := env.advance(t, 1)
	require.Len(t, rep.Tallies, 1)
	res := rep.Tallies[0]
	require.Equal(t, types.ProposalStatusApproved, res.Status)
	require.Equal(t, uint64(1), res.Abstentions)
	require.Equal(t, uint64(2), res.Approvals)
	require.Equal(t, uint64(1), res.Rejections)
	require.Equal(t, types.ProposalStatusExecuted, env.status(t, id))
}

func TestExpiredWithoutQuorum(t *testing.T) {
	params := types.DefaultGovParams()
	params.RejectWhenAllVoted = false
	env := newTestEnv(t, params)
	id := env.create(t, 1, 1, countRule(3), tagNoop)
	require.NoError(t, env.engine.Vote(1, 1, id, types.VoteReject))
	require.NoError(t, env.engine.Vote(1, 2, id, types.VoteReject))
	require.NoError(t, env.engine.Vote(2, 3, id, types.VoteAbstain))
	require.NoError(t, env.engine.Vote(2, 4, id, types.VoteAbstain))

	for now := uint64(1); now < 4; now++ {
		rep := env.advance(t, now)
		require.Empty(t, rep.Tallies)
		require.Equal(t, types.ProposalStatusActive, env.status(t, id))
	}
	rep := env.advance(t, 4)
	require.Equal(t, []types.TallyResult{{
		ProposalID:  id,
		Abstentions: 2,
		Rejections:  2,
		Status:      types.ProposalStatusExpired,
		FinalizedAt: 4,
	}}, rep.Tallies)
	require.Empty(t, rep.Executions)
	require.Equal(t, types.ProposalStatusExpired, env.status(t, id))
	ids, err := env.store.ActiveIDs()
	require.NoError(t, err)
	require.Empty(t, ids)
	require.Empty(t, env.executed)
}

func TestRejectedWhenAllVoted(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.create(t, 1, 1, countRule(3), tagNoop)
	require.NoError(t, env.engine.Vote(1, 1, id, types.VoteReject))
	require.NoError(t, env.engine.Vote(1, 2, id, types.VoteReject))
	require.NoError(t, env.engine.Vote(1, 3, id, types.VoteAbstain))

	rep := env.advance(t, 1)
	require.Empty(t, rep.Tallies)

	require.NoError(t, env.engine.Vote(2, 4, id, types.VoteAbstain))
	rep = env.advance(t, 2)
	require.Len(t, rep.Tallies, 1)
	require.Equal(t, types.ProposalStatusRejected, rep.Tallies[0].Status)
	require.Equal(t, types.ProposalStatusRejected, env.status(t, id))
}

func TestQuorumWinsAtExpiry(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.create(t, 1, 1, types.Parameters{VotingPeriod: 2, Quorum: types.QuorumRule{Kind: types.QuorumCount, Value: 2}}, tagNoop)
	require.NoError(t, env.engine.Vote(2, 1, id, types.VoteApprove))
	require.NoError(t, env.engine.Vote(2, 2, id, types.VoteApprove))

	// no tally ran at step 2; step 3 is both expired and above quorum
	rep := env.advance(t, 3)
	require.Len(t, rep.Tallies, 1)
	require.Equal(t, types.ProposalStatusApproved, rep.Tallies[0].Status)
	require.Equal(t, types.ProposalStatusExecuted, env.status(t, id))
}

func TestCancelProposal(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.create(t, 1, 1, countRule(3), tagNoop)

	require.ErrorIs(t, env.engine.CancelProposal(1, 7), ErrProposalNotFound)
	err := env.engine.CancelProposal(2, id)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, ClassAuthorization, ClassOf(err))
	require.Equal(t, types.ProposalStatusActive, env.status(t, id))

	require.NoError(t, env.engine.CancelProposal(1, id))
	require.Equal(t, types.ProposalStatusCancelled, env.status(t, id))
	require.ErrorIs(t, env.engine.CancelProposal(1, id), ErrProposalFinalized)

	for now := uint64(1); now < 6; now++ {
		rep := env.advance(t, now)
		require.Empty(t, rep.Tallies)
	}
	require.Equal(t, types.ProposalStatusCancelled, env.status(t, id))
	tally, err := env.store.TallyResult(id)
	require.NoError(t, err)
	require.Nil(t, tally)
}

func TestVetoProposal(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.create(t, 1, 1, countRule(1), tagNoop)
	require.NoError(t, env.engine.Vote(1, 2, id, types.VoteApprove))

	require.ErrorIs(t, env.engine.VetoProposal(1, id), ErrUnauthorized)
	require.NoError(t, env.engine.VetoProposal(9, id))
	require.Equal(t, types.ProposalStatusVetoed, env.status(t, id))
	require.ErrorIs(t, env.engine.VetoProposal(9, id), ErrProposalFinalized)

	rep := env.advance(t, 2)
	require.Empty(t, rep.Tallies)
	require.Empty(t, env.executed)
}

func TestExecutionFailures(t *testing.T) {
	env := newTestEnv(t, nil)
	fail := env.create(t, 1, 1, countRule(1), tagFail)
	panics := env.create(t, 1, 1, countRule(1), tagPanic)
	unknown := env.create(t, 1, 1, countRule(1), 99)
	long := env.create(t, 1, 1, countRule(1), tagLong)
	for _, id := range []uint64{fail, panics, unknown, long} {
		require.NoError(t, env.engine.Vote(1, 1, id, types.VoteApprove))
	}

	rep := env.advance(t, 1)
	require.Len(t, rep.Executions, 4)
	for _, ex := range rep.Executions {
		require.Equal(t, types.ProposalStatusFailed, ex.Status)
		require.Equal(t, types.ProposalStatusFailed, env.status(t, ex.ProposalID))
		require.LessOrEqual(t, len(ex.Reason), types.MaxFailureReasonLen)
	}
	p, err := env.store.Proposal(fail)
	require.NoError(t, err)
	require.Equal(t, "boom", p.FailureReason)
	p, err = env.store.Proposal(panics)
	require.NoError(t, err)
	require.Contains(t, p.FailureReason, "kaput")
	p, err = env.store.Proposal(unknown)
	require.NoError(t, err)
	require.Contains(t, p.FailureReason, "unknown tag")
	p, err = env.store.Proposal(long)
	require.NoError(t, err)
	require.Len(t, p.FailureReason, types.MaxFailureReasonLen)

	tally, err := env.store.TallyResult(fail)
	require.NoError(t, err)
	require.Equal(t, types.ProposalStatusApproved, tally.Status)
}

func TestExecutionOrderIsAscending(t *testing.T) {
	env := newTestEnv(t, nil)
	var ids []uint64
	for i := 0; i < 5; i++ {
		id, err := env.engine.CreateProposal(1, 1, &CreateRequest{
			Parameters:  countRule(1),
			Title:       []byte("t"),
			Body:        []byte("b"),
			PayloadType: tagNoop,
			Payload:     []byte{byte(i + 1)},
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	for i := len(ids) - 1; i >= 0; i-- {
		require.NoError(t, env.engine.Vote(1, 2, ids[i], types.VoteApprove))
	}

	rep := env.advance(t, 1)
	require.Equal(t, []uint64{1, 2, 3, 4, 5}, env.executed)
	for i, ex := range rep.Executions {
		require.Equal(t, ids[i], ex.ProposalID)
	}
}

func TestAdvanceDetectsCorruption(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.create(t, 1, 1, countRule(1), tagNoop)
	require.NoError(t, env.store.SetTallyResult(&types.TallyResult{ProposalID: id, Status: types.ProposalStatusRejected}))
	require.NoError(t, env.engine.Vote(1, 1, id, types.VoteApprove))

	_, err := env.engine.Advance(1)
	require.ErrorIs(t, err, ErrCorruptState)
}

func TestCheckInvariants(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.create(t, 1, 1, countRule(1), tagNoop)
	require.NoError(t, CheckInvariants(env.store))

	require.NoError(t, env.store.RemoveActive(id))
	require.ErrorIs(t, CheckInvariants(env.store), ErrCorruptState)
	require.NoError(t, env.store.InsertActive(id))

	require.NoError(t, env.store.AppendVote(id, types.Vote{Voter: 1, Kind: types.VoteApprove}))
	require.NoError(t, env.store.AppendVote(id, types.Vote{Voter: 1, Kind: types.VoteReject}))
	require.ErrorIs(t, CheckInvariants(env.store), ErrCorruptState)
}

func TestTruncateReason(t *testing.T) {
	require.Equal(t, "short", TruncateReason("short"))

	msg := strings.Repeat("a", types.MaxFailureReasonLen-1) + "é"
	out := TruncateReason(msg)
	require.Len(t, out, types.MaxFailureReasonLen-1)
	require.True(t, strings.HasPrefix(msg, out))
}

func TestErrorCode(t *testing.T) {
	require.Equal(t, CodeOK, ErrorCode(nil))
	require.Equal(t, CodeTxInvalid, ErrorCode(errors.New("disk")))
	require.False(t, IsRejection(errors.New("disk")))
	wrapped := ErrorCode(errors.Join(errors.New("ctx"), ErrVotingPeriodExpired))
	require.Equal(t, CodeVotingPeriodExpired, wrapped)
	require.True(t, IsRejection(ErrProposalNotFound))
	require.Equal(t, ClassValidation, ClassOf(ErrInvalidInput))
	require.Equal(t, ClassState, ClassOf(ErrDuplicateVote))
}

func TestVotingPeriodOverflow(t *testing.T) {
	env := newTestEnv(t, nil)
	quorum := types.QuorumRule{Kind: types.QuorumCount, Value: 2}

	_, err := env.engine.CreateProposal(5, 1, &CreateRequest{
		Parameters: types.Parameters{VotingPeriod: math.MaxUint64, Quorum: quorum},
		Title:      []byte("title"),
		Body:       []byte("body"),
	})
	require.ErrorIs(t, err, ErrInvalidInput)
	count, err := env.store.ProposalCount()
	require.NoError(t, err)
	require.Zero(t, count)

	// the longest period that still fits stays open
	id := env.create(t, 5, 1, types.Parameters{VotingPeriod: math.MaxUint64 - 5, Quorum: quorum}, tagNoop)
	require.NoError(t, env.engine.Vote(5, 1, id, types.VoteApprove))
	env.advance(t, 5)
	require.Equal(t, types.ProposalStatusActive, env.status(t, id))
	env.advance(t, 1000)
	require.Equal(t, types.ProposalStatusActive, env.status(t, id))
}

func TestExpiredBeforeCreation(t *testing.T) {
	p := &types.Proposal{Created: 10, Parameters: types.Parameters{VotingPeriod: 3}}
	require.False(t, p.Expired(4))
	require.False(t, p.Expired(12))
	require.True(t, p.Expired(13))
}

func TestUpdateStatusBackToActive(t *testing.T) {
	env := newTestEnv(t, nil)
	first := env.create(t, 1, 1, countRule(3), tagNoop)
	second := env.create(t, 1, 2, countRule(3), tagNoop)

	p, err := env.store.Proposal(first)
	require.NoError(t, err)
	exec, err := env.engine.updateStatus(p, types.ProposalStatusActive)
	require.NoError(t, err)
	require.Nil(t, exec)

	ids, err := env.store.ActiveIDs()
	require.NoError(t, err)
	require.Equal(t, []uint64{first, second}, ids)
	require.Equal(t, types.ProposalStatusActive, env.status(t, first))
	require.NoError(t, CheckInvariants(env.store))
}
