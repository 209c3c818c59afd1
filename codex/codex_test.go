package codex

import (
	"errors"
	"testing"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/mnaamani/joystream/engine"
	"github.com/mnaamani/joystream/types"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

type fakeEnv struct {
	params *types.GovParams
	roles  map[uint64]types.Role
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{roles: map[uint64]types.Role{1: types.RoleMember, 2: types.RoleMember}}
}

func (e *fakeEnv) SetParams(p *types.GovParams) error {
	e.params = p
	return nil
}

func (e *fakeEnv) SetAccountRoles(index uint64, roles types.Role) error {
	if _, ok := e.roles[index]; !ok {
		return errors.New("account noexists")
	}
	e.roles[index] = roles
	return nil
}

func TestDecodeUnknownType(t *testing.T) {
	r := NewRegistry(newFakeEnv(), cmtlog.NewNopLogger())
	_, err := r.Decode(77, nil)
	require.ErrorIs(t, err, ErrUnknownProposalType)
}

func TestDummyAndText(t *testing.T) {
	r := NewRegistry(newFakeEnv(), cmtlog.NewNopLogger())

	exe, err := r.Decode(uint32(ProposalTypeDummy), []byte("ignored"))
	require.NoError(t, err)
	require.NoError(t, exe.Execute())

	exe, err = r.Decode(uint32(ProposalTypeText), EncodeText("hello council"))
	require.NoError(t, err)
	require.NoError(t, exe.Execute())

	text, err := DecodeText(EncodeText(""))
	require.NoError(t, err)
	require.Empty(t, text)

	_, err = r.Decode(uint32(ProposalTypeText), EncodeText(string([]byte{0xff, 0xfe})))
	require.ErrorIs(t, err, ErrInvalidUTF8)

	// field 1 as varint instead of bytes
	bad := protowire.AppendTag(nil, 1, protowire.VarintType)
	bad = protowire.AppendVarint(bad, 5)
	_, err = DecodeText(bad)
	require.ErrorIs(t, err, ErrWireType)

	_, err = DecodeText([]byte{0x0a, 0x05, 'a'})
	require.Error(t, err)
}

func TestUpdateParams(t *testing.T) {
	env := newFakeEnv()
	r := NewRegistry(env, cmtlog.NewNopLogger())

	want := &types.GovParams{
		TitleMaxLen:         50,
		BodyMaxLen:          500,
		DefaultVotingPeriod: 10,
		DefaultQuorum:       types.QuorumRule{Kind: types.QuorumCount, Value: 2},
	}
	dat := EncodeParams(want)
	// unknown trailing field is skipped
	dat = protowire.AppendTag(dat, 15, protowire.BytesType)
	dat = protowire.AppendBytes(dat, []byte("future"))

	exe, err := r.Decode(uint32(ProposalTypeUpdateParams), dat)
	require.NoError(t, err)
	require.NoError(t, exe.Execute())
	require.Equal(t, want, env.params)

	invalid := *want
	invalid.DefaultQuorum.Value = 0
	exe, err = r.Decode(uint32(ProposalTypeUpdateParams), EncodeParams(&invalid))
	require.NoError(t, err)
	require.ErrorIs(t, exe.Execute(), types.ErrInvalidParams)
	require.Equal(t, want, env.params)
}

func TestSetRoles(t *testing.T) {
	env := newFakeEnv()
	r := NewRegistry(env, cmtlog.NewNopLogger())

	exe, err := r.Decode(uint32(ProposalTypeSetRoles), EncodeSetRoles(&SetRoles{Account: 2, Roles: types.RoleAll}))
	require.NoError(t, err)
	require.NoError(t, exe.Execute())
	require.Equal(t, types.RoleAll, env.roles[2])

	exe, err = r.Decode(uint32(ProposalTypeSetRoles), EncodeSetRoles(&SetRoles{Account: 2}))
	require.NoError(t, err)
	require.NoError(t, exe.Execute())
	require.Equal(t, types.Role(0), env.roles[2])

	exe, err = r.Decode(uint32(ProposalTypeSetRoles), EncodeSetRoles(&SetRoles{Account: 5, Roles: types.RoleVoter}))
	require.NoError(t, err)
	require.Error(t, exe.Execute())

	exe, err = r.Decode(uint32(ProposalTypeSetRoles), EncodeSetRoles(&SetRoles{Account: 1, Roles: 1 << 7}))
	require.NoError(t, err)
	require.Error(t, exe.Execute())

	_, err = DecodeSetRoles(nil)
	require.Error(t, err)
}

func TestParseProposalType(t *testing.T) {
	for tp := ProposalTypeDummy; tp <= ProposalTypeSetRoles; tp++ {
		got, err := ParseProposalType(tp.String())
		require.NoError(t, err)
		require.Equal(t, tp, got)
	}
	_, err := ParseProposalType("runtime_upgrade")
	require.Error(t, err)
}

type allowAll struct{}

func (allowAll) CanPropose(uint64) (bool, error)   { return true, nil }
func (allowAll) CanVote(uint64) (bool, error)      { return true, nil }
func (allowAll) IsPrivileged(uint64) (bool, error) { return false, nil }
func (allowAll) TotalVoters() (uint64, error)      { return 4, nil }

func TestTextProposalThroughEngine(t *testing.T) {
	store := engine.NewMemStore(nil)
	env := newFakeEnv()
	e := engine.New(store, allowAll{}, NewRegistry(env, cmtlog.NewNopLogger()))
	e.SetInvariantChecks(true)

	ok, err := e.CreateProposal(1, 1, NewTextProposal("signal", "do the thing", "we agree"))
	require.NoError(t, err)
	faulty, err := e.CreateProposal(1, 1, &engine.CreateRequest{
		Parameters:  TextProposalParameters(),
		Title:       []byte("faulty"),
		Body:        []byte("payload does not decode"),
		PayloadType: uint32(ProposalTypeText),
		Payload:     []byte{0x0a, 0x09},
	})
	require.NoError(t, err)
	params, err := e.CreateProposal(1, 1, NewUpdateParamsProposal("params", "shorter titles",
		TextProposalParameters(), &types.GovParams{
			TitleMaxLen:         20,
			BodyMaxLen:          200,
			DefaultVotingPeriod: 5,
			DefaultQuorum:       types.QuorumRule{Kind: types.QuorumPercentage, Value: 60},
			RejectWhenAllVoted:  true,
		}))
	require.NoError(t, err)

	for _, id := range []uint64{ok, faulty, params} {
		require.NoError(t, e.Vote(1, 1, id, types.VoteApprove))
		require.NoError(t, e.Vote(1, 2, id, types.VoteApprove))
	}
	rep, err := e.Advance(1)
	require.NoError(t, err)
	require.Len(t, rep.Executions, 3)

	p, err := store.Proposal(ok)
	require.NoError(t, err)
	require.Equal(t, types.ProposalStatusExecuted, p.Status)
	p, err = store.Proposal(faulty)
	require.NoError(t, err)
	require.Equal(t, types.ProposalStatusFailed, p.Status)
	require.NotEmpty(t, p.FailureReason)
	p, err = store.Proposal(params)
	require.NoError(t, err)
	require.Equal(t, types.ProposalStatusExecuted, p.Status)
	require.Equal(t, uint64(20), env.params.TitleMaxLen)
}
