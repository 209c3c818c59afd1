package engine

import (
	"sort"

	"github.com/mnaamani/joystream/types"
)

var _ Store = &MemStore{}

// MemStore is a map-backed Store. Records are copied on the way in and
// out so callers cannot alias stored values.
type MemStore struct {
	params    types.GovParams
	count     uint64
	proposals map[uint64]types.Proposal
	payloads  map[uint64]types.Payload
	votes     map[uint64][]types.Vote
	guard     map[[2]uint64]bool
	active    map[uint64]bool
	tallies   map[uint64]types.TallyResult
}

func NewMemStore(params *types.GovParams) *MemStore {
	if params == nil {
		params = types.DefaultGovParams()
	}
	return &MemStore{
		params:    *params,
		proposals: make(map[uint64]types.Proposal),
		payloads:  make(map[uint64]types.Payload),
		votes:     make(map[uint64][]types.Vote),
		guard:     make(map[[2]uint64]bool),
		active:    make(map[uint64]bool),
		tallies:   make(map[uint64]types.TallyResult),
	}
}

func (m *MemStore) Params() (*types.GovParams, error) {
	p := m.params
	return &p, nil
}

func (m *MemStore) SetParams(p *types.GovParams) {
	m.params = *p
}

func (m *MemStore) ProposalCount() (uint64, error) {
	return m.count, nil
}

func (m *MemStore) SetProposalCount(count uint64) error {
	m.count = count
	return nil
}

func (m *MemStore) Proposal(id uint64) (*types.Proposal, error) {
	p, ok := m.proposals[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemStore) SetProposal(p *types.Proposal) error {
	m.proposals[p.ID] = *p
	return nil
}

func (m *MemStore) Payload(id uint64) (*types.Payload, error) {
	p, ok := m.payloads[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemStore) SetPayload(id uint64, payload *types.Payload) error {
	m.payloads[id] = *payload
	return nil
}

func (m *MemStore) Votes(id uint64) ([]types.Vote, error) {
	votes := m.votes[id]
	out := make([]types.Vote, len(votes))
	copy(out, votes)
	return out, nil
}

func (m *MemStore) AppendVote(id uint64, vote types.Vote) error {
	m.votes[id] = append(m.votes[id], vote)
	return nil
}

func (m *MemStore) HasVoted(voter, id uint64) (bool, error) {
	return m.guard[[2]uint64{voter, id}], nil
}

func (m *MemStore) SetVoted(voter, id uint64) error {
	m.guard[[2]uint64{voter, id}] = true
	return nil
}

func (m *MemStore) ActiveIDs() ([]uint64, error) {
	ids := make([]uint64, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *MemStore) InsertActive(id uint64) error {
	m.active[id] = true
	return nil
}

func (m *MemStore) RemoveActive(id uint64) error {
	delete(m.active, id)
	return nil
}

func (m *MemStore) TallyResult(id uint64) (*types.TallyResult, error) {
	t, ok := m.tallies[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *MemStore) SetTallyResult(result *types.TallyResult) error {
	m.tallies[result.ProposalID] = *result
	return nil
}
