package state

import (
	"fmt"
	"sort"

	"github.com/mnaamani/joystream/codex"
	"github.com/mnaamani/joystream/engine"
	"github.com/mnaamani/joystream/types"
)

var (
	_ engine.Store        = &State{}
	_ engine.Capabilities = &State{}
	_ codex.Env           = &State{}
)

func (s *State) Params() (*types.GovParams, error) {
	p := new(types.GovParams)
	found, err := s.getRLP(KeyParams, p)
	if err != nil {
		return nil, err
	}
	if !found {
		return types.DefaultGovParams(), nil
	}
	return p, nil
}

func (s *State) SetParams(p *types.GovParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return s.setRLP(KeyParams, p)
}

func (s *State) ProposalCount() (count uint64, err error) {
	_, err = s.getRLP(KeyProposalCount, &count)
	return
}

func (s *State) SetProposalCount(count uint64) error {
	return s.setRLP(KeyProposalCount, count)
}

func (s *State) Proposal(id uint64) (*types.Proposal, error) {
	p := new(types.Proposal)
	found, err := s.getRLP(fmt.Sprintf(KeyProposalBody, id), p)
	if err != nil || !found {
		return nil, err
	}
	return p, nil
}

func (s *State) SetProposal(p *types.Proposal) error {
	return s.setRLP(fmt.Sprintf(KeyProposalBody, p.ID), p)
}

func (s *State) Payload(id uint64) (*types.Payload, error) {
	p := new(types.Payload)
	found, err := s.getRLP(fmt.Sprintf(KeyPayload, id), p)
	if err != nil || !found {
		return nil, err
	}
	return p, nil
}

func (s *State) SetPayload(id uint64, payload *types.Payload) error {
	return s.setRLP(fmt.Sprintf(KeyPayload, id), payload)
}

func (s *State) Votes(id uint64) (votes []types.Vote, err error) {
	_, err = s.getRLP(fmt.Sprintf(KeyVotes, id), &votes)
	return
}

func (s *State) AppendVote(id uint64, vote types.Vote) error {
	votes, err := s.Votes(id)
	if err != nil {
		return err
	}
	votes = append(votes, vote)
	return s.setRLP(fmt.Sprintf(KeyVotes, id), votes)
}

func (s *State) HasVoted(voter, id uint64) (bool, error) {
	val, err := s.get(fmt.Sprintf(KeyVoteGuard, voter, id))
	return val != nil, err
}

func (s *State) SetVoted(voter, id uint64) error {
	s.dirty[fmt.Sprintf(KeyVoteGuard, voter, id)] = []byte{1}
	return nil
}

func (s *State) ActiveIDs() (ids []uint64, err error) {
	_, err = s.getRLP(KeyActiveIds, &ids)
	return
}

func (s *State) InsertActive(id uint64) error {
	ids, err := s.ActiveIDs()
	if err != nil {
		return err
	}
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	if i < len(ids) && ids[i] == id {
		return nil
	}
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return s.setRLP(KeyActiveIds, ids)
}

func (s *State) RemoveActive(id uint64) error {
	ids, err := s.ActiveIDs()
	if err != nil {
		return err
	}
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	if i == len(ids) || ids[i] != id {
		return nil
	}
	ids = append(ids[:i], ids[i+1:]...)
	return s.setRLP(KeyActiveIds, ids)
}

func (s *State) TallyResult(id uint64) (*types.TallyResult, error) {
	t := new(types.TallyResult)
	found, err := s.getRLP(fmt.Sprintf(KeyTallyResult, id), t)
	if err != nil || !found {
		return nil, err
	}
	return t, nil
}

func (s *State) SetTallyResult(result *types.TallyResult) error {
	return s.setRLP(fmt.Sprintf(KeyTallyResult, result.ProposalID), result)
}

func (s *State) hasRole(who uint64, role types.Role) (bool, error) {
	a, err := s.GetAccount(who)
	if err == ErrAccountNoexists {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return a.Roles.Has(role), nil
}

func (s *State) CanPropose(who uint64) (bool, error) {
	return s.hasRole(who, types.RoleProposer)
}

func (s *State) CanVote(who uint64) (bool, error) {
	return s.hasRole(who, types.RoleVoter)
}

func (s *State) IsPrivileged(who uint64) (bool, error) {
	return s.hasRole(who, types.RoleVeto)
}

// TotalVoters is the number of accounts currently holding RoleVoter.
func (s *State) TotalVoters() (count uint64, err error) {
	_, err = s.getRLP(KeyVoterCount, &count)
	return
}

func (s *State) addVoters(delta int64) error {
	count, err := s.TotalVoters()
	if err != nil {
		return err
	}
	if delta < 0 && count < uint64(-delta) {
		return fmt.Errorf("voter count underflow: %d%+d", count, delta)
	}
	return s.setRLP(KeyVoterCount, uint64(int64(count)+delta))
}

func (s *State) SetAccountRoles(index uint64, roles types.Role) error {
	if !roles.Valid() {
		return ErrInvalidRoles
	}
	a, err := s.GetAccount(index)
	if err != nil {
		return err
	}
	was, is := a.Roles.Has(types.RoleVoter), roles.Has(types.RoleVoter)
	switch {
	case was && !is:
		err = s.addVoters(-1)
	case !was && is:
		err = s.addVoters(1)
	}
	if err != nil {
		return err
	}
	a.Roles = roles
	return s.setAccount(a)
}
