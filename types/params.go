package types

import (
	"errors"
	"fmt"
)

const (
	DefaultTitleMaxLen   = 100
	DefaultBodyMaxLen    = 10000
	DefaultVotingPeriod  = 3
	DefaultQuorumPercent = 49
)

var ErrInvalidParams = errors.New("invalid governance params")

// GovParams are the consensus-relevant governance settings. They live in
// state so an approved proposal can change them.
type GovParams struct {
	TitleMaxLen         uint64     `json:"title_max_len"`
	BodyMaxLen          uint64     `json:"body_max_len"`
	DefaultVotingPeriod uint64     `json:"default_voting_period"`
	DefaultQuorum       QuorumRule `json:"default_quorum"`
	// RejectWhenAllVoted finalizes a proposal as Rejected once every
	// expected voter has voted without reaching quorum.
	RejectWhenAllVoted bool `json:"reject_when_all_voted"`
}

func DefaultGovParams() *GovParams {
	return &GovParams{
		TitleMaxLen:         DefaultTitleMaxLen,
		BodyMaxLen:          DefaultBodyMaxLen,
		DefaultVotingPeriod: DefaultVotingPeriod,
		DefaultQuorum:       QuorumRule{Kind: QuorumPercentage, Value: DefaultQuorumPercent},
		RejectWhenAllVoted:  true,
	}
}

func (p *GovParams) Validate() error {
	if p.TitleMaxLen == 0 {
		return fmt.Errorf("%w: title_max_len must be positive", ErrInvalidParams)
	}
	if p.BodyMaxLen == 0 {
		return fmt.Errorf("%w: body_max_len must be positive", ErrInvalidParams)
	}
	if p.DefaultVotingPeriod == 0 {
		return fmt.Errorf("%w: default_voting_period must be positive", ErrInvalidParams)
	}
	if err := p.DefaultQuorum.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

// Complete fills zero-valued proposal parameters from the defaults.
func (p *GovParams) Complete(params Parameters) Parameters {
	if params.VotingPeriod == 0 {
		params.VotingPeriod = p.DefaultVotingPeriod
	}
	if params.Quorum.IsZero() {
		params.Quorum = p.DefaultQuorum
	}
	return params
}

// Role is a bitmask of capabilities held by an account.
type Role uint64

const (
	RoleProposer Role = 1 << iota
	RoleVoter
	RoleVeto

	RoleMember = RoleProposer | RoleVoter
	RoleAll    = RoleProposer | RoleVoter | RoleVeto
)

func (r Role) Has(o Role) bool {
	return r&o == o
}

func (r Role) Valid() bool {
	return r&^RoleAll == 0
}

func (r Role) String() string {
	s := ""
	for _, n := range []struct {
		r    Role
		name string
	}{{RoleProposer, "proposer"}, {RoleVoter, "voter"}, {RoleVeto, "veto"}} {
		if r.Has(n.r) {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	if s == "" {
		return "none"
	}
	return s
}

func ParseRole(name string) (Role, error) {
	switch name {
	case "proposer":
		return RoleProposer, nil
	case "voter":
		return RoleVoter, nil
	case "veto":
		return RoleVeto, nil
	case "member":
		return RoleMember, nil
	case "all":
		return RoleAll, nil
	case "none":
		return 0, nil
	}
	return 0, fmt.Errorf("unknown role %q", name)
}
