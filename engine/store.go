package engine

import "github.com/mnaamani/joystream/types"

// Store is the persisted governance schema. Lookups of absent records
// return nil without an error; errors are storage faults.
type Store interface {
	Params() (*types.GovParams, error)

	ProposalCount() (uint64, error)
	SetProposalCount(count uint64) error
	Proposal(id uint64) (*types.Proposal, error)
	SetProposal(p *types.Proposal) error
	Payload(id uint64) (*types.Payload, error)
	SetPayload(id uint64, payload *types.Payload) error

	// Votes returns the votes of a proposal in the order they were cast.
	Votes(id uint64) ([]types.Vote, error)
	AppendVote(id uint64, vote types.Vote) error
	HasVoted(voter, id uint64) (bool, error)
	SetVoted(voter, id uint64) error

	// ActiveIDs returns the active set in ascending order.
	ActiveIDs() ([]uint64, error)
	InsertActive(id uint64) error
	RemoveActive(id uint64) error

	TallyResult(id uint64) (*types.TallyResult, error)
	SetTallyResult(result *types.TallyResult) error
}

// Capabilities answers authorization questions about callers.
type Capabilities interface {
	CanPropose(who uint64) (bool, error)
	CanVote(who uint64) (bool, error)
	IsPrivileged(who uint64) (bool, error)
	// TotalVoters is the number of accounts expected to vote, 0 if unknown.
	TotalVoters() (uint64, error)
}

// Decoder turns a payload into something that can run. The set of
// accepted tags is closed per deployment.
type Decoder interface {
	Decode(tag uint32, data []byte) (Executable, error)
}

type Executable interface {
	Execute() error
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(tag uint32, data []byte) (Executable, error)

func (f DecoderFunc) Decode(tag uint32, data []byte) (Executable, error) {
	return f(tag, data)
}

// ExecutableFunc adapts a function to Executable.
type ExecutableFunc func() error

func (f ExecutableFunc) Execute() error {
	return f()
}
