// Package engine implements the proposal lifecycle and the per-step tally.
//
// The engine holds no state of its own: every record lives in the injected
// Store, so one Engine may be built per block over that block's state.
// Calls must be serialized by the host; nothing here is safe for concurrent
// use and nothing reads a clock. The current step is always passed in.
package engine

import (
	"fmt"
	"math"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/mnaamani/joystream/types"
)

type Engine struct {
	store   Store
	caps    Capabilities
	decoder Decoder
	logger  cmtlog.Logger
	metrics *Metrics

	checkInvariants bool
}

type Option func(*Engine)

func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

func WithLogger(logger cmtlog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger.With("module", "proposals")
	}
}

func New(store Store, caps Capabilities, decoder Decoder, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		caps:    caps,
		decoder: decoder,
		logger:  cmtlog.NewNopLogger(),
		metrics: NopMetrics(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetInvariantChecks makes Advance verify the store invariants after every
// step and fail the step when they do not hold.
func (e *Engine) SetInvariantChecks(on bool) {
	e.checkInvariants = on
}

type CreateRequest struct {
	// Zero values take the configured defaults.
	Parameters  types.Parameters
	Title       []byte
	Body        []byte
	PayloadType uint32
	Payload     []byte
}

// CreateProposal stores a new Active proposal created at step now and
// returns its identifier.
func (e *Engine) CreateProposal(now, caller uint64, req *CreateRequest) (id uint64, err error) {
	ok, err := e.caps.CanPropose(caller)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: account %d may not propose", ErrUnauthorized, caller)
	}
	params, err := e.store.Params()
	if err != nil {
		return 0, err
	}
	if err = checkText("title", req.Title, params.TitleMaxLen); err != nil {
		return 0, err
	}
	if err = checkText("body", req.Body, params.BodyMaxLen); err != nil {
		return 0, err
	}
	pp := params.Complete(req.Parameters)
	if err = pp.Quorum.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if pp.VotingPeriod > math.MaxUint64-now {
		return 0, fmt.Errorf("%w: voting period %d overflows step %d", ErrInvalidInput, pp.VotingPeriod, now)
	}

	count, err := e.store.ProposalCount()
	if err != nil {
		return 0, err
	}
	id = count + 1
	p := &types.Proposal{
		ID:          id,
		Proposer:    caller,
		Created:     now,
		Parameters:  pp,
		Title:       req.Title,
		Body:        req.Body,
		PayloadType: req.PayloadType,
		Status:      types.ProposalStatusActive,
	}
	if err = e.store.SetProposal(p); err != nil {
		return 0, err
	}
	if err = e.store.SetPayload(id, &types.Payload{Type: req.PayloadType, Data: req.Payload}); err != nil {
		return 0, err
	}
	if err = e.store.InsertActive(id); err != nil {
		return 0, err
	}
	if err = e.store.SetProposalCount(id); err != nil {
		return 0, err
	}
	e.metrics.Created.Inc()
	e.logger.Info("proposal created", "id", id, "proposer", caller, "step", now,
		"period", pp.VotingPeriod, "quorum", pp.Quorum.String(), "payloadType", req.PayloadType)
	return id, nil
}

func checkText(field string, v []byte, max uint64) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty %s", ErrInvalidInput, field)
	}
	if uint64(len(v)) > max {
		return fmt.Errorf("%w: %s too long (%d > %d)", ErrInvalidInput, field, len(v), max)
	}
	return nil
}

// Vote records caller's vote on proposal id at step now. It never changes
// the proposal status.
func (e *Engine) Vote(now, caller, id uint64, kind types.VoteKind) error {
	p, err := e.mustProposal(id)
	if err != nil {
		return err
	}
	ok, err := e.caps.CanVote(caller)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: account %d may not vote", ErrUnauthorized, caller)
	}
	if !kind.Valid() {
		return fmt.Errorf("%w: vote kind %d", ErrInvalidInput, kind)
	}
	if p.Expired(now) {
		return fmt.Errorf("%w: proposal %d closed at step %d", ErrVotingPeriodExpired, id, p.Created+p.Parameters.VotingPeriod)
	}
	if p.Status != types.ProposalStatusActive {
		return fmt.Errorf("%w: proposal %d is %s", ErrProposalFinalized, id, p.Status)
	}
	voted, err := e.store.HasVoted(caller, id)
	if err != nil {
		return err
	}
	if voted {
		return fmt.Errorf("%w: account %d on proposal %d", ErrDuplicateVote, caller, id)
	}
	if err = e.store.AppendVote(id, types.Vote{Voter: caller, Kind: kind}); err != nil {
		return err
	}
	if err = e.store.SetVoted(caller, id); err != nil {
		return err
	}
	e.metrics.Votes.WithLabelValues(kind.String()).Inc()
	e.logger.Debug("vote cast", "id", id, "voter", caller, "kind", kind.String(), "step", now)
	return nil
}

// CancelProposal closes an Active proposal on behalf of its proposer.
func (e *Engine) CancelProposal(caller, id uint64) error {
	p, err := e.mustProposal(id)
	if err != nil {
		return err
	}
	if p.Proposer != caller {
		return fmt.Errorf("%w: only the proposer may cancel proposal %d", ErrUnauthorized, id)
	}
	return e.close(p, types.ProposalStatusCancelled)
}

// VetoProposal closes an Active proposal on behalf of a privileged account.
func (e *Engine) VetoProposal(caller, id uint64) error {
	p, err := e.mustProposal(id)
	if err != nil {
		return err
	}
	ok, err := e.caps.IsPrivileged(caller)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: account %d may not veto", ErrUnauthorized, caller)
	}
	return e.close(p, types.ProposalStatusVetoed)
}

func (e *Engine) close(p *types.Proposal, status types.ProposalStatus) error {
	if p.Status != types.ProposalStatusActive {
		return fmt.Errorf("%w: proposal %d is %s", ErrProposalFinalized, p.ID, p.Status)
	}
	if _, err := e.updateStatus(p, status); err != nil {
		return err
	}
	e.metrics.Closed.WithLabelValues(status.String()).Inc()
	e.logger.Info("proposal closed", "id", p.ID, "status", status.String())
	return nil
}

func (e *Engine) mustProposal(id uint64) (*types.Proposal, error) {
	p, err := e.store.Proposal(id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %d", ErrProposalNotFound, id)
	}
	return p, nil
}

// Proposal returns the stored record or ErrProposalNotFound.
func (e *Engine) Proposal(id uint64) (*types.Proposal, error) {
	return e.mustProposal(id)
}

// updateStatus is the only place a stored status changes. The id always
// leaves the active set first and returns only for Active. Approved runs
// the payload and stores Executed or Failed instead.
func (e *Engine) updateStatus(p *types.Proposal, status types.ProposalStatus) (*Execution, error) {
	if err := e.store.RemoveActive(p.ID); err != nil {
		return nil, err
	}
	p.Status = status
	var exec *Execution
	switch status {
	case types.ProposalStatusActive:
		if err := e.store.InsertActive(p.ID); err != nil {
			return nil, err
		}
	case types.ProposalStatusRejected, types.ProposalStatusExpired:
		e.logger.Debug("proposal rejected", "id", p.ID, "status", status.String())
	case types.ProposalStatusApproved:
		var err error
		exec, err = e.approve(p)
		if err != nil {
			return nil, err
		}
	}
	if err := e.store.SetProposal(p); err != nil {
		return nil, err
	}
	return exec, nil
}
