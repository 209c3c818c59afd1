package engine

import (
	"fmt"

	"github.com/mnaamani/joystream/types"
)

// StepReport lists what one call to Advance decided, in decision order.
type StepReport struct {
	Step       uint64
	Tallies    []types.TallyResult
	Executions []Execution
}

// Tally counts votes and decides the next status of an Active proposal at
// step now. The result carries ProposalStatusActive when nothing changes.
// Quorum wins over expiry, expiry wins over the all-voted rejection.
func Tally(p *types.Proposal, votes []types.Vote, now, totalVoters uint64, rejectWhenAllVoted bool) types.TallyResult {
	res := types.TallyResult{ProposalID: p.ID, Status: types.ProposalStatusActive}
	for _, v := range votes {
		switch v.Kind {
		case types.VoteApprove:
			res.Approvals++
		case types.VoteReject:
			res.Rejections++
		case types.VoteAbstain:
			res.Abstentions++
		}
	}
	allVoted := rejectWhenAllVoted && totalVoters > 0 && uint64(len(votes)) >= totalVoters
	switch {
	case p.Parameters.Quorum.Reached(res.Approvals, totalVoters):
		res.Status = types.ProposalStatusApproved
	case p.Expired(now):
		res.Status = types.ProposalStatusExpired
	case allVoted:
		res.Status = types.ProposalStatusRejected
	}
	if res.Status != types.ProposalStatusActive {
		res.FinalizedAt = now
	}
	return res
}

// Advance runs the tally for step now over the active set in ascending id
// order. It must be called once per step after every call of that step.
// Execution failures are recorded on the proposal; only storage faults and
// broken invariants are returned.
func (e *Engine) Advance(now uint64) (*StepReport, error) {
	ids, err := e.store.ActiveIDs()
	if err != nil {
		return nil, err
	}
	params, err := e.store.Params()
	if err != nil {
		return nil, err
	}
	total, err := e.caps.TotalVoters()
	if err != nil {
		return nil, err
	}

	report := &StepReport{Step: now}
	remaining := len(ids)
	for _, id := range ids {
		p, err := e.store.Proposal(id)
		if err != nil {
			return nil, err
		}
		if p == nil || p.Status != types.ProposalStatusActive {
			return nil, fmt.Errorf("%w: active id %d has no active proposal", ErrCorruptState, id)
		}
		votes, err := e.store.Votes(id)
		if err != nil {
			return nil, err
		}
		res := Tally(p, votes, now, total, params.RejectWhenAllVoted)
		if res.Status == types.ProposalStatusActive {
			continue
		}
		prev, err := e.store.TallyResult(id)
		if err != nil {
			return nil, err
		}
		if prev != nil {
			return nil, fmt.Errorf("%w: proposal %d already finalized at step %d", ErrCorruptState, id, prev.FinalizedAt)
		}
		if err = e.store.SetTallyResult(&res); err != nil {
			return nil, err
		}
		report.Tallies = append(report.Tallies, res)
		e.metrics.Finalized.WithLabelValues(res.Status.String()).Inc()
		e.logger.Info("proposal finalized", "id", id, "status", res.Status.String(), "step", now,
			"approvals", res.Approvals, "rejections", res.Rejections, "abstentions", res.Abstentions)

		exec, err := e.updateStatus(p, res.Status)
		if err != nil {
			return nil, err
		}
		if exec != nil {
			report.Executions = append(report.Executions, *exec)
		}
		remaining--
	}
	e.metrics.Active.Set(float64(remaining))

	if e.checkInvariants {
		if err = CheckInvariants(e.store); err != nil {
			return nil, err
		}
	}
	return report, nil
}
