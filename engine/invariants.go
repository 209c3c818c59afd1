package engine

import (
	"fmt"

	"github.com/mnaamani/joystream/types"
)

// CheckInvariants walks every proposal and verifies the relations between
// records, votes, tally results and the active set.
func CheckInvariants(s Store) error {
	count, err := s.ProposalCount()
	if err != nil {
		return err
	}
	ids, err := s.ActiveIDs()
	if err != nil {
		return err
	}
	active := make(map[uint64]bool, len(ids))
	for i, id := range ids {
		if i > 0 && ids[i-1] >= id {
			return fmt.Errorf("%w: active set not strictly ascending at %d", ErrCorruptState, id)
		}
		if id == 0 || id > count {
			return fmt.Errorf("%w: active id %d outside [1, %d]", ErrCorruptState, id, count)
		}
		active[id] = true
	}

	for id := uint64(1); id <= count; id++ {
		p, err := s.Proposal(id)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("%w: proposal %d missing", ErrCorruptState, id)
		}
		isActive := p.Status == types.ProposalStatusActive
		if isActive != active[id] {
			return fmt.Errorf("%w: proposal %d is %s but active set membership is %v", ErrCorruptState, id, p.Status, active[id])
		}
		if p.Status == types.ProposalStatusApproved {
			return fmt.Errorf("%w: proposal %d left in approved", ErrCorruptState, id)
		}

		tally, err := s.TallyResult(id)
		if err != nil {
			return err
		}
		switch {
		case p.Status.TallyDriven() && tally == nil:
			return fmt.Errorf("%w: proposal %d is %s without tally result", ErrCorruptState, id, p.Status)
		case !p.Status.TallyDriven() && tally != nil:
			return fmt.Errorf("%w: proposal %d is %s but has a tally result", ErrCorruptState, id, p.Status)
		case tally != nil:
			want := p.Status
			if want == types.ProposalStatusExecuted || want == types.ProposalStatusFailed {
				want = types.ProposalStatusApproved
			}
			if tally.Status != want {
				return fmt.Errorf("%w: proposal %d is %s but tally says %s", ErrCorruptState, id, p.Status, tally.Status)
			}
		}

		votes, err := s.Votes(id)
		if err != nil {
			return err
		}
		seen := make(map[uint64]bool, len(votes))
		for _, v := range votes {
			if seen[v.Voter] {
				return fmt.Errorf("%w: account %d voted twice on proposal %d", ErrCorruptState, v.Voter, id)
			}
			seen[v.Voter] = true
		}
	}
	return nil
}
