package types

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxFailureReasonLen bounds the error message stored on a Failed proposal.
const MaxFailureReasonLen = 200

type Proposal struct {
	ID            uint64         `json:"id"`
	Proposer      uint64         `json:"proposer"`
	Created       uint64         `json:"created"`
	Parameters    Parameters     `json:"parameters"`
	Title         []byte         `json:"title"`
	Body          []byte         `json:"body"`
	PayloadType   uint32         `json:"payload_type"`
	Status        ProposalStatus `json:"status"`
	FailureReason string         `json:"failure_reason,omitempty"`
}

// Expired reports whether the voting period has elapsed at step now.
func (p *Proposal) Expired(now uint64) bool {
	return now >= p.Created && now-p.Created >= p.Parameters.VotingPeriod
}

type Parameters struct {
	VotingPeriod uint64     `json:"voting_period"`
	Quorum       QuorumRule `json:"quorum"`
}

type QuorumKind uint8

const (
	QuorumCount      QuorumKind = 1
	QuorumPercentage QuorumKind = 2
)

func (k QuorumKind) String() string {
	switch k {
	case QuorumCount:
		return "count"
	case QuorumPercentage:
		return "percentage"
	}
	return fmt.Sprintf("QuorumKind(%d)", uint8(k))
}

// QuorumRule is either a minimum number of approvals or a minimum share of
// the expected voters, in whole percent.
type QuorumRule struct {
	Kind  QuorumKind `json:"kind"`
	Value uint64     `json:"value"`
}

func (q QuorumRule) IsZero() bool {
	return q.Kind == 0 && q.Value == 0
}

func (q QuorumRule) Validate() error {
	switch q.Kind {
	case QuorumCount:
		if q.Value == 0 {
			return fmt.Errorf("quorum count must be positive")
		}
	case QuorumPercentage:
		if q.Value == 0 || q.Value > 100 {
			return fmt.Errorf("quorum percentage %d out of range (0, 100]", q.Value)
		}
	default:
		return fmt.Errorf("unknown quorum kind %d", q.Kind)
	}
	return nil
}

// Reached evaluates the rule with integer arithmetic only. A percentage
// rule can never be reached while the number of expected voters is unknown.
func (q QuorumRule) Reached(approvals, totalVoters uint64) bool {
	switch q.Kind {
	case QuorumCount:
		return q.Value > 0 && approvals >= q.Value
	case QuorumPercentage:
		if totalVoters == 0 || approvals == 0 {
			return false
		}
		return approvals*100 >= q.Value*totalVoters
	}
	return false
}

func (q QuorumRule) String() string {
	if q.Kind == QuorumPercentage {
		return fmt.Sprintf("%d%%", q.Value)
	}
	return fmt.Sprintf("%d approvals", q.Value)
}

// ParseQuorumRule reads "N" as N approvals and "N%" as N percent of the
// expected voters.
func ParseQuorumRule(s string) (QuorumRule, error) {
	kind := QuorumCount
	if v, ok := strings.CutSuffix(s, "%"); ok {
		kind, s = QuorumPercentage, v
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return QuorumRule{}, fmt.Errorf("invalid quorum %q", s)
	}
	q := QuorumRule{Kind: kind, Value: n}
	return q, q.Validate()
}

type ProposalStatus uint8

const (
	ProposalStatusActive ProposalStatus = iota + 1
	ProposalStatusApproved
	ProposalStatusRejected
	ProposalStatusExpired
	ProposalStatusCancelled
	ProposalStatusVetoed
	ProposalStatusExecuted
	ProposalStatusFailed
)

var statusNames = map[ProposalStatus]string{
	ProposalStatusActive:    "active",
	ProposalStatusApproved:  "approved",
	ProposalStatusRejected:  "rejected",
	ProposalStatusExpired:   "expired",
	ProposalStatusCancelled: "cancelled",
	ProposalStatusVetoed:    "vetoed",
	ProposalStatusExecuted:  "executed",
	ProposalStatusFailed:    "failed",
}

func (s ProposalStatus) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("ProposalStatus(%d)", uint8(s))
}

// Terminal statuses never change again.
func (s ProposalStatus) Terminal() bool {
	switch s {
	case ProposalStatusRejected, ProposalStatusExpired, ProposalStatusCancelled,
		ProposalStatusVetoed, ProposalStatusExecuted, ProposalStatusFailed:
		return true
	}
	return false
}

// TallyDriven reports whether the status is only reachable through a tally,
// in which case a TallyResult must exist for the proposal.
func (s ProposalStatus) TallyDriven() bool {
	switch s {
	case ProposalStatusApproved, ProposalStatusRejected, ProposalStatusExpired,
		ProposalStatusExecuted, ProposalStatusFailed:
		return true
	}
	return false
}

func ParseProposalStatus(name string) (ProposalStatus, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown proposal status %q", name)
}

type VoteKind uint8

const (
	VoteApprove VoteKind = iota + 1
	VoteReject
	VoteAbstain
)

func (k VoteKind) Valid() bool {
	return k >= VoteApprove && k <= VoteAbstain
}

func (k VoteKind) String() string {
	switch k {
	case VoteApprove:
		return "approve"
	case VoteReject:
		return "reject"
	case VoteAbstain:
		return "abstain"
	}
	return fmt.Sprintf("VoteKind(%d)", uint8(k))
}

func ParseVoteKind(name string) (VoteKind, error) {
	switch name {
	case "approve", "yes":
		return VoteApprove, nil
	case "reject", "no":
		return VoteReject, nil
	case "abstain":
		return VoteAbstain, nil
	}
	return 0, fmt.Errorf("unknown vote kind %q", name)
}

type Vote struct {
	Voter uint64   `json:"voter"`
	Kind  VoteKind `json:"kind"`
}

type TallyResult struct {
	ProposalID  uint64         `json:"proposal_id"`
	Abstentions uint64         `json:"abstentions"`
	Approvals   uint64         `json:"approvals"`
	Rejections  uint64         `json:"rejections"`
	Status      ProposalStatus `json:"status"`
	FinalizedAt uint64         `json:"finalized_at"`
}

func (t *TallyResult) Votes() uint64 {
	return t.Abstentions + t.Approvals + t.Rejections
}

// Payload is the opaque executable attached to a proposal.
type Payload struct {
	Type uint32 `json:"type"`
	Data []byte `json:"data"`
}
