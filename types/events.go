package types

import (
	"fmt"
	"strconv"

	abci "github.com/cometbft/cometbft/abci/types"
)

const (
	EventProposalCreatedType   = "proposal_created"
	EventProposalVotedType     = "proposal_voted"
	EventProposalCancelledType = "proposal_cancelled"
	EventProposalVetoedType    = "proposal_vetoed"
	EventProposalFinalizedType = "proposal_finalized"
	EventProposalExecutedType  = "proposal_executed"
)

type EventProposalCreated struct {
	Proposal     uint64 `json:"proposal"`
	Proposer     uint64 `json:"proposer"`
	PayloadType  uint32 `json:"payloadType"`
	VotingPeriod uint64 `json:"votingPeriod"`
	Quorum       string `json:"quorum"`
	Created      uint64 `json:"created"`
	Title        string `json:"title"`
}

func EncodeEventProposalCreated(event *EventProposalCreated) abci.Event {
	return abci.Event{
		Type: EventProposalCreatedType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.Proposal), Index: true},
			{Key: "proposer", Value: fmt.Sprintf("%v", event.Proposer), Index: true},
			{Key: "payloadType", Value: fmt.Sprintf("%v", event.PayloadType), Index: false},
			{Key: "votingPeriod", Value: fmt.Sprintf("%v", event.VotingPeriod), Index: false},
			{Key: "quorum", Value: event.Quorum, Index: false},
			{Key: "created", Value: fmt.Sprintf("%v", event.Created), Index: false},
			{Key: "title", Value: event.Title, Index: false},
		},
	}
}

func DecodeEventProposalCreated(originEvent abci.Event) *EventProposalCreated {
	event := &EventProposalCreated{}
	for _, v := range originEvent.Attributes {
		var err error
		switch v.Key {
		case "proposal":
			event.Proposal, err = strconv.ParseUint(v.Value, 10, 64)
		case "proposer":
			event.Proposer, err = strconv.ParseUint(v.Value, 10, 64)
		case "payloadType":
			var tp uint64
			tp, err = strconv.ParseUint(v.Value, 10, 32)
			event.PayloadType = uint32(tp)
		case "votingPeriod":
			event.VotingPeriod, err = strconv.ParseUint(v.Value, 10, 64)
		case "quorum":
			event.Quorum = v.Value
		case "created":
			event.Created, err = strconv.ParseUint(v.Value, 10, 64)
		case "title":
			event.Title = v.Value
		}
		if err != nil {
			return nil
		}
	}
	return event
}

type EventProposalVoted struct {
	Proposal uint64   `json:"proposal"`
	Voter    uint64   `json:"voter"`
	Kind     VoteKind `json:"kind"`
}

func EncodeEventProposalVoted(event *EventProposalVoted) abci.Event {
	return abci.Event{
		Type: EventProposalVotedType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.Proposal), Index: true},
			{Key: "voter", Value: fmt.Sprintf("%v", event.Voter), Index: true},
			{Key: "kind", Value: fmt.Sprintf("%v", uint8(event.Kind)), Index: false},
		},
	}
}

func DecodeEventProposalVoted(originEvent abci.Event) *EventProposalVoted {
	event := &EventProposalVoted{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Proposal = proposal
		case "voter":
			voter, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Voter = voter
		case "kind":
			kind, err := strconv.ParseUint(v.Value, 10, 8)
			if err != nil {
				return nil
			}
			event.Kind = VoteKind(kind)
		}
	}
	return event
}

// EventProposalClosed is emitted when a proposal leaves the active set
// through cancel or veto.
type EventProposalClosed struct {
	Proposal uint64 `json:"proposal"`
	Caller   uint64 `json:"caller"`
}

func EncodeEventProposalCancelled(event *EventProposalClosed) abci.Event {
	return encodeEventProposalClosed(EventProposalCancelledType, event)
}

func EncodeEventProposalVetoed(event *EventProposalClosed) abci.Event {
	return encodeEventProposalClosed(EventProposalVetoedType, event)
}

func encodeEventProposalClosed(tp string, event *EventProposalClosed) abci.Event {
	return abci.Event{
		Type: tp,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.Proposal), Index: true},
			{Key: "caller", Value: fmt.Sprintf("%v", event.Caller), Index: true},
		},
	}
}

func DecodeEventProposalClosed(originEvent abci.Event) *EventProposalClosed {
	event := &EventProposalClosed{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Proposal = proposal
		case "caller":
			caller, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Caller = caller
		}
	}
	return event
}

func EncodeEventProposalFinalized(result *TallyResult) abci.Event {
	return abci.Event{
		Type: EventProposalFinalizedType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", result.ProposalID), Index: true},
			{Key: "status", Value: fmt.Sprintf("%v", uint8(result.Status)), Index: true},
			{Key: "approvals", Value: fmt.Sprintf("%v", result.Approvals), Index: false},
			{Key: "rejections", Value: fmt.Sprintf("%v", result.Rejections), Index: false},
			{Key: "abstentions", Value: fmt.Sprintf("%v", result.Abstentions), Index: false},
			{Key: "finalizedAt", Value: fmt.Sprintf("%v", result.FinalizedAt), Index: false},
		},
	}
}

func DecodeEventProposalFinalized(originEvent abci.Event) *TallyResult {
	result := &TallyResult{}
	for _, v := range originEvent.Attributes {
		var err error
		switch v.Key {
		case "proposal":
			result.ProposalID, err = strconv.ParseUint(v.Value, 10, 64)
		case "status":
			var status uint64
			status, err = strconv.ParseUint(v.Value, 10, 8)
			result.Status = ProposalStatus(status)
		case "approvals":
			result.Approvals, err = strconv.ParseUint(v.Value, 10, 64)
		case "rejections":
			result.Rejections, err = strconv.ParseUint(v.Value, 10, 64)
		case "abstentions":
			result.Abstentions, err = strconv.ParseUint(v.Value, 10, 64)
		case "finalizedAt":
			result.FinalizedAt, err = strconv.ParseUint(v.Value, 10, 64)
		}
		if err != nil {
			return nil
		}
	}
	return result
}

type EventProposalExecuted struct {
	Proposal    uint64         `json:"proposal"`
	PayloadType uint32         `json:"payloadType"`
	Status      ProposalStatus `json:"status"`
	Reason      string         `json:"reason"`
}

func EncodeEventProposalExecuted(event *EventProposalExecuted) abci.Event {
	return abci.Event{
		Type: EventProposalExecutedType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.Proposal), Index: true},
			{Key: "payloadType", Value: fmt.Sprintf("%v", event.PayloadType), Index: false},
			{Key: "status", Value: fmt.Sprintf("%v", uint8(event.Status)), Index: true},
			{Key: "reason", Value: event.Reason, Index: false},
		},
	}
}

func DecodeEventProposalExecuted(originEvent abci.Event) *EventProposalExecuted {
	event := &EventProposalExecuted{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Proposal = proposal
		case "payloadType":
			tp, err := strconv.ParseUint(v.Value, 10, 32)
			if err != nil {
				return nil
			}
			event.PayloadType = uint32(tp)
		case "status":
			status, err := strconv.ParseUint(v.Value, 10, 8)
			if err != nil {
				return nil
			}
			event.Status = ProposalStatus(status)
		case "reason":
			event.Reason = v.Value
		}
	}
	return event
}
