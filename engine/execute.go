package engine

import (
	"fmt"
	"unicode/utf8"

	"github.com/mnaamani/joystream/types"
)

// Execution is the outcome of running an approved proposal's payload.
type Execution struct {
	ProposalID  uint64
	PayloadType uint32
	Status      types.ProposalStatus
	Reason      string
}

// approve runs the payload and moves p to Executed or Failed. Only storage
// faults are returned; payload errors become the failure reason.
func (e *Engine) approve(p *types.Proposal) (*Execution, error) {
	payload, err := e.store.Payload(p.ID)
	if err != nil {
		return nil, err
	}
	exec := &Execution{ProposalID: p.ID, PayloadType: p.PayloadType}
	if payload == nil {
		err = fmt.Errorf("%w: proposal %d", ErrPayloadMissing, p.ID)
	} else {
		err = run(e.decoder, payload)
	}
	if err != nil {
		p.Status = types.ProposalStatusFailed
		p.FailureReason = TruncateReason(err.Error())
		exec.Reason = p.FailureReason
		e.logger.Info("proposal execution failed", "id", p.ID, "type", p.PayloadType, "err", err)
	} else {
		p.Status = types.ProposalStatusExecuted
		e.logger.Info("proposal executed", "id", p.ID, "type", p.PayloadType)
	}
	exec.Status = p.Status
	e.metrics.Executions.WithLabelValues(p.Status.String()).Inc()
	return exec, nil
}

func run(dec Decoder, payload *types.Payload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrExecutionPanicked, r)
		}
	}()
	exe, err := dec.Decode(payload.Type, payload.Data)
	if err != nil {
		return fmt.Errorf("decode payload type %d: %w", payload.Type, err)
	}
	return exe.Execute()
}

// TruncateReason cuts msg to at most types.MaxFailureReasonLen bytes
// without splitting a UTF-8 sequence.
func TruncateReason(msg string) string {
	if len(msg) <= types.MaxFailureReasonLen {
		return msg
	}
	n := types.MaxFailureReasonLen
	for n > 0 && !utf8.RuneStart(msg[n]) {
		n--
	}
	return msg[:n]
}
