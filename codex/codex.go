// Package codex is the closed set of proposal payloads a node can execute.
package codex

import (
	"errors"
	"fmt"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/mnaamani/joystream/engine"
	"github.com/mnaamani/joystream/types"
)

type ProposalType uint32

const (
	ProposalTypeDummy        ProposalType = 0
	ProposalTypeText         ProposalType = 1
	ProposalTypeUpdateParams ProposalType = 2
	ProposalTypeSetRoles     ProposalType = 3
)

func (t ProposalType) String() string {
	switch t {
	case ProposalTypeDummy:
		return "dummy"
	case ProposalTypeText:
		return "text"
	case ProposalTypeUpdateParams:
		return "update_params"
	case ProposalTypeSetRoles:
		return "set_roles"
	}
	return fmt.Sprintf("ProposalType(%d)", uint32(t))
}

func ParseProposalType(name string) (ProposalType, error) {
	for t := ProposalTypeDummy; t <= ProposalTypeSetRoles; t++ {
		if t.String() == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown proposal type %q", name)
}

var ErrUnknownProposalType = errors.New("unknown proposal type")

// Env is the part of the node state that payloads may change.
type Env interface {
	SetParams(p *types.GovParams) error
	SetAccountRoles(index uint64, roles types.Role) error
}

var _ engine.Decoder = &Registry{}

type Registry struct {
	env    Env
	logger cmtlog.Logger
}

func NewRegistry(env Env, logger cmtlog.Logger) *Registry {
	return &Registry{
		env:    env,
		logger: logger.With("module", "codex"),
	}
}

func (r *Registry) Decode(tag uint32, data []byte) (engine.Executable, error) {
	switch ProposalType(tag) {
	case ProposalTypeDummy:
		return engine.ExecutableFunc(func() error { return nil }), nil
	case ProposalTypeText:
		text, err := DecodeText(data)
		if err != nil {
			return nil, err
		}
		return &textProposal{text: text, logger: r.logger}, nil
	case ProposalTypeUpdateParams:
		p, err := DecodeParams(data)
		if err != nil {
			return nil, err
		}
		return &updateParams{params: p, env: r.env}, nil
	case ProposalTypeSetRoles:
		s, err := DecodeSetRoles(data)
		if err != nil {
			return nil, err
		}
		return &setRoles{SetRoles: *s, env: r.env}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownProposalType, tag)
}

type textProposal struct {
	text   string
	logger cmtlog.Logger
}

func (t *textProposal) Execute() error {
	t.logger.Info("text proposal executed", "len", len(t.text))
	return nil
}

type updateParams struct {
	params *types.GovParams
	env    Env
}

func (u *updateParams) Execute() error {
	if err := u.params.Validate(); err != nil {
		return err
	}
	return u.env.SetParams(u.params)
}

type setRoles struct {
	SetRoles
	env Env
}

func (s *setRoles) Execute() error {
	if !s.Roles.Valid() {
		return fmt.Errorf("invalid roles %d", s.Roles)
	}
	return s.env.SetAccountRoles(s.Account, s.Roles)
}

// TextProposalParameters are the preset voting rules of a text proposal.
func TextProposalParameters() types.Parameters {
	return types.Parameters{
		VotingPeriod: 3,
		Quorum:       types.QuorumRule{Kind: types.QuorumPercentage, Value: 49},
	}
}

// NewTextProposal builds a create request for a signal-only proposal.
func NewTextProposal(title, body, text string) *engine.CreateRequest {
	return &engine.CreateRequest{
		Parameters:  TextProposalParameters(),
		Title:       []byte(title),
		Body:        []byte(body),
		PayloadType: uint32(ProposalTypeText),
		Payload:     EncodeText(text),
	}
}

func NewUpdateParamsProposal(title, body string, params types.Parameters, p *types.GovParams) *engine.CreateRequest {
	return &engine.CreateRequest{
		Parameters:  params,
		Title:       []byte(title),
		Body:        []byte(body),
		PayloadType: uint32(ProposalTypeUpdateParams),
		Payload:     EncodeParams(p),
	}
}

func NewSetRolesProposal(title, body string, params types.Parameters, s *SetRoles) *engine.CreateRequest {
	return &engine.CreateRequest{
		Parameters:  params,
		Title:       []byte(title),
		Body:        []byte(body),
		PayloadType: uint32(ProposalTypeSetRoles),
		Payload:     EncodeSetRoles(s),
	}
}
