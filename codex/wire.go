package codex

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/mnaamani/joystream/types"
	"google.golang.org/protobuf/encoding/protowire"
)

var (
	ErrWireType    = errors.New("unexpected wire type")
	ErrInvalidUTF8 = errors.New("text is not valid utf-8")
)

// Payloads are protobuf-compatible messages written field by field:
//
//	Text         { 1: bytes text }
//	UpdateParams { 1: title_max_len, 2: body_max_len, 3: default_voting_period,
//	               4: quorum_kind, 5: quorum_value, 6: reject_when_all_voted }
//	SetRoles     { 1: account, 2: roles }
//
// Unknown fields are skipped.

type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func walk(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		m, err := fn(num, typ, b)
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return protowire.ParseError(m)
		}
		b = b[m:]
	}
	return nil
}

func consumeUint(typ protowire.Type, b []byte, dst *uint64) (int, error) {
	if typ != protowire.VarintType {
		return 0, ErrWireType
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = v
	return n, nil
}

func consumeBytes(typ protowire.Type, b []byte, dst *[]byte) (int, error) {
	if typ != protowire.BytesType {
		return 0, ErrWireType
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = append([]byte(nil), v...)
	return n, nil
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func EncodeText(text string) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	return protowire.AppendString(b, text)
}

func DecodeText(dat []byte) (string, error) {
	var text []byte
	err := walk(dat, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeBytes(typ, b, &text)
		}
		return 0, nil
	})
	if err != nil {
		return "", err
	}
	if !utf8.Valid(text) {
		return "", ErrInvalidUTF8
	}
	return string(text), nil
}

func EncodeParams(p *types.GovParams) []byte {
	var b []byte
	b = appendUint(b, 1, p.TitleMaxLen)
	b = appendUint(b, 2, p.BodyMaxLen)
	b = appendUint(b, 3, p.DefaultVotingPeriod)
	b = appendUint(b, 4, uint64(p.DefaultQuorum.Kind))
	b = appendUint(b, 5, p.DefaultQuorum.Value)
	b = appendUint(b, 6, protowire.EncodeBool(p.RejectWhenAllVoted))
	return b
}

func DecodeParams(dat []byte) (*types.GovParams, error) {
	p := new(types.GovParams)
	var kind, reject uint64
	err := walk(dat, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeUint(typ, b, &p.TitleMaxLen)
		case 2:
			return consumeUint(typ, b, &p.BodyMaxLen)
		case 3:
			return consumeUint(typ, b, &p.DefaultVotingPeriod)
		case 4:
			return consumeUint(typ, b, &kind)
		case 5:
			return consumeUint(typ, b, &p.DefaultQuorum.Value)
		case 6:
			return consumeUint(typ, b, &reject)
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	if kind > 0xff {
		return nil, fmt.Errorf("quorum kind %d out of range", kind)
	}
	p.DefaultQuorum.Kind = types.QuorumKind(kind)
	p.RejectWhenAllVoted = protowire.DecodeBool(reject)
	return p, nil
}

// SetRoles replaces the role set of an existing account.
type SetRoles struct {
	Account uint64
	Roles   types.Role
}

func EncodeSetRoles(s *SetRoles) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, s.Account)
	b = appendUint(b, 2, uint64(s.Roles))
	return b
}

func DecodeSetRoles(dat []byte) (*SetRoles, error) {
	var account, roles uint64
	seen := false
	err := walk(dat, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			seen = true
			return consumeUint(typ, b, &account)
		case 2:
			return consumeUint(typ, b, &roles)
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	if !seen {
		return nil, errors.New("account missing")
	}
	return &SetRoles{Account: account, Roles: types.Role(roles)}, nil
}
