package state

import (
	"encoding/json"

	"github.com/cometbft/cometbft/crypto/ed25519"
	"github.com/mnaamani/joystream/types"
)

type Account struct {
	Index  uint64
	PubKey []byte
	Roles  types.Role
	Nonce  uint64
}

type accountSt struct {
	Index   uint64         `json:"index"`
	PubKey  ed25519.PubKey `json:"pubKey"`
	Address string         `json:"address"`
	Roles   types.Role     `json:"roles"`
	Nonce   uint64         `json:"nonce"`
}

func (a *Account) MarshalJSON() (dat []byte, err error) {
	o := accountSt{
		Index:   a.Index,
		PubKey:  a.PubKey,
		Address: a.Address(),
		Roles:   a.Roles,
		Nonce:   a.Nonce,
	}
	return json.Marshal(o)
}

func (a *Account) UnmarshalJSON(dat []byte) (err error) {
	var o accountSt
	err = json.Unmarshal(dat, &o)
	if err != nil {
		return
	}
	a.Index = o.Index
	a.PubKey = o.PubKey
	a.Roles = o.Roles
	a.Nonce = o.Nonce
	return
}

func (a *Account) Clone() *Account {
	n := *a
	n.PubKey = append([]byte(nil), a.PubKey...)
	return &n
}

func (a *Account) SetPubKey(pkey []byte) {
	a.PubKey = make([]byte, len(pkey))
	copy(a.PubKey, pkey)
}

func (a *Account) AddrBytes() []byte {
	pk := ed25519.PubKey(a.PubKey[:])
	return pk.Address()[:]
}

func (a *Account) Address() string {
	pk := ed25519.PubKey(a.PubKey[:])
	return pk.Address().String()
}

func (a *Account) Verify(msg []byte, sigs [][]byte) (succ bool) {
	if len(sigs) != 1 {
		return false
	}
	pk := ed25519.PubKey(a.PubKey[:])
	return pk.VerifySignature(msg, sigs[0])
}
