package state

import (
	"errors"
	"fmt"
	"sort"

	cmtcrypto "github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/mnaamani/joystream/tx"
	"github.com/mnaamani/joystream/types"
	"github.com/syndtr/goleveldb/leveldb"
)

const (
	StartAccountIdx = 65536
)

var (
	KeyState         = "s"
	KeyAccountIndex  = "i%s"
	KeyAccountBody   = "a%x"
	KeyParams        = "g"
	KeyVoterCount    = "vc"
	KeyProposalBody  = "p%v"
	KeyProposalCount = "pi"
	KeyPayload       = "pp%v"
	KeyVotes         = "pv%v"
	KeyVoteGuard     = "vg%v/%v"
	KeyActiveIds     = "pa"
	KeyTallyResult   = "t%v"
)

var (
	ErrTxAccountNoexists    = errors.New("account noexists")
	ErrTxNonceInvalid       = errors.New("nonce invalid")
	ErrTxSigInvalid         = errors.New("signature invalid")
	ErrAccountAlreadyExists = errors.New("account already exists")
	ErrAccountNoexists      = errors.New("account noexists")
	ErrInvalidRoles         = errors.New("invalid roles")
)

// StateHeader is stored under KeyState and carries the chain position.
type StateHeader struct {
	Height     uint64
	ChainId    string
	AccountIdx uint64
	RootHash   []byte
	Hash       []byte
}

func (h *StateHeader) Clone() *StateHeader {
	n := *h
	n.RootHash = common.CopyBytes(h.RootHash)
	n.Hash = common.CopyBytes(h.Hash)
	return &n
}

// State is one block's view over the tree. Writes are buffered and reach
// the tree in key order on Update, so every replica builds the same tree.
type State struct {
	logger cmtlog.Logger
	db     *iavl.MutableTree
	dbVer  int64

	header *StateHeader
	dirty  map[string][]byte
}

func newState(db *iavl.MutableTree, logger cmtlog.Logger) *State {
	s := &State{
		logger: logger,
		db:     db,
		dbVer:  0,
		header: new(StateHeader),
		dirty:  make(map[string][]byte),
	}
	s.header.AccountIdx = StartAccountIdx
	return s
}

func (s *State) nextState() *State {
	n := &State{
		logger: s.logger,
		db:     s.db,
		dbVer:  s.dbVer,
		dirty:  make(map[string][]byte),
	}
	n.header = s.header.Clone()
	if s.header.Hash != nil {
		n.header.Height = s.header.Height + 1
	}
	return n
}

// Clone copies the pending writes so the copy can be discarded without
// touching s.
func (s *State) Clone() *State {
	n := &State{
		logger: s.logger,
		db:     s.db,
		dbVer:  s.dbVer,
		header: s.header.Clone(),
		dirty:  make(map[string][]byte, len(s.dirty)),
	}
	for k, v := range s.dirty {
		n.dirty[k] = v
	}
	return n
}

func (s *State) load() (err error) {
	val, err := s.get(KeyState)
	if err != nil || val == nil {
		return
	}
	err = rlp.DecodeBytes(val, s.header)
	if err != nil {
		return
	}
	h := s.db.Hash()
	if h != nil {
		s.calcHash(h, true)
	}
	return
}

func (s *State) calcHash(rootHash []byte, update bool) (h common.Hash) {
	h = crypto.Keccak256Hash(rootHash)
	if update {
		s.header.RootHash = common.CopyBytes(rootHash)
		s.header.Hash = common.CopyBytes(h[:])
	}
	return
}

// Update flushes pending writes into the working tree and returns the app
// hash they produce.
func (s *State) Update() (h common.Hash, err error) {
	var hash []byte
	defer func() {
		if hash == nil {
			s.db.Rollback()
		}
	}()
	val, err := rlp.EncodeToBytes(s.header)
	if err != nil {
		return
	}
	_, err = s.db.Set([]byte(KeyState), val)
	if err != nil {
		return
	}

	keys := make([]string, 0, len(s.dirty))
	for k := range s.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, err = s.db.Set([]byte(k), s.dirty[k])
		if err != nil {
			return
		}
	}
	hash = s.db.WorkingHash()
	h = s.calcHash(hash, false)
	s.dirty = make(map[string][]byte)
	return
}

func (s *State) save() (h common.Hash, err error) {
	hash, ver, err := s.db.SaveVersion()
	if err != nil {
		return h, err
	}

	s.dbVer = ver
	h = s.calcHash(hash, true)

	return
}

func (s *State) get(key string) ([]byte, error) {
	if val, ok := s.dirty[key]; ok {
		return val, nil
	}
	val, err := s.db.Get([]byte(key))
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return val, nil
}

func (s *State) getRLP(key string, v any) (found bool, err error) {
	val, err := s.get(key)
	if err != nil || val == nil {
		return false, err
	}
	if err = rlp.DecodeBytes(val, v); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

func (s *State) setRLP(key string, v any) error {
	val, err := rlp.EncodeToBytes(v)
	if err != nil {
		return err
	}
	s.dirty[key] = val
	return nil
}

func (s *State) Header() *StateHeader {
	return s.header
}

func (s *State) Height() uint64 {
	return s.header.Height
}

func (s *State) SetHeight(height uint64) {
	s.header.Height = height
}

func (s *State) Hash() (h common.Hash) {
	if s.header.Hash != nil {
		copy(h[:], s.header.Hash)
	}
	return
}

func (s *State) ChainId() string {
	return s.header.ChainId
}

func (s *State) SetChainId(chainId string) {
	s.header.ChainId = chainId
}

func (s *State) GetAccount(idx uint64) (acnt *Account, err error) {
	if idx < StartAccountIdx || idx >= s.header.AccountIdx {
		err = ErrAccountNoexists
		return
	}
	acnt = new(Account)
	found, err := s.getRLP(fmt.Sprintf(KeyAccountBody, idx), acnt)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrAccountNoexists
	}
	return
}

func (s *State) setAccount(acnt *Account) error {
	return s.setRLP(fmt.Sprintf(KeyAccountBody, acnt.Index), acnt)
}

func (s *State) FindAccount(addr []byte) (acnt *Account, err error) {
	saddr := cmtcrypto.Address(addr).String()
	var idx uint64
	found, err := s.getRLP(fmt.Sprintf(KeyAccountIndex, saddr), &idx)
	if err != nil || !found {
		return nil, err
	}
	return s.GetAccount(idx)
}

// AddAccount assigns the next index to acnt and stores it.
func (s *State) AddAccount(acnt *Account) (err error) {
	if len(acnt.PubKey) != ed25519.PubKeySize {
		return fmt.Errorf("invalid pubkey length %d", len(acnt.PubKey))
	}
	if !acnt.Roles.Valid() {
		return ErrInvalidRoles
	}
	a, err := s.FindAccount(acnt.AddrBytes())
	if err != nil {
		return err
	}
	if a != nil {
		err = ErrAccountAlreadyExists
		return
	}
	acnt.Index = s.header.AccountIdx
	s.header.AccountIdx += 1
	if err = s.setAccount(acnt); err != nil {
		return
	}
	if err = s.setRLP(fmt.Sprintf(KeyAccountIndex, acnt.Address()), acnt.Index); err != nil {
		return
	}
	if acnt.Roles.Has(types.RoleVoter) {
		err = s.addVoters(1)
	}
	return
}

func (s *State) IncNonce(idx uint64) error {
	a, err := s.GetAccount(idx)
	if err != nil {
		return err
	}
	a.Nonce += 1
	return s.setAccount(a)
}

func (s *State) Verify(btx *tx.GovTx, allowNonceGap bool) (succ bool, err error) {
	a, err := s.GetAccount(btx.Account)
	if err != nil {
		if errors.Is(err, ErrAccountNoexists) {
			err = ErrTxAccountNoexists
		}
		return succ, err
	}
	if !(a.Nonce == btx.Nonce || (allowNonceGap && a.Nonce < btx.Nonce)) {
		err = ErrTxNonceInvalid
		return
	}
	dat, err := btx.SigData([]byte(s.header.ChainId))
	if err != nil {
		return succ, err
	}
	succ = a.Verify(dat, btx.Sig)
	if !succ {
		err = ErrTxSigInvalid
	}
	return
}
