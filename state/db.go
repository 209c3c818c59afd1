package state

import (
	"sync"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	dbm "github.com/cosmos/iavl/db"
	"github.com/ethereum/go-ethereum/common"
)

type StateDB struct {
	mtx sync.RWMutex

	dir    string
	logger cmtlog.Logger
	db     *iavl.MutableTree

	state *State
}

func NewStateDB(dir string, logger cmtlog.Logger) (db *StateDB, err error) {
	ldb, err := dbm.NewDB("joy", "goleveldb", dir)
	if err != nil {
		return nil, err
	}
	return openStateDB(ldb, dir, logger)
}

// NewMemStateDB keeps the tree in memory. Nothing survives Close.
func NewMemStateDB(logger cmtlog.Logger) (*StateDB, error) {
	return openStateDB(dbm.NewMemDB(), "", logger)
}

func openStateDB(ldb dbm.DB, dir string, logger cmtlog.Logger) (db *StateDB, err error) {
	logger = logger.With("module", "joydb")
	tdb := iavl.NewMutableTree(ldb, 128, true, newTreeLogger(logger))
	version, err := tdb.Load()
	if err != nil {
		return nil, err
	}
	logger.Info("load db success", "version", version)
	st := newState(tdb, logger)
	st.dbVer = version
	if err = st.load(); err != nil {
		logger.Error("joydb load fail", "err", err)
		return nil, err
	}
	db = &StateDB{
		dir:    dir,
		logger: logger,
		db:     tdb,
		state:  st,
	}
	return
}

func (db *StateDB) Close() (err error) {
	err = db.db.Close()
	return
}

func (db *StateDB) Header() (header *StateHeader) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	header = db.state.Header().Clone()
	return
}

func (db *StateDB) State() *State {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	return db.state
}

func (db *StateDB) NewState() (st *State) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	st = db.state.nextState()
	return
}

// SetState persists st as the new committed version.
func (db *StateDB) SetState(st *State) (hash common.Hash, err error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	hash, err = st.save()
	if err != nil {
		return
	}
	db.state = st
	return
}

// View runs fn against the committed state under the read lock. fn must
// not write.
func (db *StateDB) View(fn func(st *State) error) error {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	return fn(db.state)
}

func (db *StateDB) GetAccountByIndex(idx uint64) (acnt *Account, height uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	acnt, err = db.state.GetAccount(idx)
	if err != nil {
		return
	}
	acnt = acnt.Clone()
	height = db.state.header.Height
	return
}

func (db *StateDB) GetAccountByAddress(addr []byte) (acnt *Account, height uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	acnt, err = db.state.FindAccount(addr)
	if err != nil {
		return
	}
	if acnt != nil {
		acnt = acnt.Clone()
	}
	height = db.state.header.Height
	return
}

// Accounts lists stored accounts in index order starting at from.
func (db *StateDB) Accounts(from uint64, limit int) (accounts []*Account, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	if from < StartAccountIdx {
		from = StartAccountIdx
	}
	for idx := from; idx < db.state.header.AccountIdx; idx++ {
		if limit > 0 && len(accounts) >= limit {
			break
		}
		a, err := db.state.GetAccount(idx)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return
}
