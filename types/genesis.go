package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cometbft/cometbft/crypto"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	cmttypes "github.com/cometbft/cometbft/types"
)

const ModuleName = "joy"
const DefaultPower = 1000

type GenesisValidator struct {
	Address crypto.Address `json:"address"`
	PubKey  crypto.PubKey  `json:"pub_key"`
	Power   int64          `json:"power"`
	Name    string         `json:"name"`
}

// GenesisAccount is an extra account created at genesis besides the
// validators, which always receive RoleMember.
type GenesisAccount struct {
	PubKey []byte `json:"pub_key"`
	Roles  Role   `json:"roles"`
}

// GenesisAppState is the app_state section of the genesis file.
type GenesisAppState struct {
	Params   *GovParams       `json:"params,omitempty"`
	Accounts []GenesisAccount `json:"accounts,omitempty"`
}

func DefaultGenesisAppState() *GenesisAppState {
	return &GenesisAppState{Params: DefaultGovParams()}
}

// ParseGenesisAppState decodes app_state bytes, falling back to defaults
// for an empty document.
func ParseGenesisAppState(dat []byte) (*GenesisAppState, error) {
	gs := DefaultGenesisAppState()
	if len(dat) == 0 {
		return gs, nil
	}
	if err := json.Unmarshal(dat, gs); err != nil {
		return nil, fmt.Errorf("decode app_state: %w", err)
	}
	if gs.Params == nil {
		gs.Params = DefaultGovParams()
	}
	if err := gs.Params.Validate(); err != nil {
		return nil, err
	}
	for i, a := range gs.Accounts {
		if len(a.PubKey) != 32 {
			return nil, fmt.Errorf("genesis account %d: invalid ed25519 pubkey length %d", i, len(a.PubKey))
		}
		if !a.Roles.Valid() {
			return nil, fmt.Errorf("genesis account %d: invalid roles %d", i, a.Roles)
		}
	}
	return gs, nil
}

// GenesisDoc defines the initial conditions for a CometBFT blockchain, in particular its validator set.
type GenesisDoc struct {
	GenesisTime     time.Time                 `json:"genesis_time"`
	ChainID         string                    `json:"chain_id"`
	InitialHeight   int64                     `json:"initial_height"`
	ConsensusParams *cmttypes.ConsensusParams `json:"consensus_params,omitempty"`
	Validators      []GenesisValidator        `json:"validators"`
	AppHash         []byte                    `json:"app_hash"`
	AppState        json.RawMessage           `json:"app_state"`
}

// SaveAs is a utility method for saving GenensisDoc as a JSON file.
func (genDoc *GenesisDoc) SaveAs(file string) error {
	genDocBytes, err := cmtjson.MarshalIndent(genDoc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(file, genDocBytes, 0o600)
}

func (ag *GenesisDoc) ValidateAndComplete() error {
	if ag.ChainID == "" {
		return errors.New("genesis doc must include non-empty chain_id")
	}

	if ag.InitialHeight < 0 {
		return fmt.Errorf("initial_height cannot be negative (got %v)", ag.InitialHeight)
	}

	if ag.InitialHeight == 0 {
		ag.InitialHeight = 1
	}

	if ag.GenesisTime.IsZero() {
		ag.GenesisTime = time.Now().Round(0).UTC()
	}

	if _, err := ParseGenesisAppState(ag.AppState); err != nil {
		return err
	}

	return nil
}

func ExportGenesisFile(genesis *GenesisDoc, genFile string) error {
	if err := genesis.ValidateAndComplete(); err != nil {
		return err
	}
	return genesis.SaveAs(genFile)
}
