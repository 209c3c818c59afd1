package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	cmtos "github.com/cometbft/cometbft/libs/os"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/mnaamani/joystream/config"
	"github.com/mnaamani/joystream/types"
	"github.com/spf13/cobra"
)

type printInfo struct {
	Moniker    string          `json:"moniker"`
	ChainID    string          `json:"chain_id"`
	NodeID     string          `json:"node_id"`
	AppMessage json.RawMessage `json:"app_message"`
}

func displayInfo(info printInfo) error {
	out, err := json.MarshalIndent(info, "", " ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(os.Stderr, "%s\n", out)
	return err
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize private validator, p2p, genesis, and application configuration files",
	Args:  cobra.NoArgs,
	RunE:  initRun,
}

func init() {
	initCmd.Flags().BoolP(FlagOverwrite, "o", false, "overwrite the genesis.json file")
	initCmd.Flags().String(FlagChainID, "", "genesis file chain-id, if left blank will be randomly created")
	initCmd.Flags().StringSlice(FlagAccounts, nil, "extra genesis account as <hex ed25519 pubkey>:<role>[+<role>...]")
}

// parseGenesisAccount reads "<pubkey hex>:<role>+<role>".
func parseGenesisAccount(s string) (types.GenesisAccount, error) {
	pk, roleNames, ok := strings.Cut(s, ":")
	if !ok {
		return types.GenesisAccount{}, fmt.Errorf("account %q: expected <pubkey>:<roles>", s)
	}
	pub, err := hex.DecodeString(pk)
	if err != nil {
		return types.GenesisAccount{}, fmt.Errorf("account %q: %w", s, err)
	}
	roles, err := parseRoles(roleNames, "+")
	if err != nil {
		return types.GenesisAccount{}, err
	}
	return types.GenesisAccount{PubKey: pub, Roles: roles}, nil
}

func initRun(cmd *cobra.Command, args []string) error {
	chainID, _ := cmd.Flags().GetString(FlagChainID)
	overwrite, _ := cmd.Flags().GetBool(FlagOverwrite)
	extra, _ := cmd.Flags().GetStringSlice(FlagAccounts)

	if chainID == "" {
		chainID = fmt.Sprintf("joy-chain-%v", rand.Uint64())
	}
	cfg := config.NewConfig(homeDir)

	genFile := cfg.GenesisFile()
	if !overwrite && cmtos.FileExists(genFile) {
		return fmt.Errorf("genesis file already exists: %v", genFile)
	}

	nodeID, pk, err := config.InitializeNodeValidatorFiles(cfg, nil)
	if err != nil {
		return err
	}

	appState := types.DefaultGenesisAppState()
	for _, s := range extra {
		a, err := parseGenesisAccount(s)
		if err != nil {
			return err
		}
		appState.Accounts = append(appState.Accounts, a)
	}
	appStateBytes, err := json.Marshal(appState)
	if err != nil {
		return err
	}

	genesis := &types.GenesisDoc{
		GenesisTime:     time.Now(),
		ChainID:         chainID,
		ConsensusParams: cmttypes.DefaultConsensusParams(),
		InitialHeight:   1,
		Validators: []types.GenesisValidator{
			{Address: pk.Address(), PubKey: pk, Power: types.DefaultPower},
		},
		AppState: appStateBytes,
	}
	if err = types.ExportGenesisFile(genesis, genFile); err != nil {
		return fmt.Errorf("failed to export genesis file: %w", err)
	}
	if err = config.WriteConfigFile(filepath.Join(cfg.RootDir, "config", "config.toml"), cfg); err != nil {
		return err
	}
	return displayInfo(printInfo{Moniker: cfg.Moniker, ChainID: chainID, NodeID: nodeID, AppMessage: genesis.AppState})
}
