package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cometbft/cometbft/config"
	"github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
)

const DefaultHomeDir = "$HOME/.joy"

// AppConfig is the [app] table of config.toml.
type AppConfig struct {
	Home string `mapstructure:"-"`

	// IndexerEnabled starts the sqlite indexer and its HTTP service.
	IndexerEnabled bool   `mapstructure:"indexer_enabled"`
	IndexerDB      string `mapstructure:"indexer_db"`
	ServiceAddr    string `mapstructure:"service_laddr"`
	// InvariantChecks verifies the governance store after every block.
	InvariantChecks bool `mapstructure:"invariant_checks"`
}

func DefaultAppConfig(home string) *AppConfig {
	return &AppConfig{
		Home:           home,
		IndexerEnabled: true,
		IndexerDB:      "data/indexer.db",
		ServiceAddr:    "127.0.0.1:8080",
	}
}

func (cfg *AppConfig) IndexerDBPath() string {
	if filepath.IsAbs(cfg.IndexerDB) {
		return cfg.IndexerDB
	}
	return filepath.Join(cfg.Home, cfg.IndexerDB)
}

func (cfg *AppConfig) ValidateBasic() error {
	if cfg.IndexerEnabled {
		if cfg.IndexerDB == "" {
			return fmt.Errorf("indexer_db must be set when the indexer is enabled")
		}
		if cfg.ServiceAddr == "" {
			return fmt.Errorf("service_laddr must be set when the indexer is enabled")
		}
	}
	return nil
}

type Config struct {
	*config.Config `mapstructure:",squash"`

	App *AppConfig `mapstructure:"app"`
}

func NewConfig(home string) *Config {
	if len(home) == 0 {
		home = os.ExpandEnv(DefaultHomeDir)
	}
	_ = os.MkdirAll(filepath.Join(home, "config"), 0o755)
	cfg := &Config{
		DefaultCometConfig(),
		DefaultAppConfig(home),
	}
	cfg.SetRoot(home)
	return cfg
}

func (cfg *Config) ValidateBasic() error {
	if err := cfg.Config.ValidateBasic(); err != nil {
		return err
	}
	return cfg.App.ValidateBasic()
}

func InitializeNodeValidatorFiles(config *Config, privKey crypto.PrivKey) (nodeID string, pk crypto.PubKey, err error) {
	nodeKey, err := p2p.LoadOrGenNodeKey(config.NodeKeyFile())
	if err != nil {
		return "", nil, err
	}
	nodeID = string(nodeKey.ID())

	pvKeyFile := config.PrivValidatorKeyFile()
	if err := os.MkdirAll(filepath.Dir(pvKeyFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvKeyFile), err)
	}

	pvStateFile := config.PrivValidatorStateFile()
	if err := os.MkdirAll(filepath.Dir(pvStateFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvStateFile), err)
	}

	var filePV *privval.FilePV
	if privKey == nil {
		filePV = privval.LoadOrGenFilePV(pvKeyFile, pvStateFile)
	} else {
		filePV = privval.NewFilePV(privKey, pvKeyFile, pvStateFile)
		filePV.Save()
	}
	pukey, err := filePV.GetPubKey()
	if err != nil {
		return "", nil, err
	}

	return nodeID, pukey, nil
}

// DefaultCometConfig shortens the commit timeout so one block is one
// governance step of roughly a second and a half.
func DefaultCometConfig() *config.Config {
	cometConfig := config.DefaultConfig()
	cometConfig.Consensus.TimeoutPropose = time.Second * 3
	cometConfig.Consensus.TimeoutPrevote = time.Second * 1
	cometConfig.Consensus.TimeoutPrecommit = time.Second * 1
	cometConfig.Consensus.TimeoutCommit = time.Millisecond * 1200
	return cometConfig
}
