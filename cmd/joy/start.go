package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	cmtconfig "github.com/cometbft/cometbft/config"
	cmtflags "github.com/cometbft/cometbft/libs/cli/flags"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	nm "github.com/cometbft/cometbft/node"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/cometbft/cometbft/proxy"
	"github.com/mnaamani/joystream/app"
	"github.com/mnaamani/joystream/config"
	"github.com/mnaamani/joystream/indexer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var homeDir string

var rootCmd = &cobra.Command{
	Use:   "joy",
	Short: "joy runs an on-chain proposal engine",
	Long: `joy is a CometBFT application where accounts create proposals,
vote on them, and approved proposals execute on chain.`,
	SilenceUsage: true,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the node",
	Args:  cobra.NoArgs,
	RunE:  startRun,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&homeDir, FlagHome, "d", "", "home directory")
}

func loadConfig() (*config.Config, error) {
	if homeDir == "" {
		homeDir = os.ExpandEnv(config.DefaultHomeDir)
	}
	cfg := &config.Config{
		Config: config.DefaultCometConfig(),
		App:    config.DefaultAppConfig(homeDir),
	}
	cfg.SetRoot(homeDir)

	viper.SetConfigFile(filepath.Join(homeDir, "config", "config.toml"))
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.App.Home = homeDir
	if err := cfg.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid configuration data: %w", err)
	}
	return cfg, nil
}

func startRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pv := privval.LoadFilePV(
		cfg.PrivValidatorKeyFile(),
		cfg.PrivValidatorStateFile(),
	)
	nodeKey, err := p2p.LoadNodeKey(cfg.NodeKeyFile())
	if err != nil {
		return fmt.Errorf("failed to load node's key: %w", err)
	}

	logger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout))
	logger, err = cmtflags.ParseLogLevel(cfg.LogLevel, logger, cmtconfig.DefaultLogLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	var reg prometheus.Registerer
	if cfg.Instrumentation.Prometheus {
		reg = prometheus.DefaultRegisterer
	}
	joyApp, err := app.NewJoyApp(cfg.App, logger, reg)
	if err != nil {
		return fmt.Errorf("new app: %w", err)
	}

	node, err := nm.NewNode(
		cfg.Config,
		pv,
		nodeKey,
		proxy.NewLocalClientCreator(joyApp),
		nm.DefaultGenesisDocProviderFunc(cfg.Config),
		cmtconfig.DefaultDBProvider,
		nm.DefaultMetricsProvider(cfg.Instrumentation),
		logger,
	)
	if err != nil {
		joyApp.Stop()
		return fmt.Errorf("creating node: %w", err)
	}

	if err = joyApp.Start(node.BlockStore()); err != nil {
		joyApp.Stop()
		return err
	}
	if err = node.Start(); err != nil {
		joyApp.Stop()
		return fmt.Errorf("start comet node: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.App.IndexerEnabled {
		if err = startIndexer(ctx, cfg, logger); err != nil {
			logger.Error("indexer disabled", "err", err)
		}
	}

	defer func() {
		logger.Info("shutting down")
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := node.Stop(); err != nil {
				logger.Error("stop comet node", "err", err)
			}
			node.Wait()
			joyApp.Stop()
		}()
		timer := time.NewTimer(time.Second * 10)
		select {
		case <-timer.C:
			os.Exit(1)
		case <-done:
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	return nil
}

func startIndexer(ctx context.Context, cfg *config.Config, logger cmtlog.Logger) error {
	rpcUrl, err := url.Parse(cfg.RPC.ListenAddress)
	if err != nil {
		return err
	}
	rpcUrl.Scheme = "http"
	idx, err := indexer.NewChainIndexer(logger, cfg.App.IndexerDBPath(), rpcUrl.String())
	if err != nil {
		return err
	}
	go func() {
		idx.Start(ctx)
		idx.Close()
	}()
	svc := indexer.NewService(cfg.App.ServiceAddr, idx)
	go func() {
		if err := svc.Start(); err != nil {
			logger.Error("indexer service stopped", "err", err)
		}
	}()
	return nil
}
