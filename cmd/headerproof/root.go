package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/yourusername/headerproof/internal/blockchain"
	"github.com/yourusername/headerproof/internal/config"
	"github.com/yourusername/headerproof/internal/consensus"
	"github.com/yourusername/headerproof/internal/crypto"
	"github.com/yourusername/headerproof/internal/explorer"
	"github.com/yourusername/headerproof/internal/logging"
	"github.com/yourusername/headerproof/internal/prover"
	"github.com/yourusername/headerproof/internal/storage"
)

var (
	configFile string
	v          = config.New()
	cfg        *config.Config
	logger     zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "headerproof",
	Short: "Bitcoin header chain validator",
	Long: `headerproof checks that a contiguous run of Bitcoin block headers links up,
carries enough proof of work and keeps sane timestamps. A valid run is committed
to the double hash of its last header and sealed into a signed receipt.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(v, configFile)
		if err != nil {
			return err
		}

		logger = logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
		return nil
	},
}

// Execute runs the root command and exits with exitCode on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		if consensus.IsRuleViolation(err) {
			fmt.Fprintf(os.Stderr, "   kind: %s\n", consensus.KindOf(err))
		}
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for rule violations and 1 for everything else, cancellation included
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case consensus.IsRuleViolation(err):
		return 2
	default:
		return 1
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (yaml)")
	flags.String("data-dir", "./data", "directory for the header store and prover key")
	flags.String("key-file", "", "prover key file (default <data-dir>/prover.key)")
	flags.Uint32("baseline-time", consensus.DefaultBaselineTime, "earliest acceptable timestamp for the first header")
	flags.String("log-level", "info", "debug|info|warn|error")
	flags.String("log-format", "console", "json|console")
	flags.String("explorer-url", "", "explorer base URL (esplora default: "+explorer.DefaultEsploraURL+")")
	flags.String("api-key", "", "block headers service API key")
	flags.Int("prefetch", 8, "headers fetched ahead of validation")
	flags.String("peer", "", "relay multiaddr for --source peer")

	bindFlags(flags, map[string]string{
		config.KeyDataDir:          "data-dir",
		config.KeyKeyFile:          "key-file",
		config.KeyBaselineTime:     "baseline-time",
		config.KeyLogLevel:         "log-level",
		config.KeyLogFormat:        "log-format",
		config.KeyExplorerURL:      "explorer-url",
		config.KeyExplorerAPIKey:   "api-key",
		config.KeyExplorerPrefetch: "prefetch",
		config.KeyP2PPeer:          "peer",
	})

	rootCmd.AddCommand(proveCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(relayCmd)
	rootCmd.AddCommand(receiptsCmd)
	rootCmd.AddCommand(headerCmd)
}

// bindFlags maps config keys to flag names
func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind %s: %v", name, err))
		}
	}
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func openStore() (*storage.Storage, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return storage.NewStorage(cfg.StorePath())
}

func loadKey() (*crypto.ProverKey, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return crypto.LoadOrCreateProverKey(cfg.ProverKeyPath())
}

// newProver builds a prover that records into store when it is not nil
func newProver(store *storage.Storage, metrics *prover.Metrics) (*prover.Service, error) {
	key, err := loadKey()
	if err != nil {
		return nil, err
	}

	pc := prover.Config{
		Options: blockchain.Options{BaselineTime: cfg.BaselineTime},
		Key:     key,
		Logger:  logger,
		Metrics: metrics,
	}
	if store != nil {
		pc.Journal = store
		pc.Receipts = store
	}

	return prover.New(pc)
}
