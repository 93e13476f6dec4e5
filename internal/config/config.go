// Package config loads settings from defaults, an optional YAML file,
// HEADERPROOF_ environment variables and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/yourusername/headerproof/internal/consensus"
)

const EnvPrefix = "HEADERPROOF"

// ErrExplorerURLRequired is returned when the block headers service has no URL
var ErrExplorerURLRequired = errors.New("explorer.url is required for the block headers service")

const (
	KeyBaselineTime     = "baseline_time"
	KeyDataDir          = "data_dir"
	KeyLogLevel         = "log.level"
	KeyLogFormat        = "log.format"
	KeyKeyFile          = "key_file"
	KeyGRPCListen       = "grpc.listen"
	KeyP2PListen        = "p2p.listen"
	KeyP2PPeer          = "p2p.peer"
	KeyExplorerKind     = "explorer.kind"
	KeyExplorerURL      = "explorer.url"
	KeyExplorerAPIKey   = "explorer.api_key"
	KeyExplorerPrefetch = "explorer.prefetch"
	KeyMetricsListen    = "metrics.listen"
)

// Config is the decoded headerproof configuration
type Config struct {
	BaselineTime uint32         `mapstructure:"baseline_time"`
	DataDir      string         `mapstructure:"data_dir"`
	KeyFile      string         `mapstructure:"key_file"`
	Log          LogConfig      `mapstructure:"log"`
	GRPC         GRPCConfig     `mapstructure:"grpc"`
	P2P          P2PConfig      `mapstructure:"p2p"`
	Explorer     ExplorerConfig `mapstructure:"explorer"`
	Metrics      MetricsConfig  `mapstructure:"metrics"`
}

// LogConfig controls the zerolog output
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GRPCConfig holds the prover service listen address
type GRPCConfig struct {
	Listen string `mapstructure:"listen"`
}

// P2PConfig holds the relay listen multiaddr and the default peer
type P2PConfig struct {
	Listen string `mapstructure:"listen"`
	Peer   string `mapstructure:"peer"`
}

// ExplorerConfig selects the HTTP header source. Kind is "esplora" or "bhs".
type ExplorerConfig struct {
	Kind     string `mapstructure:"kind"`
	URL      string `mapstructure:"url"`
	APIKey   string `mapstructure:"api_key"`
	Prefetch int    `mapstructure:"prefetch"`
}

// MetricsConfig enables the Prometheus endpoint when Listen is set
type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

// New returns a viper instance with defaults set and environment lookup enabled
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyBaselineTime, consensus.DefaultBaselineTime)
	v.SetDefault(KeyDataDir, "./data")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyKeyFile, "")
	v.SetDefault(KeyGRPCListen, "127.0.0.1:50051")
	v.SetDefault(KeyP2PListen, "/ip4/0.0.0.0/tcp/4001")
	v.SetDefault(KeyP2PPeer, "")
	v.SetDefault(KeyExplorerKind, "esplora")
	v.SetDefault(KeyExplorerURL, "")
	v.SetDefault(KeyExplorerAPIKey, "")
	v.SetDefault(KeyExplorerPrefetch, 8)
	v.SetDefault(KeyMetricsListen, "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the optional config file into v and decodes the result
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the commands cannot run with
func (c *Config) Validate() error {
	switch c.Explorer.Kind {
	case "esplora", "bhs":
	default:
		return fmt.Errorf("unknown explorer kind %q", c.Explorer.Kind)
	}

	if c.Explorer.Kind == "bhs" && c.Explorer.URL == "" {
		return ErrExplorerURLRequired
	}

	if c.Explorer.Prefetch < 1 {
		return errors.New("explorer.prefetch must be at least 1")
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}

	return nil
}

// StorePath is the LevelDB directory under the data dir
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "headers")
}

// ProverKeyPath returns key_file, or prover.key under the data dir when unset
func (c *Config) ProverKeyPath() string {
	if c.KeyFile != "" {
		return c.KeyFile
	}
	return filepath.Join(c.DataDir, "prover.key")
}
