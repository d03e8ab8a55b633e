package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/vietddude/relayer/internal/core/domain"
	redisclient "github.com/vietddude/relayer/internal/infra/redis"
	"github.com/vietddude/relayer/internal/infra/storage/postgres"
)

// GenesisLatest anchors a fresh checkpoint at the current tip instead of
// scanning history.
const GenesisLatest = "latest"

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server      ServerConfig       `yaml:"server"`
	Source      ChainEndpoint      `yaml:"source"`
	Destination ChainEndpoint      `yaml:"destination"`
	Relayer     RelayerConfig      `yaml:"relayer"`
	Checkpoint  CheckpointConfig   `yaml:"checkpoint"`
	Redis       redisclient.Config `yaml:"redis"`
	Database    postgres.Config    `yaml:"database"`
	Logging     LoggingConfig      `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ChainEndpoint holds the settings for one side of the bridge.
type ChainEndpoint struct {
	ChainID        domain.ChainID `yaml:"id"`
	Name           string         `yaml:"name"`
	RPCURL         string         `yaml:"rpc_url"`
	BridgeContract string         `yaml:"bridge_contract"`
	EventTopic     string         `yaml:"event_topic"`
}

// RelayerConfig holds the relay loop's tuning knobs.
type RelayerConfig struct {
	SigningKey      string        `yaml:"signing_key"`
	PollingInterval time.Duration `yaml:"polling_interval"`
	MaxWindowSize   uint64        `yaml:"max_window_size"`
	ConfirmationLag uint64        `yaml:"confirmation_lag"`
	// GenesisBlock is a block number or "latest".
	GenesisBlock  string `yaml:"genesis_block"`
	DedupCapacity int    `yaml:"dedup_capacity"`
}

// CheckpointConfig holds file-backed checkpoint settings. Ignored when a
// database URL is configured.
type CheckpointConfig struct {
	Path string `yaml:"path"`
}

// StartFromTip reports whether the relayer should anchor a fresh
// checkpoint at the current tip.
func (r RelayerConfig) StartFromTip() bool {
	return r.GenesisBlock == "" || r.GenesisBlock == GenesisLatest
}

// GenesisHeight parses the numeric genesis block. Only valid when
// StartFromTip is false.
func (r RelayerConfig) GenesisHeight() (uint64, error) {
	n, err := strconv.ParseUint(r.GenesisBlock, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("genesis_block must be a block number or %q: %w", GenesisLatest, err)
	}
	return n, nil
}

// Validate checks the fields the relayer cannot run without.
func (c *AppConfig) Validate() error {
	if c.Source.RPCURL == "" {
		return fmt.Errorf("source.rpc_url is required")
	}
	if c.Destination.RPCURL == "" {
		return fmt.Errorf("destination.rpc_url is required")
	}
	if c.Source.BridgeContract == "" {
		return fmt.Errorf("source.bridge_contract is required")
	}
	if c.Source.EventTopic == "" {
		return fmt.Errorf("source.event_topic is required")
	}
	if c.Relayer.SigningKey == "" {
		return fmt.Errorf("relayer.signing_key is required")
	}
	if !c.Relayer.StartFromTip() {
		if _, err := c.Relayer.GenesisHeight(); err != nil {
			return err
		}
	}
	return nil
}
