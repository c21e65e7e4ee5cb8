package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// RuntimeConfig is the top-level file-backed configuration for a running
// core instance: where it stores its SQLite database, which scope it
// operates under, which symbols it tracks, and how verbosely it logs.
// CLI flags take precedence over whatever is loaded from disk.
type RuntimeConfig struct {
	DataDir string   `yaml:"data_dir"`
	Symbols []string `yaml:"symbols"`
	Scope   struct {
		Exchange  Exchange    `yaml:"exchange"`
		Venue     Venue       `yaml:"venue"`
		AccountID string      `yaml:"account_id"`
		Mode      TradingMode `yaml:"mode"`
	} `yaml:"scope"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// DefaultRuntimeConfig returns a RuntimeConfig with sensible defaults: a
// local data directory, BTCUSDT on Binance futures testnet, info logging.
func DefaultRuntimeConfig() *RuntimeConfig {
	cfg := &RuntimeConfig{
		DataDir: "./data",
		Symbols: []string{"BTCUSDT"},
	}
	cfg.Scope.Exchange = ExchangeBinance
	cfg.Scope.Venue = VenueFutures
	cfg.Scope.AccountID = "default"
	cfg.Scope.Mode = ModeTestnet
	cfg.Logging.Level = "info"
	return cfg
}

// RuntimeConfigFileName is the default config file name within DataDir.
const RuntimeConfigFileName = "config.yaml"

// LoadRuntimeConfig loads configuration from <dataDir>/config.yaml. If the
// file doesn't exist, it writes one populated with defaults and returns
// that, matching the teacher's node.LoadConfig first-run behavior.
func LoadRuntimeConfig(dataDir string) (*RuntimeConfig, error) {
	path := filepath.Join(dataDir, RuntimeConfigFileName)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultRuntimeConfig()
		cfg.DataDir = dataDir
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("write default runtime config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read runtime config: %w", err)
	}

	cfg := DefaultRuntimeConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse runtime config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating its parent directory if needed.
func (c *RuntimeConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal runtime config: %w", err)
	}
	header := []byte("# ledger-core runtime configuration\n# generated automatically on first run\n\n")
	if err := os.WriteFile(path, append(header, data...), 0600); err != nil {
		return fmt.Errorf("write runtime config: %w", err)
	}
	return nil
}
