package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"paylane/crypto"

	"github.com/BurntSushi/toml"
)

// Config is the daemon configuration loaded from TOML.
type Config struct {
	RPCAddress   string `toml:"RPCAddress"`
	DataDir      string `toml:"DataDir"`
	NetworkName  string `toml:"NetworkName"`
	FeeCollector string `toml:"FeeCollector"`
	LogFile      string `toml:"LogFile,omitempty"`
	EventBuffer  int    `toml:"EventBuffer,omitempty"`
}

const (
	defaultRPCAddress  = "127.0.0.1:8645"
	defaultDataDir     = "./payd-data"
	defaultNetworkName = "paylane-local"
)

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = defaultRPCAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaultDataDir
	}
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = defaultNetworkName
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 512
	}
}

// Validate checks the fields that cannot be defaulted.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.FeeCollector) == "" {
		return fmt.Errorf("config: FeeCollector address is required")
	}
	if _, err := crypto.DecodeAddress(c.FeeCollector); err != nil {
		return fmt.Errorf("config: invalid FeeCollector address: %w", err)
	}
	return nil
}

// FeeCollectorAddress returns the decoded 20-byte fee collector identity.
func (c *Config) FeeCollectorAddress() ([20]byte, error) {
	addr, err := crypto.DecodeAddress(c.FeeCollector)
	if err != nil {
		return [20]byte{}, err
	}
	var out [20]byte
	copy(out[:], addr.Bytes())
	return out, nil
}

func createDefault(path string) (*Config, error) {
	// A default file still needs a fee collector; generate a throwaway key so
	// the operator has a working starting point to replace.
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	cfg := &Config{FeeCollector: key.PubKey().Address().String()}
	cfg.applyDefaults()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
