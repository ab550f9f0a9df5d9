package config

import (
	"os"
	"path/filepath"
	"testing"

	"paylane/crypto"
)

func testFeeCollector(t *testing.T) string {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key.PubKey().Address().String()
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := "FeeCollector = \"" + testFeeCollector(t) + "\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != defaultRPCAddress {
		t.Fatalf("RPCAddress = %q, want default", cfg.RPCAddress)
	}
	if cfg.DataDir != defaultDataDir {
		t.Fatalf("DataDir = %q, want default", cfg.DataDir)
	}
	if cfg.NetworkName != defaultNetworkName {
		t.Fatalf("NetworkName = %q, want default", cfg.NetworkName)
	}
	if cfg.EventBuffer != 512 {
		t.Fatalf("EventBuffer = %d, want 512", cfg.EventBuffer)
	}
	if _, err := cfg.FeeCollectorAddress(); err != nil {
		t.Fatalf("fee collector must decode: %v", err)
	}
}

func TestLoadRejectsMissingFeeCollector(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("RPCAddress = \"127.0.0.1:9000\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing FeeCollector")
	}
}

func TestLoadRejectsBogusFeeCollector(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("FeeCollector = \"not-an-address\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for undecodable FeeCollector")
	}
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config file must be written: %v", err)
	}
	if _, err := cfg.FeeCollectorAddress(); err != nil {
		t.Fatalf("generated fee collector must decode: %v", err)
	}

	// Loading the written file back yields the same config.
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.FeeCollector != cfg.FeeCollector {
		t.Fatalf("reloaded FeeCollector differs")
	}
}
