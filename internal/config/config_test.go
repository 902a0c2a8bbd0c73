package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadPrecedenceFlagsOverEnvOverFile(t *testing.T) {
	tmp := t.TempDir()
	configPath := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(configPath, []byte("output: json\nretries: 1\nstorage:\n  path: /from/file\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("WALLET_OUTPUT", "json")
	t.Setenv(EnvStoragePath, "/from/env")
	flags := GlobalFlags{ConfigPath: configPath, Plain: true, Retries: 5}
	settings, err := Load(flags)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.OutputMode != "plain" {
		t.Fatalf("expected flag to win, got output=%s", settings.OutputMode)
	}
	if settings.Retries != 5 {
		t.Fatalf("expected retries from flags, got %d", settings.Retries)
	}
	if settings.StoragePath != "/from/env" {
		t.Fatalf("expected env storage path, got %s", settings.StoragePath)
	}
	if settings.DatabasePath() != filepath.Join("/from/env", "wallet.db") {
		t.Fatalf("unexpected database path: %s", settings.DatabasePath())
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(EnvStoragePath, "")
	settings, err := Load(GlobalFlags{Retries: -1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.StoragePath != DefaultStorage {
		t.Fatalf("expected default storage path, got %s", settings.StoragePath)
	}
	if settings.HistoryLimit != 25 {
		t.Fatalf("expected history limit 25, got %d", settings.HistoryLimit)
	}
	if settings.FaucetURL == "" {
		t.Fatal("expected faucet url from network defaults")
	}
	if settings.NodeURL != "" {
		t.Fatalf("expected node url to stay unset, got %s", settings.NodeURL)
	}
}

func TestLoadEngineDurationsFromFile(t *testing.T) {
	tmp := t.TempDir()
	configPath := filepath.Join(tmp, "config.yaml")
	body := "engine:\n  sync_interval: 30s\n  poll_interval: 250ms\nnetwork:\n  name: shimmer\n"
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	settings, err := Load(GlobalFlags{ConfigPath: configPath, Retries: -1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.SyncInterval != 30*time.Second || settings.PollInterval != 250*time.Millisecond {
		t.Fatalf("unexpected durations: sync=%s poll=%s", settings.SyncInterval, settings.PollInterval)
	}
	if settings.Network != "shimmer" {
		t.Fatalf("unexpected network: %s", settings.Network)
	}
}

func TestLoadRejectsUnknownNetworkAndExclusiveFlags(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	if _, err := Load(GlobalFlags{JSON: true, Plain: true}); err == nil {
		t.Fatal("expected error with --json and --plain")
	}
	if _, err := Load(GlobalFlags{Network: "nope", Retries: -1}); err == nil {
		t.Fatal("expected unknown network error")
	}
}
