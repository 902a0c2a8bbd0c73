package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ggonzalez94/wallet-cli/internal/registry"
	"gopkg.in/yaml.v3"
)

const (
	EnvStoragePath = "WALLET_DATABASE_PATH"
	DefaultStorage = "./wallet-cli-database"
	DefaultVault   = "./wallet.stronghold"
)

type GlobalFlags struct {
	ConfigPath     string
	StoragePath    string
	VaultPath      string
	Network        string
	NodeURL        string
	JSON           bool
	Plain          bool
	NoColor        bool
	EnableCommands string
	Timeout        string
	Retries        int
	LogLevel       string
}

type Settings struct {
	OutputMode     string
	Color          bool
	EnableCommands []string
	Timeout        time.Duration
	Retries        int
	StoragePath    string
	VaultPath      string
	Network        string
	// NodeURL is empty unless set explicitly; the engine then falls back to the
	// stored node and finally to the network default.
	NodeURL        string
	FaucetURL      string
	LogLevel       string
	LogFile        string
	HistoryLimit   int
	SyncInterval   time.Duration
	PollInterval   time.Duration
	ConfirmTimeout time.Duration
	NodeInfoTTL    time.Duration
}

type fileConfig struct {
	Output         string   `yaml:"output"`
	Color          *bool    `yaml:"color"`
	EnableCommands []string `yaml:"enable_commands"`
	Timeout        string   `yaml:"timeout"`
	Retries        *int     `yaml:"retries"`
	Storage        struct {
		Path      string `yaml:"path"`
		VaultPath string `yaml:"vault_path"`
	} `yaml:"storage"`
	Network struct {
		Name      string `yaml:"name"`
		Node      string `yaml:"node"`
		Faucet    string `yaml:"faucet"`
		NodeInfoT string `yaml:"node_info_ttl"`
	} `yaml:"network"`
	Engine struct {
		SyncInterval   string `yaml:"sync_interval"`
		PollInterval   string `yaml:"poll_interval"`
		ConfirmTimeout string `yaml:"confirm_timeout"`
	} `yaml:"engine"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
	Shell struct {
		HistoryLimit *int `yaml:"history_limit"`
	} `yaml:"shell"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings := defaultSettings()

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}

	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.HistoryLimit <= 0 {
		settings.HistoryLimit = 25
	}
	if settings.SyncInterval < 0 {
		settings.SyncInterval = 0
	}
	if _, ok := registry.Lookup(settings.Network); !ok {
		return Settings{}, fmt.Errorf("unknown network %q (known: %s)", settings.Network, strings.Join(registry.Names(), ", "))
	}
	if settings.FaucetURL == "" {
		network, _ := registry.Lookup(settings.Network)
		settings.FaucetURL = network.FaucetURL
	}

	return settings, nil
}

func defaultSettings() Settings {
	return Settings{
		OutputMode:     "plain",
		Color:          true,
		Timeout:        30 * time.Second,
		Retries:        2,
		StoragePath:    DefaultStorage,
		VaultPath:      DefaultVault,
		Network:        registry.DefaultNetwork,
		LogLevel:       "warn",
		HistoryLimit:   25,
		PollInterval:   time.Second,
		ConfirmTimeout: time.Minute,
		NodeInfoTTL:    5 * time.Minute,
	}
}

// LockPath is the flock file guarding writes to the storage database.
func (s Settings) LockPath() string {
	return filepath.Join(s.StoragePath, "wallet.lock")
}

func (s Settings) DatabasePath() string {
	return filepath.Join(s.StoragePath, "wallet.db")
}

func (s Settings) CachePath() string {
	return filepath.Join(s.StoragePath, "cache.db")
}

func (s Settings) CacheLockPath() string {
	return filepath.Join(s.StoragePath, "cache.lock")
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "wallet", "config.yaml"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.Color != nil {
		settings.Color = *cfg.Color
	}
	if len(cfg.EnableCommands) > 0 {
		settings.EnableCommands = cfg.EnableCommands
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.Storage.Path != "" {
		settings.StoragePath = cfg.Storage.Path
	}
	if cfg.Storage.VaultPath != "" {
		settings.VaultPath = cfg.Storage.VaultPath
	}
	if cfg.Network.Name != "" {
		settings.Network = strings.ToLower(cfg.Network.Name)
	}
	if cfg.Network.Node != "" {
		settings.NodeURL = cfg.Network.Node
	}
	if cfg.Network.Faucet != "" {
		settings.FaucetURL = cfg.Network.Faucet
	}
	durations := []struct {
		raw    string
		name   string
		target *time.Duration
	}{
		{cfg.Network.NodeInfoT, "network.node_info_ttl", &settings.NodeInfoTTL},
		{cfg.Engine.SyncInterval, "engine.sync_interval", &settings.SyncInterval},
		{cfg.Engine.PollInterval, "engine.poll_interval", &settings.PollInterval},
		{cfg.Engine.ConfirmTimeout, "engine.confirm_timeout", &settings.ConfirmTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("config %s: %w", d.name, err)
		}
		*d.target = v
	}
	if cfg.Log.Level != "" {
		settings.LogLevel = strings.ToLower(cfg.Log.Level)
	}
	if cfg.Log.File != "" {
		settings.LogFile = cfg.Log.File
	}
	if cfg.Shell.HistoryLimit != nil {
		settings.HistoryLimit = *cfg.Shell.HistoryLimit
	}

	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv(EnvStoragePath); v != "" {
		settings.StoragePath = v
	}
	if v := os.Getenv("WALLET_VAULT_PATH"); v != "" {
		settings.VaultPath = v
	}
	if v := os.Getenv("WALLET_NETWORK"); v != "" {
		settings.Network = strings.ToLower(v)
	}
	if v := os.Getenv("WALLET_NODE_URL"); v != "" {
		settings.NodeURL = v
	}
	if v := os.Getenv("WALLET_FAUCET_URL"); v != "" {
		settings.FaucetURL = v
	}
	if v := os.Getenv("WALLET_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("WALLET_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("WALLET_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
	if v := os.Getenv("WALLET_LOG_LEVEL"); v != "" {
		settings.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("WALLET_SYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.SyncInterval = d
		}
	}
	if v := os.Getenv("NO_COLOR"); v != "" {
		settings.Color = false
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if flags.NoColor {
		settings.Color = false
	}
	if strings.TrimSpace(flags.StoragePath) != "" {
		settings.StoragePath = flags.StoragePath
	}
	if strings.TrimSpace(flags.VaultPath) != "" {
		settings.VaultPath = flags.VaultPath
	}
	if strings.TrimSpace(flags.Network) != "" {
		settings.Network = strings.ToLower(strings.TrimSpace(flags.Network))
	}
	if strings.TrimSpace(flags.NodeURL) != "" {
		settings.NodeURL = strings.TrimSpace(flags.NodeURL)
	}

	if strings.TrimSpace(flags.EnableCommands) != "" {
		parts := strings.Split(flags.EnableCommands, ",")
		allowed := make([]string, 0, len(parts))
		for _, part := range parts {
			v := strings.TrimSpace(part)
			if v != "" {
				allowed = append(allowed, v)
			}
		}
		settings.EnableCommands = allowed
	}

	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	if flags.LogLevel != "" {
		settings.LogLevel = strings.ToLower(flags.LogLevel)
	}

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}

	return nil
}
