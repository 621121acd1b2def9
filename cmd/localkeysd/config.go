package main

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type config struct {
	DataDir                string  `toml:"data_dir"`
	ApprovalTimeoutSeconds int     `toml:"approval_timeout_seconds"`
	IdleLockMinutes        int     `toml:"idle_lock_minutes"`
	DebounceMillis         int     `toml:"debounce_ms"`
	MaxLogEntries          int     `toml:"max_log_entries"`
	RatePerSecond          float64 `toml:"rate_per_second"`
	RateBurst              int     `toml:"rate_burst"`
}

func loadConfig(path string) (config, error) {
	var cfg config
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.setDefaults()
	return cfg, nil
}

func (c *config) setDefaults() {
	if c.DataDir == "" {
		c.DataDir = defaultDataDir()
	}
	if c.ApprovalTimeoutSeconds <= 0 {
		c.ApprovalTimeoutSeconds = 30
	}
	if c.IdleLockMinutes <= 0 {
		c.IdleLockMinutes = 5
	}
	if c.DebounceMillis <= 0 {
		c.DebounceMillis = 1000
	}
	if c.MaxLogEntries <= 0 {
		c.MaxLogEntries = 1000
	}
	// Rate limits fall back to the server package defaults when zero.
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".localkeys"
	}
	return filepath.Join(home, ".localkeys")
}
