package config

import (
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// Driver configuration. The library itself is configured through
// storage.Options; this file only feeds the btdrive tool.

type Config struct {
	Home     string `yaml:"home"`
	DataDir  string `yaml:"data_dir"`
	LogDir   string `yaml:"log_dir"`
	LogLevel string `yaml:"log_level"`

	PageSize   int `yaml:"page_size"`
	CachePages int `yaml:"cache_pages"`

	Stress struct {
		Max    int   `yaml:"max"`
		Min    int   `yaml:"min"`
		Low    int32 `yaml:"low"`
		High   int32 `yaml:"high"`
		Cycles int   `yaml:"cycles"`
		Seed   int64 `yaml:"seed"`
	} `yaml:"stress"`
}

// Allow the user to set the tool home through an env variable,
// otherwise default to ~/.local/share/btdrive

func Load(homeOverride, configOverride string) (*Config, error) {
	home := homeOverride
	if home == "" {
		home = os.Getenv("BTDRIVE_HOME")
	}

	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		home = filepath.Join(userHome, ".local", "share", "btdrive")
	}

	if err := os.MkdirAll(home, 0o755); err != nil {
		return nil, err
	}

	cfg := &Config{
		Home:       home,
		DataDir:    filepath.Join(home, "data"),
		LogDir:     filepath.Join(home, "log"),
		LogLevel:   "info",
		PageSize:   4096,
		CachePages: 32,
	}
	cfg.Stress.Max = 10000
	cfg.Stress.Min = 10
	cfg.Stress.Cycles = 3
	cfg.Stress.Seed = 1

	cfgPath := configOverride
	if cfgPath == "" {
		cfgPath = filepath.Join(home, "config.yaml")
	}

	if f, err := os.Open(cfgPath); err == nil {
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return nil, err
		}
	}

	_ = os.MkdirAll(cfg.DataDir, 0o755)
	_ = os.MkdirAll(cfg.LogDir, 0o755)

	return cfg, nil
}
