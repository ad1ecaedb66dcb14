package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

func fromTomlFile(path string) (*Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}

	if err := validateTomlConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validateTomlConfig applies the same checks the CLI flag validators do;
// file values bypass urfave's per-flag validation.
func validateTomlConfig(cfg *Config) error {
	if cfg.ListenAddr != "" {
		if err := validateIPAddr(cfg.ListenAddr); err != nil {
			return err
		}
	}
	if cfg.DNSAddr != "" {
		if err := validateIPAddr(cfg.DNSAddr); err != nil {
			return err
		}
	}
	if cfg.Backend != "" {
		if err := validateBackend(cfg.Backend); err != nil {
			return err
		}
	}
	if cfg.LogLevel != "" {
		if err := validateLogLevel(cfg.LogLevel); err != nil {
			return err
		}
	}
	if err := validateUint16(int64(cfg.ListenPort)); err != nil {
		return err
	}
	if err := validateUint16(int64(cfg.DNSPort)); err != nil {
		return err
	}
	if err := validateNonNegative(int64(cfg.PersistInterval)); err != nil {
		return err
	}
	return nil
}

func searchTomlFile(customPath string, lookupPaths []string) (string, error) {
	if customPath != "" {
		if _, err := os.Stat(customPath); err != nil {
			return "", fmt.Errorf("no such file: %s", customPath)
		}
		return customPath, nil
	}

	for _, p := range lookupPaths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	// Not finding a config file in the lookup paths is fine.
	return "", nil
}
