package config

import (
	"net"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config is the full configuration surface. Every field is reachable both
// as a CLI flag and as a TOML key; flags given on the command line win
// over file values.
type Config struct {
	Interface       string `toml:"interface"`
	Backend         string `toml:"backend"`
	ListenAddr      string `toml:"listen-addr"`
	ListenPort      int    `toml:"listen-port"`
	StateFile       string `toml:"state-file"`
	PersistInterval int    `toml:"persist-interval"`
	Resolve         bool   `toml:"resolve"`
	DNSAddr         string `toml:"dns-addr"`
	DNSPort         int    `toml:"dns-port"`
	LogLevel        string `toml:"log-level"`
	Silent          bool   `toml:"silent"`
}

// Level converts the validated log-level string.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// ListenIP returns the validated listen address.
func (c *Config) ListenIP() net.IP {
	return net.ParseIP(c.ListenAddr)
}

// DNSIP returns the validated reverse-DNS upstream address.
func (c *Config) DNSIP() net.IP {
	return net.ParseIP(c.DNSAddr)
}

// PersistEvery converts the persist-interval milliseconds; 0 means the
// baseline persist-every-observation policy.
func (c *Config) PersistEvery() time.Duration {
	return time.Duration(c.PersistInterval) * time.Millisecond
}

// mergeConfig folds the file config under the args config: a file value
// survives only where the final value is still zero, unless the option's
// flag appeared on the command line, in which case the flag always wins.
func mergeConfig(argsCfg *Config, tomlCfg *Config, args []string) *Config {
	final := tomlCfg

	finalVal := reflect.ValueOf(final).Elem()
	argsVal := reflect.ValueOf(argsCfg).Elem()
	structType := finalVal.Type()

	for i := 0; i < finalVal.NumField(); i++ {
		tag := structType.Field(i).Tag.Get("toml")

		finalField := finalVal.Field(i)
		argsField := argsVal.Field(i)

		if finalField.CanSet() && finalField.IsZero() {
			finalField.Set(argsField)
		}

		for j := range args {
			if strings.Contains(args[j], tag) {
				finalField.Set(argsField)
				break
			}
		}
	}

	return final
}
