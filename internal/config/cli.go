package config

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/urfave/cli/v3"
)

// CreateCommand builds the root CLI command. runFunc receives the merged
// configuration and the path of the config file that was loaded, if any;
// printVersion handles the --version flag.
func CreateCommand(
	runFunc func(ctx context.Context, configPath string, cfg *Config) error,
	printVersion func(),
) *cli.Command {
	cmd := &cli.Command{
		Name:        "whoisthere",
		Description: "Passive per-conversation traffic observer",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "interface",
				Aliases: []string{"i"},
				Usage: `
				Network interface to observe. When omitted, the interface
				routing to the default gateway is used.`,
				OnlyOnce: true,
			},

			&cli.StringFlag{
				Name: "backend",
				Usage: `
				Capture backend: 'pcap' (default) or 'raw' (Linux AF_PACKET,
				no libpcap needed)`,
				Value:     "pcap",
				OnlyOnce:  true,
				Validator: validateBackend,
			},

			&cli.StringFlag{
				Name: "listen-addr",
				Usage: `
				IP address the query server listens on (default: 127.0.0.1)`,
				Value:     "127.0.0.1",
				OnlyOnce:  true,
				Validator: validateIPAddr,
			},

			&cli.IntFlag{
				Name: "listen-port",
				Usage: `
				Port the query server listens on (default: 8839)`,
				Value:     8839,
				OnlyOnce:  true,
				Validator: validateUint16,
			},

			&cli.StringFlag{
				Name: "state-file",
				Usage: `
				Path of the persisted stats document. When omitted, stats
				live in memory only and are lost on exit.`,
				OnlyOnce: true,
			},

			&cli.IntFlag{
				Name: "persist-interval",
				Usage: `
				Minimum milliseconds between state file writes. 0 persists
				after every observation (default: 0)`,
				Value:     0,
				OnlyOnce:  true,
				Validator: validateNonNegative,
			},

			&cli.BoolFlag{
				Name: "resolve",
				Usage: `
				Enable the /resolved view with cached reverse-DNS names`,
				OnlyOnce: true,
			},

			&cli.StringFlag{
				Name: "dns-addr",
				Usage: `
				Upstream DNS server for reverse lookups (default: 8.8.8.8)`,
				Value:     "8.8.8.8",
				OnlyOnce:  true,
				Validator: validateIPAddr,
			},

			&cli.IntFlag{
				Name: "dns-port",
				Usage: `
				Port of the upstream DNS server (default: 53)`,
				Value:     53,
				OnlyOnce:  true,
				Validator: validateUint16,
			},

			&cli.StringFlag{
				Name: "log-level",
				Usage: `
				Set log level (default: 'info')`,
				Value:     "info",
				OnlyOnce:  true,
				Validator: validateLogLevel,
			},

			&cli.BoolFlag{
				Name: "silent",
				Usage: `
				Do not show the banner at start up`,
				OnlyOnce: true,
			},

			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage: `
				Custom location of the config file to load. Options given
				through command line flags override the file.`,
				OnlyOnce: true,
				Sources:  cli.EnvVars("WHOISTHERE_CONFIG"),
			},

			&cli.BoolFlag{
				Name: "clean",
				Usage: `
				If set, all configuration files will be ignored`,
				OnlyOnce: true,
			},

			&cli.BoolFlag{
				Name:    "version",
				Aliases: []string{"v"},
				Usage: `
				Print version and exit`,
				OnlyOnce: true,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Bool("version") {
				printVersion()
				return nil
			}

			var tomlCfg *Config
			var configPath string
			if !cmd.Bool("clean") {
				const configFilename = "whoisthere.toml"

				lookupPaths := []string{
					path.Join(string(os.PathSeparator), "etc", configFilename),
					path.Join(os.Getenv("XDG_CONFIG_HOME"), "whoisthere", configFilename),
					path.Join(os.Getenv("HOME"), ".config", "whoisthere", configFilename),
				}

				p, err := searchTomlFile(cmd.String("config"), lookupPaths)
				if err != nil {
					return err
				}

				if p != "" {
					configPath = p
					tomlCfg, err = fromTomlFile(p)
					if err != nil {
						return fmt.Errorf("error parsing toml config: %w", err)
					}
				}
			}

			argsCfg := parseConfigFromArgs(cmd)

			var finalCfg *Config
			if tomlCfg == nil {
				finalCfg = argsCfg
			} else {
				finalCfg = mergeConfig(argsCfg, tomlCfg, os.Args[1:])
			}

			return runFunc(
				ctx,
				strings.Replace(configPath, os.Getenv("HOME"), "~", 1),
				finalCfg,
			)
		},
	}

	return cmd
}

func parseConfigFromArgs(cmd *cli.Command) *Config {
	return &Config{
		Interface:       cmd.String("interface"),
		Backend:         cmd.String("backend"),
		ListenAddr:      cmd.String("listen-addr"),
		ListenPort:      int(cmd.Int("listen-port")),
		StateFile:       cmd.String("state-file"),
		PersistInterval: int(cmd.Int("persist-interval")),
		Resolve:         cmd.Bool("resolve"),
		DNSAddr:         cmd.String("dns-addr"),
		DNSPort:         int(cmd.Int("dns-port")),
		LogLevel:        cmd.String("log-level"),
		Silent:          cmd.Bool("silent"),
	}
}
