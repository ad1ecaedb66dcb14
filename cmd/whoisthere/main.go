package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"

	"github.com/whoisthere/whoisthere/internal/applog"
	"github.com/whoisthere/whoisthere/internal/capture"
	"github.com/whoisthere/whoisthere/internal/config"
	"github.com/whoisthere/whoisthere/internal/metrics"
	"github.com/whoisthere/whoisthere/internal/persist"
	"github.com/whoisthere/whoisthere/internal/rdns"
	"github.com/whoisthere/whoisthere/internal/server"
	"github.com/whoisthere/whoisthere/internal/stats"
	"github.com/whoisthere/whoisthere/internal/system"
	"github.com/whoisthere/whoisthere/version"
)

func main() {
	cmd := config.CreateCommand(run, version.PrintVersion)
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "whoisthere:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, cfg *config.Config) error {
	baseLogger := applog.NewLogger(cfg.Level())
	logger := applog.WithScope(baseLogger, "MAIN")

	iface, err := system.FindInterface(cfg.Interface)
	if err != nil {
		return err
	}

	if !cfg.Silent {
		printBanner(cfg, configPath, iface.Name)
	}

	// Starting: load persisted state before anything else runs. A parse
	// or read failure here aborts startup.
	manager := persist.NewManager(applog.WithScope(baseLogger, "PERSIST"), cfg.StateFile)
	table, err := manager.Load()
	if err != nil {
		return err
	}
	store := stats.NewStore(table)

	var handle capture.Handle
	switch cfg.Backend {
	case "raw":
		handle, err = capture.OpenRaw(iface)
	default:
		handle, err = capture.OpenPcap(iface)
	}
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	stop := make(chan struct{})
	var resolver *rdns.Resolver
	if cfg.Resolve {
		resolver = rdns.NewResolver(
			applog.WithScope(baseLogger, "RDNS"),
			cfg.DNSIP(),
			uint16(cfg.DNSPort),
		)
		resolver.StartJanitor(stop)
	}

	loop := capture.NewLoop(
		applog.WithScope(baseLogger, "CAPTURE"),
		handle,
		store,
		manager,
		m,
		cfg.PersistEvery(),
	)
	srv := server.New(
		applog.WithScope(baseLogger, "SERVER"),
		store,
		m,
		resolver,
		registry,
		cfg.ListenIP(),
		uint16(cfg.ListenPort),
	)

	if cfg.PersistEvery() > 0 {
		logger.Info().
			Dur("interval", cfg.PersistEvery()).
			Msg("batched persistence: a crash loses at most one interval of observations")
	}

	// Running: capture and serving execute concurrently and indefinitely.
	// The first fatal error from either context terminates the whole
	// process; no component keeps running against a half-functional system.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- loop.Run(runCtx) }()
	go func() { errCh <- srv.ListenAndServe() }()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
		syscall.SIGHUP)

	var fatalErr error
	select {
	case fatalErr = <-errCh:
	case sig := <-sigs:
		logger.Info().Str("signal", sig.String()).Msg("terminating")
	}

	// Terminating: immediate, no drain. Closing the handle unblocks a
	// pending capture read; closing the server abandons in-flight queries.
	cancel()
	close(stop)
	handle.Close()
	srv.Shutdown()

	if manager.Enabled() {
		if err := manager.Save(store.Snapshot()); err != nil {
			logger.Error().Err(err).Msg("final state save failed")
			if fatalErr == nil {
				fatalErr = err
			}
		}
	}

	if fatalErr != nil {
		logger.Error().Err(fatalErr).Msg("fatal error")
		return fatalErr
	}
	return nil
}

func printBanner(cfg *config.Config, configPath string, ifaceName string) {
	cyan := putils.LettersFromStringWithStyle("whois", pterm.NewStyle(pterm.FgCyan))
	magenta := putils.LettersFromStringWithStyle("there", pterm.NewStyle(pterm.FgLightMagenta))
	_ = pterm.DefaultBigText.WithLetters(cyan, magenta).Render()

	stateFile := cfg.StateFile
	if stateFile == "" {
		stateFile = "(memory only)"
	}
	if configPath == "" {
		configPath = "(none)"
	}

	_ = pterm.DefaultBulletList.WithItems([]pterm.BulletListItem{
		{Level: 0, Text: "IFACE   : " + ifaceName},
		{Level: 0, Text: "BACKEND : " + cfg.Backend},
		{Level: 0, Text: "LISTEN  : " + net.JoinHostPort(cfg.ListenAddr, strconv.Itoa(cfg.ListenPort))},
		{Level: 0, Text: "STATE   : " + stateFile},
		{Level: 0, Text: "RESOLVE : " + strconv.FormatBool(cfg.Resolve)},
		{Level: 0, Text: "CONFIG  : " + configPath},
	}).Render()

	pterm.DefaultBasicText.Println("Press 'CTRL + c' to quit")
}
