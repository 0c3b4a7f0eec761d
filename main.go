package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/freedom-island/speedd/speeddaemon"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("speedd", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to a YAML config file (or set SPEEDD_CONFIG)")
	logLevel := flags.String("log-level", "", "debug, info, warn, or error")
	listen := flags.String("listen", "", "speed daemon listen address")
	margin := flags.Uint16("margin", 0, "enforcement allowance in hundredths of a mile per hour")
	showVersion := flags.BoolP("version", "V", false, "print version information and exit")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if *showVersion {
		fmt.Println(buildVersion())
		return nil
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	// Flags override the file.
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *listen != "" {
		cfg.SpeedDaemon.Addr = *listen
	}
	if flags.Changed("margin") {
		cfg.SpeedDaemon.MarginCentiMPH = *margin
	}

	level, err := parseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting", "version", Version)
	return runServices(ctx, cfg)
}

// runServices runs every enabled service until the first fatal error or
// until ctx is cancelled, whichever comes first.
func runServices(ctx context.Context, cfg Config) error {
	group, ctx := errgroup.WithContext(ctx)

	if cfg.SpeedDaemon.Enabled {
		server := speeddaemon.NewServer(cfg.SpeedDaemon.MarginCentiMPH)
		group.Go(func() error {
			return serve(ctx, "speeddaemon", cfg.SpeedDaemon.Addr, server.Handle)
		})
	}
	if cfg.Echo.Enabled {
		group.Go(func() error {
			return serve(ctx, "echo", cfg.Echo.Addr, echo)
		})
	}
	if cfg.Prime.Enabled {
		group.Go(func() error {
			return serve(ctx, "prime", cfg.Prime.Addr, checkPrimes)
		})
	}
	if cfg.Means.Enabled {
		group.Go(func() error {
			return serve(ctx, "means", cfg.Means.Addr, trackPrices)
		})
	}
	if cfg.Chat.Enabled {
		chat := NewBudgetChat(cfg.Chat.Welcome)
		group.Go(func() error {
			return serve(ctx, "chat", cfg.Chat.Addr, chat.Handle)
		})
	}
	if cfg.KVStore.Enabled {
		store := NewKeyValueStore()
		group.Go(func() error {
			return store.ListenAndServe(ctx, cfg.KVStore.Addr)
		})
	}
	if cfg.Proxy.Enabled {
		proxy := &BoguscoinRewriteProxy{Upstream: cfg.Proxy.Upstream, Rewrite: cfg.Proxy.Rewrite}
		group.Go(func() error {
			return serve(ctx, "proxy", cfg.Proxy.Addr, proxy.Handle)
		})
	}

	return group.Wait()
}
