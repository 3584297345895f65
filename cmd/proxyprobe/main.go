// Command proxyprobe crawls public proxy-list sources (or reads a fixed
// list from --file), optionally validates protocol support and HTTP
// anonymity against judge endpoints, and streams the result in one of three
// formats.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"proxyprobe/internal/config"
	"proxyprobe/internal/fetcher"
	"proxyprobe/internal/geo"
	"proxyprobe/internal/loader"
	"proxyprobe/internal/logging"
	"proxyprobe/internal/metrics"
	"proxyprobe/internal/model"
	"proxyprobe/internal/output"
	"proxyprobe/internal/providers"
	"proxyprobe/internal/resolver"
	"proxyprobe/internal/validator"
)

// proxySource is the single shape every pipeline stage exposes: Fetcher,
// Validator, and loader.Source are all drop-in interchangeable here.
type proxySource interface {
	Next() (*model.Proxy, bool)
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	cli, err := config.ParseFlags(argv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "proxyprobe: %v\n", err)
		return 1
	}

	level, _ := logging.ParseLevel(cli.LogLevel) // already validated by ParseFlags
	logger := logging.NewLogger(logging.Config{Level: level, Format: "text"})

	var runtimeCfg *config.RuntimeConfig
	var closers []func()
	defer func() {
		for _, closeFn := range closers {
			closeFn()
		}
	}()

	if cli.RuntimeConfigPath != "" {
		watcher, err := config.NewRuntimeWatcher(cli.RuntimeConfigPath, config.WatcherOptions{
			DebounceDelay: 500 * time.Millisecond,
			OnReload: func(cfg *config.RuntimeConfig) {
				logger.Info("runtime config reloaded, applying judge ring to the next dispatched proxy")
				validator.SetJudges(cfg.HTTPJudges, cfg.HTTPSJudges)
			},
			OnError: func(err error) {
				logger.Error("runtime config watch error", "error", err)
			},
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "proxyprobe: runtime config: %v\n", err)
			return 1
		}
		closers = append(closers, func() { watcher.Stop() })
		runtimeCfg = watcher.Current()
	} else {
		runtimeCfg, err = config.LoadRuntimeConfig("")
		if err != nil {
			fmt.Fprintf(os.Stderr, "proxyprobe: runtime config: %v\n", err)
			return 1
		}
	}
	validator.SetJudges(runtimeCfg.HTTPJudges, runtimeCfg.HTTPSJudges)

	types, err := cli.ParsedTypes()
	if err != nil {
		fmt.Fprintf(os.Stderr, "proxyprobe: %v\n", err)
		return 1
	}

	// cli.Format is already validated against default|text|json by
	// config.ParseFlags.
	format := output.Format(cli.Format)

	sink := os.Stdout
	if cli.OutputFile != "" {
		f, err := os.Create(cli.OutputFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "proxyprobe: %v\n", err)
			return 1
		}
		defer f.Close()
		sink = f
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		logger.Info("received shutdown signal, cancelling in-flight work")
		cancel()
	}()

	collector := metrics.NewCollector()

	var source proxySource
	if cli.File != "" {
		fileSource, err := loader.LoadFile(cli.File, types)
		if err != nil {
			fmt.Fprintf(os.Stderr, "proxyprobe: %v\n", err)
			return 1
		}
		source = fileSource
	} else {
		geoLookup, err := geo.Open(runtimeCfg.MmdbMirrorURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "proxyprobe: %v\n", err)
			return 1
		}
		closers = append(closers, func() { geoLookup.Close() })

		fetchCfg := fetcher.DefaultConfig()
		fetchCfg.ConcurrencyLimit = runtimeCfg.FetcherConcurrency
		fetchCfg.RequestTimeout = time.Duration(cli.Timeout) * time.Second
		fetchCfg.Countries = cli.Countries

		f := fetcher.Gather(ctx, fetchCfg, providers.All(), geoLookup, logger, collector)
		closers = append(closers, f.Close)
		source = f
	}

	if len(types) > 0 {
		valCfg := validator.DefaultConfig()
		valCfg.Types = types
		valCfg.ConcurrencyLimit = cli.MaxConnections
		valCfg.RequestTimeout = time.Duration(cli.Timeout) * time.Second
		valCfg.MaxAttempts = cli.MaxAttempts

		v, err := validator.Validate(ctx, valCfg, source, resolver.New(), logger, collector)
		if err != nil {
			fmt.Fprintf(os.Stderr, "proxyprobe: %v\n", err)
			return 1
		}
		closers = append(closers, v.Close)
		source = v
	}

	w := output.NewWriter(sink, format, cli.Limit)
	for {
		if ctx.Err() != nil {
			break
		}
		proxy, ok := source.Next()
		if !ok {
			break
		}
		keepGoing, err := w.Write(proxy)
		if err != nil {
			fmt.Fprintf(os.Stderr, "proxyprobe: write failed: %v\n", err)
			return 1
		}
		if !keepGoing {
			break
		}
	}
	if err := w.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "proxyprobe: write failed: %v\n", err)
		return 1
	}

	collector.LogSummary(logger)
	return 0
}
