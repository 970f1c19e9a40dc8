package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/relaytap/inspector"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "inspector: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flagCfg := defaultConfig()
	var configPath string

	cmd := &cobra.Command{
		Use:   "inspector",
		Short: "Transparent TCP relay that classifies and measures JSON messages in both directions",
		Long: `inspector sits between a client and a server, forwards all bytes unchanged
and prints one line per chunk read from either side, a running status line
and a per-type traffic breakdown when a connection closes or the process stops.

Set VERBOSE=1 to also print the content of every JSON message.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd.Flags(), flagCfg, configPath, os.Getenv)
			if err != nil {
				return err
			}
			level, _ := parseLevel(cfg.LogLevel)
			logger := newStderrLogger(level, cfg.LogNoColor)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, cmd.OutOrStdout(), logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "TOML config file")
	flags.IntVarP(&flagCfg.Port, "port", "p", flagCfg.Port, "port to listen on")
	flags.StringVar(&flagCfg.Bind, "bind", flagCfg.Bind, "address to listen on")
	flags.StringVar(&flagCfg.TargetHost, "target-host", flagCfg.TargetHost, "host to relay connections to")
	flags.IntVar(&flagCfg.TargetPort, "target-port", flagCfg.TargetPort, "port to relay connections to")
	flags.DurationVar(&flagCfg.Interval, "interval", flagCfg.Interval, "status line refresh interval")
	flags.DurationVar(&flagCfg.DialTimeout, "dial-timeout", flagCfg.DialTimeout, "timeout for connecting to the target (0 = none)")
	flags.IntVar(&flagCfg.BufferSize, "buffer-size", flagCfg.BufferSize, "maximum bytes per read; every read is classified as one message")
	flags.StringVar(&flagCfg.MetricsAddr, "metrics-addr", flagCfg.MetricsAddr, "serve Prometheus metrics on this address (disabled if empty)")
	flags.BoolVarP(&flagCfg.Verbose, "verbose", "v", flagCfg.Verbose, "print the content of every JSON message")
	flags.BoolVarP(&flagCfg.Quiet, "quiet", "q", flagCfg.Quiet, "only print status and summaries")
	flags.StringVar(&flagCfg.LogLevel, "log-level", flagCfg.LogLevel, "trace, debug, info, warn, error or disabled")
	return cmd
}

// resolveConfig layers defaults, the config file, the environment and explicitly set flags, in that order.
func resolveConfig(flags *pflag.FlagSet, flagCfg config, configPath string, getenv func(string) string) (config, error) {
	cfg := defaultConfig()
	if configPath != "" {
		if err := loadConfigFile(configPath, &cfg); err != nil {
			return config{}, err
		}
	}
	applyEnvOverrides(&cfg, getenv)

	if flags.Changed("port") {
		cfg.Port = flagCfg.Port
	}
	if flags.Changed("bind") {
		cfg.Bind = flagCfg.Bind
	}
	if flags.Changed("target-host") {
		cfg.TargetHost = flagCfg.TargetHost
	}
	if flags.Changed("target-port") {
		cfg.TargetPort = flagCfg.TargetPort
	}
	if flags.Changed("interval") {
		cfg.Interval = flagCfg.Interval
	}
	if flags.Changed("dial-timeout") {
		cfg.DialTimeout = flagCfg.DialTimeout
	}
	if flags.Changed("buffer-size") {
		cfg.BufferSize = flagCfg.BufferSize
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = flagCfg.MetricsAddr
	}
	if flags.Changed("verbose") {
		cfg.Verbose = flagCfg.Verbose
	}
	if flags.Changed("quiet") {
		cfg.Quiet = flagCfg.Quiet
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagCfg.LogLevel
	}

	if err := cfg.validate(); err != nil {
		return config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// run binds the listener and relays until ctx is done.
// Failing to bind is the only error that aborts startup.
func run(ctx context.Context, cfg config, out io.Writer, logger zerolog.Logger) error {
	ln, err := net.Listen("tcp", cfg.listenAddr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.listenAddr(), err)
	}
	return serve(ctx, ln, cfg, out, logger)
}

func serve(ctx context.Context, ln net.Listener, cfg config, out io.Writer, logger zerolog.Logger) error {
	stats := inspector.NewAccumulator(time.Now())
	reporter := inspector.NewReporter(out, inspector.ReporterOptions{Verbose: cfg.Verbose, Quiet: cfg.Quiet})
	relay := &inspector.Relay{
		Target:      cfg.targetAddr(),
		DialTimeout: cfg.DialTimeout,
		BufferSize:  cfg.BufferSize,
		Stats:       stats,
		Observer:    reporter,
		Logger:      &logger,
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics := inspector.NewMetrics(reg)
		relay.Observer = inspector.MultiObserver(reporter, metrics)
		relay.Tracer = metrics.Tracer()

		srv, addr, err := startMetricsServer(cfg.MetricsAddr, reg, logger)
		if err != nil {
			ln.Close()
			return err
		}
		metricsSrv = srv
		logger.Info().Stringer("addr", addr).Msg("serving metrics")
	}

	fmt.Fprintf(out, "=== Packet Inspector ===\n")
	fmt.Fprintf(out, "Listening on:  %s\n", ln.Addr())
	fmt.Fprintf(out, "Forwarding to: %s\n", cfg.targetAddr())
	fmt.Fprintf(out, "Press Ctrl+C to stop\n\n")
	logger.Debug().Bool("verbose", cfg.Verbose).Dur("interval", cfg.Interval).Msg("relay started")

	serveErr := make(chan error, 1)
	go func() { serveErr <- relay.Serve(ln) }()

	reportCtx, stopReport := context.WithCancel(ctx)
	reportDone := make(chan struct{})
	go func() {
		defer close(reportDone)
		reporter.Run(reportCtx, stats, cfg.Interval)
	}()

	// Serve retries failed accepts, so it only returns once the listener is gone.
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-serveErr:
		serveErr = nil
		logger.Warn().Err(err).Msg("listener closed")
	}

	stopReport()
	<-reportDone
	if err := relay.Close(); err != nil {
		logger.Warn().Err(err).Msg("closing relay")
	}
	if serveErr != nil {
		<-serveErr
	}
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("stopping metrics server")
		}
		cancel()
	}

	reporter.Final(stats.Snapshot(time.Now()))
	return nil
}

func startMetricsServer(addr string, reg *prometheus.Registry, logger zerolog.Logger) (*http.Server, net.Addr, error) {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	return srv, ln.Addr(), nil
}
