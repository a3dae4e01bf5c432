package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"nsref/internal/core/app"
	"nsref/internal/core/config"
	"nsref/internal/shared/observability"
	"nsref/internal/ui/report"
)

const VERSION = "0.3.0"

const defaultConfigPath = "./nsref.toml"

const usage = `usage: nsref [flags] <command> [args]

commands:
  imports <file>                       print the import tables of a module
  resolve [-kind k] <file> <ns> <name> print the fully-qualified name
  type <expr> [<file> <ns>]            parse (and resolve) a type annotation
  scan <namespace>                     list the classes declared in a namespace
  filter <expr> <value>                validate and sanitize a YAML value against a type
  sync                                 scan every source file and prune the store
  watch                                keep caches fresh while files change

flags:
`

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("nsref", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath, "Path to config file")
	verbose := fs.Bool("verbose", false, "Enable verbose logging")
	format := fs.String("format", "", "Output format: text, json or yaml")
	metricsAddr := fs.String("metrics-addr", "", "Serve /metrics and /health on this address")
	logFile := fs.String("log-file", "", "Write logs to this file instead of stderr")
	version := fs.Bool("version", false, "Print version and exit")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *version {
		fmt.Fprintf(stdout, "nsref v%s\n", VERSION)
		return 0
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	closeLog := setupLogging(*verbose, *logFile, stderr)
	defer closeLog()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	if *format != "" {
		cfg.Output.Format = *format
	}
	if *metricsAddr != "" {
		cfg.Observability.MetricsAddr = *metricsAddr
	}

	renderer, err := report.NewRenderer(stdout, cfg.Output.Format)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Observability.OTLPEndpoint, VERSION)
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}()

	session, err := app.NewSession(cfg)
	if err != nil {
		slog.Error("failed to initialize session", "error", err)
		return 1
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("failed to close session", "error", err)
		}
	}()

	if cfg.Observability.MetricsAddr != "" {
		srv := observability.NewServer(cfg.Observability.MetricsAddr, func(ctx context.Context) map[string]any {
			return session.Health(ctx).Fields()
		})
		if err := srv.Start(ctx); err != nil {
			slog.Error("failed to start observability server", "error", err)
			return 1
		}
		defer srv.Stop(context.Background())
	}

	cmd := &command{session: session, cfg: cfg, out: renderer, stderr: stderr}
	if err := cmd.dispatch(ctx, fs.Arg(0), fs.Args()[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fs.Usage()
			return 2
		}
		if errors.Is(err, context.Canceled) {
			return 0
		}
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

// loadConfig reads path; the default path may be absent, in which case the
// built-in defaults and environment overrides apply.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if path == defaultConfigPath && errors.Is(err, os.ErrNotExist) {
		cfg = config.DefaultConfig()
		config.ApplyEnvOverrides(cfg)
		return cfg, config.Validate(cfg)
	}
	return nil, err
}

func setupLogging(verbose bool, logFile string, fallback io.Writer) func() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	output := fallback
	closer := func() {}
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o700); err != nil {
			fmt.Fprintf(fallback, "warning: failed to create log dir for %s: %v\n", logFile, err)
		} else if f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600); err == nil {
			output = f
			closer = func() { _ = f.Close() }
		} else {
			fmt.Fprintf(fallback, "warning: failed to open log file %s: %v\n", logFile, err)
		}
	}

	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return closer
}
