package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Mindburn-Labs/covenant/pkg/config"
	"github.com/Mindburn-Labs/covenant/pkg/observability"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
//
// Exit codes:
//
//	0 = success
//	1 = the engine rejected the input
//	2 = usage or input error
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	cmd := args[1]
	switch cmd {
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	}

	run, ok := commands[cmd]
	if !ok {
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", cmd)
		printUsage(stderr)
		return 2
	}

	a, err := newApp(stdout, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer a.close()

	ctx, done := a.provider.TrackOperation(context.Background(), "covenant."+cmd)
	code := run(ctx, a, args[2:])
	if code != 0 {
		done(fmt.Errorf("%s exited with code %d", cmd, code))
	} else {
		done(nil)
	}
	return code
}

var commands = map[string]func(context.Context, *app, []string) int{
	"evolve":     runEvolveCmd,
	"score":      runScoreCmd,
	"decay":      runDecayCmd,
	"schedule":   runScheduleCmd,
	"expiry":     runExpiryCmd,
	"forecast":   runForecastCmd,
	"algebra":    runAlgebraCmd,
	"governance": runGovernanceCmd,
}

// app carries the process-wide configuration, logger and telemetry shared by
// every subcommand.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	provider *observability.Provider
	metrics  *observability.EngineMetrics
	stdout   io.Writer
	stderr   io.Writer
}

func newApp(stdout, stderr io.Writer) (*app, error) {
	cfg := config.Load()

	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler = slog.NewTextHandler(stderr, opts)
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	obsCfg := observability.DefaultConfig()
	obsCfg.Enabled = cfg.TelemetryEnabled()
	obsCfg.OTLPEndpoint = cfg.OTLPEndpoint
	obsCfg.Insecure = cfg.OTelInsecure
	obsCfg.Environment = cfg.Environment

	provider, err := observability.New(context.Background(), obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	metrics, err := observability.NewEngineMetrics(provider.Meter())
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		provider: provider,
		metrics:  metrics,
		stdout:   stdout,
		stderr:   stderr,
	}, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.provider.Shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown failed", "error", err)
	}
}

func (a *app) errorf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.stderr, "Error: "+format+"\n", args...)
}

func (a *app) writeJSON(v any) int {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		a.errorf("encode output: %v", err)
		return 2
	}
	return 0
}

// loadProfile accepts either a path to a YAML file or a profile name looked
// up in the configured profile directory.
func (a *app) loadProfile(ref string) (*config.Profile, error) {
	if ref == "" {
		return nil, fmt.Errorf("--profile is required")
	}
	if strings.HasSuffix(ref, ".yaml") || strings.HasSuffix(ref, ".yml") || strings.ContainsRune(ref, filepath.Separator) {
		return config.LoadProfileFile(ref)
	}
	return config.LoadProfile(a.cfg.ProfileDir, ref)
}

func readJSON(path string, v any) error {
	if path == "" {
		return fmt.Errorf("input path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// ANSI Colors
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorBlue  = "\033[34m"
	ColorCyan  = "\033[36m"
	ColorGreen = "\033[32m"
	ColorGray  = "\033[37m"
)

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sCovenant adaptive trust%s\n", ColorBold+ColorBlue, ColorReset)
	fmt.Fprintf(w, "%sConstraints evolve. Enforcement decays.%s\n", ColorGray, ColorReset)
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sUSAGE:%s\n", ColorBold, ColorReset)
	fmt.Fprintln(w, "  covenant <command> [flags]")
	fmt.Fprintln(w, "")

	printSection(w, "EVOLUTION")
	printCommand(w, "evolve", "Evaluate triggers and evolve a covenant (--profile, --agent)")
	printCommand(w, "score", "Score continuous triggers (--profile, --agent)")

	printSection(w, "DECAY & FORECASTING")
	printCommand(w, "decay", "Sample a profile's decay model (--profile, --weight)")
	printCommand(w, "schedule", "Single-exponential schedule over a lifetime (--rate, --lifetime)")
	printCommand(w, "expiry", "Predict enforcement expiration (--input)")
	printCommand(w, "forecast", "Project violation rates (--rates or --violations)")

	printSection(w, "CONSTRAINTS & GOVERNANCE")
	printCommand(w, "algebra", "Combine temporal constraints (--op, --input)")
	printCommand(w, "governance", "Governance phase and voting power (--agents)")
	printCommand(w, "help", "Show this help")
	fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "%s%s:%s\n", ColorBold+ColorCyan, title, ColorReset)
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %s%-12s%s %s\n", ColorGreen, name, ColorReset, desc)
}
