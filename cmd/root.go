// Package cmd contains the command-line interface for mcpfleet.
//
// It defines the root command and all subcommands using Cobra and wires
// OS signal delivery into the manager's shutdown coordinator.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcpfleet/mcpfleet"
)

// applicationName is used in help output and version reporting.
const applicationName = "mcpfleet"

var (
	configFile     string
	logLevel       string
	timeoutSecs    float64
	maxConcurrency int

	// Application version (can be overridden at build time).
	version = "1.0.0"
)

var rootCmd = &cobra.Command{
	Use:     applicationName,
	Short:   "Manage MCP server subprocesses and dispatch tool calls",
	Version: version,
	Long: `mcpfleet launches the MCP servers declared in a configuration file,
keeps them alive for the duration of the command, and routes tool calls
to them with bounded concurrency and per-call timeouts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command. Called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "server_config.json",
		"Path to the server configuration file (JSON or YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn",
		"Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Float64Var(&timeoutSecs, "timeout", 0,
		"Global tool call timeout in seconds (0 uses the configured default)")
	rootCmd.PersistentFlags().IntVar(&maxConcurrency, "max-concurrency", 0,
		"Global in-flight tool call limit (0 uses the configured default)")
}

// newLogger builds the CLI logger from the --log-level flag.
func newLogger() *slog.Logger {
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newManager loads the configuration and builds a manager with the
// global flag overrides applied.
func newManager() (*mcpfleet.Manager, error) {
	cfg, err := mcpfleet.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}

	opts := []mcpfleet.Option{mcpfleet.WithLogger(newLogger())}

	if timeoutSecs > 0 {
		opts = append(opts, mcpfleet.WithDefaultTimeout(time.Duration(timeoutSecs*float64(time.Second))))
	}

	if maxConcurrency > 0 {
		opts = append(opts, mcpfleet.WithMaxConcurrency(maxConcurrency))
	}

	return mcpfleet.New(cfg, opts...), nil
}

// watchSignals forwards SIGINT/SIGTERM to the shutdown coordinator.
// The first signal starts draining; a second one forces an immediate
// stop. Returns a stop function for deferred cleanup.
func watchSignals(mgr *mcpfleet.Manager) func() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		for range sigCh {
			mgr.InitiateShutdown()
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(sigCh)
	}
}
