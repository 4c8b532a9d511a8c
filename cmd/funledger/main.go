// Package main provides the funledger binary entry point.
// Funledger applies blocks of signed statements to a deterministic ledger
// of functions, constructors and per-function state.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/funvibe/funledger/internal/config"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
	appName = "funledger"
)

// BuildTime can be set with -ldflags "-X main.BuildTime=...".
var BuildTime = "dev"

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globals are the flags shared by every subcommand.
type globals struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	g := &globals{}
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Deterministic ledger of signed functional statements",
		Long: `Funledger applies blocks of statements to a ledger state.

Statements register namespaces (reg), declare constructors (ctr) and
functions (fun), and run IO programs against function state (run). Each
statement may carry a secp256k1 signature; replaying the same blocks always
yields the same state digest.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file path (funledger.yaml)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		runCmd(g),
		replayCmd(g),
		watchCmd(g),
		digestCmd(g),
		fmtCmd(),
		signCmd(),
		keygenCmd(),
		subjectCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)
	return cmd
}

// load resolves the configuration and installs the default logger.
func (g *globals) load() (*config.Config, *slog.Logger, error) {
	path := g.configPath
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, nil, err
		}
		if path, err = config.FindConfig(wd); err != nil {
			return nil, nil, err
		}
	}
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.LoadConfig(path); err != nil {
			return nil, nil, err
		}
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	if path != "" {
		logger.Debug("Loaded config", "path", filepath.Clean(path))
	}
	return cfg, logger, nil
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
