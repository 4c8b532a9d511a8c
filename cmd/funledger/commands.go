package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/funvibe/funledger/internal/ast"
	"github.com/funvibe/funledger/internal/config"
	"github.com/funvibe/funledger/internal/crypto"
	"github.com/funvibe/funledger/internal/encoding"
	"github.com/funvibe/funledger/internal/ledger"
	"github.com/funvibe/funledger/internal/metrics"
	"github.com/funvibe/funledger/internal/node"
	"github.com/funvibe/funledger/internal/parser"
	"github.com/funvibe/funledger/internal/prettyprinter"
	"github.com/funvibe/funledger/internal/store"
	"github.com/spf13/cobra"
)

// keyEnv names the environment variable consulted when --key is absent.
const keyEnv = "FUNLEDGER_KEY"

func runCmd(g *globals) *cobra.Command {
	var height uint64
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Apply a statement file to a fresh ledger and print the results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			n, err := node.New(ctx, node.Options{Config: cfg, Logger: logger})
			if err != nil {
				return err
			}
			stmts, err := node.ReadBlock(args[0])
			if err != nil {
				return err
			}
			results, err := n.ApplyBlock(ctx, height, stmts, ledger.PrepareAll(stmts))
			if err != nil {
				return err
			}
			printResults(cmd.OutOrStdout(), results)
			fmt.Fprintf(cmd.OutOrStdout(), "digest %s\n", n.State().Digest())
			return nil
		},
	}
	cmd.Flags().Uint64Var(&height, "height", 1, "Block height the file is applied at")
	return cmd
}

// openNode builds a node for a replay directory, backed by the configured
// database unless noStore is set.
func openNode(ctx context.Context, cfg *config.Config, logger *slog.Logger, noStore bool, m *metrics.Metrics) (*node.Node, func(), error) {
	opts := node.Options{Config: cfg, Logger: logger, Metrics: m}
	closeFn := func() {}
	if !noStore {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create data dir: %w", err)
		}
		s, err := store.Open(ctx, cfg.DatabasePath())
		if err != nil {
			return nil, nil, err
		}
		opts.Store = s
		closeFn = func() {
			if err := s.Close(); err != nil {
				logger.Warn("Failed to close store", "error", err)
			}
		}
	}
	n, err := node.New(ctx, opts)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return n, func() {
		if err := n.Close(context.Background()); err != nil {
			logger.Warn("Failed to write final snapshot", "error", err)
		}
		closeFn()
	}, nil
}

// serveMetrics starts the metrics endpoint when an address is configured.
func serveMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) *metrics.Metrics {
	if cfg.MetricsAddr == "" {
		return nil
	}
	m := metrics.New()
	go func() {
		logger.Info("Serving metrics", "addr", cfg.MetricsAddr)
		if err := m.Serve(ctx, cfg.MetricsAddr); err != nil {
			logger.Error("Metrics server failed", "error", err)
		}
	}()
	return m
}

func replayCmd(g *globals) *cobra.Command {
	var noStore bool
	cmd := &cobra.Command{
		Use:   "replay <dir>",
		Short: "Apply the block files of a directory in height order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			n, done, err := openNode(ctx, cfg, logger, noStore, nil)
			if err != nil {
				return err
			}
			defer done()
			applied, err := n.Replay(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d blocks, height %d, digest %s\n", applied, n.Height(), n.State().Digest())
			return nil
		},
	}
	cmd.Flags().BoolVar(&noStore, "no-store", false, "Keep the ledger in memory only")
	return cmd
}

func watchCmd(g *globals) *cobra.Command {
	var noStore bool
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Replay a block directory and keep applying new blocks as they appear",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			m := serveMetrics(ctx, cfg, logger)
			n, done, err := openNode(ctx, cfg, logger, noStore, m)
			if err != nil {
				return err
			}
			defer done()
			err = n.Watch(ctx, node.WatchConfig{Dir: args[0]})
			logger.Info("Watcher stopped", "height", n.Height(), "digest", n.State().Digest())
			return err
		},
	}
	cmd.Flags().BoolVar(&noStore, "no-store", false, "Keep the ledger in memory only")
	return cmd
}

func digestCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "digest <dir>",
		Short: "Print the state digest a block directory replays to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			n, err := node.New(cmd.Context(), node.Options{Config: cfg, Logger: logger})
			if err != nil {
				return err
			}
			if _, err := n.Replay(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n.State().Digest())
			return nil
		},
	}
}

func fmtCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fmt <file>",
		Short: "Print a statement file in canonical layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			program, err := parseFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), prettyprinter.Program(program))
			return nil
		},
	}
}

func signCmd() *cobra.Command {
	var (
		keyHex string
		resign bool
	)
	cmd := &cobra.Command{
		Use:   "sign <file>",
		Short: "Sign every statement of a file and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := loadKey(keyHex)
			if err != nil {
				return err
			}
			program, err := parseFile(args[0])
			if err != nil {
				return err
			}
			for _, stmt := range program.Statements {
				if stmt.Signature() != nil && !resign {
					continue
				}
				sig := crypto.Sign(key, encoding.SigningHash(stmt))
				stmt.SetSignature(&sig)
			}
			fmt.Fprint(cmd.OutOrStdout(), prettyprinter.Program(program))
			return nil
		},
	}
	cmd.Flags().StringVar(&keyHex, "key", "", "Hex private key (default $"+keyEnv+")")
	cmd.Flags().BoolVar(&resign, "resign", false, "Replace existing signatures")
	return cmd
}

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a private key and print it with its subject",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := crypto.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "key     %s\nsubject %s\n", crypto.KeyHex(key), crypto.SubjectOf(key.PubKey()))
			return nil
		},
	}
}

func subjectCmd() *cobra.Command {
	var keyHex string
	cmd := &cobra.Command{
		Use:   "subject",
		Short: "Print the subject a private key signs as",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := loadKey(keyHex)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), crypto.SubjectOf(key.PubKey()))
			return nil
		},
	}
	cmd.Flags().StringVar(&keyHex, "key", "", "Hex private key (default $"+keyEnv+")")
	return cmd
}

func loadKey(keyHex string) (*secp256k1.PrivateKey, error) {
	if keyHex == "" {
		keyHex = os.Getenv(keyEnv)
	}
	if keyHex == "" {
		return nil, errors.New("no key given: pass --key or set " + keyEnv)
	}
	return crypto.ParseKey(keyHex)
}

func parseFile(path string) (*ast.Program, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parser.Parse(path, string(src))
}

const (
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

func printResults(w io.Writer, results []ledger.Result) {
	color := w == io.Writer(os.Stdout) && isTerminal(os.Stdout)
	for _, r := range results {
		status := r.Status.String()
		if color {
			c := ansiGreen
			if r.Status == ledger.Rejected {
				c = ansiRed
			}
			status = c + status + ansiReset
		}
		fmt.Fprintf(w, "%3d %-3s %s", r.Index, r.Kind, status)
		if r.Err != nil {
			fmt.Fprintf(w, " %s", r.Err)
		}
		if r.Output != nil {
			fmt.Fprintf(w, " => %s", prettyprinter.Term(r.Output))
		}
		if r.ManaUsed > 0 {
			fmt.Fprintf(w, " (mana %d)", r.ManaUsed)
		}
		fmt.Fprintln(w)
	}
}
