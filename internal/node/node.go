// Package node drives a ledger from block files: it prepares blocks
// concurrently, commits them strictly in height order, and records the
// outcome in the store and metrics.
package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/funvibe/funledger/internal/ast"
	"github.com/funvibe/funledger/internal/config"
	"github.com/funvibe/funledger/internal/ledger"
	"github.com/funvibe/funledger/internal/metrics"
	"github.com/funvibe/funledger/internal/store"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Options wires a node. Store and Metrics are optional.
type Options struct {
	Config  *config.Config
	Store   *store.Store
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

type Node struct {
	mu      sync.Mutex
	proc    *ledger.Processor
	opts    ledger.Options
	store   *store.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
	workers int
	every   uint64
	applied uint64 // blocks applied since the last snapshot
}

// New builds a node, restoring the latest snapshot and the blocks stored
// after it when a store is given.
func New(ctx context.Context, o Options) (*Node, error) {
	cfg := o.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	session := uuid.NewString()
	if o.Store != nil {
		session = o.Store.Session()
	}
	n := &Node{
		opts:    ledger.OptionsFrom(cfg.Genesis),
		store:   o.Store,
		metrics: o.Metrics,
		logger:  logger.With("session", session),
		workers: cfg.Workers,
		every:   cfg.SnapshotEvery,
	}
	if n.workers <= 0 {
		n.workers = 1
	}

	state := ledger.Genesis(cfg.Genesis.Root())
	if n.store != nil {
		restored, err := n.store.LatestSnapshot(ctx)
		switch {
		case err == nil:
			if restored.Names.Root() != state.Names.Root() {
				return nil, fmt.Errorf("snapshot root authority %s differs from configured %s", restored.Names.Root(), state.Names.Root())
			}
			state = restored
			n.logger.Info("Restored snapshot", "height", state.Height, "digest", state.Digest())
		case errors.Is(err, store.ErrNoSnapshot):
		default:
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
	}
	n.proc = ledger.NewProcessor(state, n.opts)

	if n.store != nil {
		if err := n.catchUp(ctx); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// catchUp re-applies the stored blocks newer than the restored state and
// checks that they reproduce the recorded digests.
func (n *Node) catchUp(ctx context.Context) error {
	blocks, err := n.store.Blocks(ctx, n.Height())
	if err != nil {
		return fmt.Errorf("load blocks: %w", err)
	}
	for _, b := range blocks {
		n.proc.ApplyBlock(b.Height, ledger.PrepareAll(b.Statements))
		if got := n.proc.State().Digest().String(); got != b.Digest {
			return fmt.Errorf("block %d: replay gives digest %s, stored %s", b.Height, got, b.Digest)
		}
	}
	if len(blocks) > 0 {
		n.logger.Info("Caught up from store", "blocks", len(blocks), "height", n.Height())
	}
	return nil
}

// Height is the height of the last applied block.
func (n *Node) Height() uint64 {
	return n.State().Height
}

// State is the current committed state.
func (n *Node) State() *ledger.State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.proc.State()
}

// ApplyBlock commits one prepared block. height must be above the current
// height.
func (n *Node) ApplyBlock(ctx context.Context, height uint64, stmts []ast.Statement, prepared []ledger.Prepared) ([]ledger.Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if current := n.proc.State().Height; height <= current {
		return nil, fmt.Errorf("block %d is not above height %d", height, current)
	}
	start := time.Now()
	results := n.proc.ApplyBlock(height, prepared)
	took := time.Since(start)
	state := n.proc.State()

	rejected := 0
	for _, r := range results {
		if r.Status == ledger.Rejected {
			rejected++
			n.logger.Debug("Statement rejected", "height", height, "index", r.Index, "kind", r.Kind, "error", r.Err)
		}
	}
	n.logger.Info("Applied block",
		"height", height,
		"statements", len(results),
		"rejected", rejected,
		"duration", took)

	if n.metrics != nil {
		n.metrics.ObserveBlock(height, results, took)
	}
	if n.store != nil {
		if err := n.store.SaveBlock(ctx, height, stmts, results, state.Digest().String()); err != nil {
			return results, fmt.Errorf("store block %d: %w", height, err)
		}
		n.applied++
		if n.every > 0 && n.applied >= n.every {
			if err := n.snapshot(ctx, state); err != nil {
				return results, err
			}
		}
	}
	return results, nil
}

func (n *Node) snapshot(ctx context.Context, state *ledger.State) error {
	if err := n.store.SaveSnapshot(ctx, state); err != nil {
		return fmt.Errorf("snapshot at %d: %w", state.Height, err)
	}
	n.applied = 0
	n.logger.Debug("Saved snapshot", "height", state.Height)
	return nil
}

// Close writes a final snapshot when anything was applied since the last.
func (n *Node) Close(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.store == nil || n.applied == 0 {
		return nil
	}
	return n.snapshot(ctx, n.proc.State())
}

type preparedBlock struct {
	file     BlockFile
	stmts    []ast.Statement
	prepared []ledger.Prepared
}

// Replay applies every block file in dir above the current height. Files
// are parsed and their signatures recovered by a pool of workers; commits
// happen one at a time in height order. A block that fails to parse stops
// the replay before it is applied.
func (n *Node) Replay(ctx context.Context, dir string) (int, error) {
	files, err := ListBlocks(dir)
	if err != nil {
		return 0, err
	}
	height := n.Height()
	pending := files[:0]
	for _, f := range files {
		if f.Height > height {
			pending = append(pending, f)
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	blocks := make([]chan preparedBlock, len(pending))
	for i := range blocks {
		blocks[i] = make(chan preparedBlock, 1)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.workers)
	launched := make(chan struct{})
	go func() {
		defer close(launched)
		for i, f := range pending {
			if gctx.Err() != nil {
				for _, ch := range blocks[i:] {
					close(ch)
				}
				return
			}
			i, f := i, f // per-iteration copies (go directive < 1.22)
			g.Go(func() error {
				stmts, err := ReadBlock(f.Path)
				if err != nil {
					close(blocks[i])
					return fmt.Errorf("block %d: %w", f.Height, err)
				}
				blocks[i] <- preparedBlock{file: f, stmts: stmts, prepared: ledger.PrepareAll(stmts)}
				return nil
			})
		}
	}()

	applied := 0
	var applyErr error
	for _, ch := range blocks {
		b, ok := <-ch
		if !ok {
			break
		}
		if _, applyErr = n.ApplyBlock(ctx, b.file.Height, b.stmts, b.prepared); applyErr != nil {
			cancel()
			break
		}
		applied++
	}
	<-launched
	err = g.Wait()
	switch {
	case applyErr != nil:
		return applied, applyErr
	case err != nil:
		return applied, err
	}
	return applied, ctx.Err()
}
