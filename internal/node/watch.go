package node

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/funvibe/funledger/internal/config"
)

// WatchConfig configures Watch.
type WatchConfig struct {
	// Dir is the block directory to watch
	Dir string

	// DebounceDelay is how long to wait for more changes before replaying
	DebounceDelay time.Duration

	// OnReplay, when set, is called after every replay attempt
	OnReplay func(applied int, err error)
}

// Watch replays dir once and then again whenever block files are created or
// written in it, until ctx is cancelled. Replay errors are logged and the
// watch goes on; a later write may fix the offending block. Blocks should
// be moved into dir whole, since a block is applied as soon as it parses.
func (n *Node) Watch(ctx context.Context, cfg WatchConfig) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()
	if err := fsw.Add(cfg.Dir); err != nil {
		return err
	}

	debounce := cfg.DebounceDelay
	if debounce == 0 {
		debounce = 100 * time.Millisecond
	}

	pending := true // replay what is already there
	replay := func() {
		if !pending {
			return
		}
		pending = false
		applied, err := n.Replay(ctx, cfg.Dir)
		if err != nil {
			n.logger.Error("Replay failed", "dir", cfg.Dir, "applied", applied, "error", err)
		} else if applied > 0 {
			n.logger.Info("Replayed blocks", "dir", cfg.Dir, "applied", applied, "height", n.Height())
		}
		if cfg.OnReplay != nil {
			cfg.OnReplay(applied, err)
		}
	}

	n.logger.Info("Block watcher started", "dir", cfg.Dir, "debounce", debounce)
	replay()

	ticker := time.NewTicker(debounce)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(event.Name) != config.BlockFileExt {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			pending = true
			n.logger.Debug("Block change detected", "path", event.Name, "op", event.Op.String())

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			n.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			replay()
		}
	}
}
