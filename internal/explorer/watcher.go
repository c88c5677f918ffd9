package explorer

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher reloads the explorer database whenever a checkpoint file in the
// watched directory is written or replaced. Rapid bursts of writes collapse
// into a single reload via debouncing.
type Watcher struct {
	dir      string
	onChange func()
	watcher  *fsnotify.Watcher
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	running  bool
	debounce time.Duration
}

// NewWatcher watches dir for checkpoint changes; onChange runs debounced.
func NewWatcher(dir string, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		dir:      dir,
		onChange: onChange,
		watcher:  fsw,
		ctx:      ctx,
		cancel:   cancel,
		debounce: 500 * time.Millisecond,
	}, nil
}

// Start begins watching for checkpoint writes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}

	go w.watchLoop()
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false
	w.cancel()
	return w.watcher.Close()
}

func (w *Watcher) watchLoop() {
	var debounceTimer *time.Timer

	for {
		select {
		case <-w.ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// Checkpoint saves land as a rename of a temp file onto the
			// final .jsonl name, so Create and Rename both matter.
			if !strings.HasSuffix(event.Name, ".jsonl") {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			log.Debug().Str("file", filepath.Base(event.Name)).Msg("Checkpoint changed")
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, func() {
				log.Info().Str("dir", w.dir).Msg("Reloading explorer database")
				w.onChange()
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Checkpoint watcher error")
		}
	}
}
