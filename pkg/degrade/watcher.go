package degrade

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/intake/pkg/log"
)

// Watcher mirrors the existence of a sentinel file into a Flag.
type Watcher struct {
	path   string
	flag   *Flag
	logger log.Logger
}

// NewWatcher creates a watcher for path. A nil logger discards output.
func NewWatcher(path string, flag *Flag, logger log.Logger) *Watcher {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Watcher{
		path:   filepath.Clean(path),
		flag:   flag,
		logger: logger.With(log.Component("degrade-watcher"), log.String("path", path)),
	}
}

// Sync sets the flag from the current state of the sentinel file.
func (w *Watcher) Sync() {
	_, err := os.Stat(w.path)
	switch {
	case err == nil:
		if w.flag.Set() {
			w.logger.Warn("degrade mode on, events go to the overflow file")
		}
	case errors.Is(err, os.ErrNotExist):
		if w.flag.Clear() {
			w.logger.Info("degrade mode off")
		}
	default:
		w.logger.Error("stat sentinel failed", log.Err(err))
	}
}

// Run watches the sentinel's directory until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	// the file may have changed between construction and Add
	w.Sync()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) == 0 {
				continue
			}
			w.Sync()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", log.Err(err))
		}
	}
}
